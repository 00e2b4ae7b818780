package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/heronote/internal/app"
	"github.com/petems/heronote/internal/audio"
	"github.com/petems/heronote/internal/config"
	"github.com/petems/heronote/internal/logging"
	"github.com/petems/heronote/internal/metrics"
	"github.com/petems/heronote/internal/recorder"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

var (
	cfgFile  string
	backend  string
	record   bool
	duration time.Duration
	stats    time.Duration
	save     bool
)

var rootCmd = &cobra.Command{
	Use:           "heronote",
	Short:         "Capture microphone and system audio",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input and output devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		host, err := audio.NewHost(cfg.Audio, log)
		if err != nil {
			return err
		}
		defer host.Close()

		devices, err := host.ListDevices()
		if err != nil {
			return err
		}
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			fmt.Printf("%s %-6s %s\n", marker, d.Type, d.Name)
		}
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture [mic|speaker]...",
	Short: "Capture one or more sources until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := parseSources(args)
		if err != nil {
			return err
		}
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if record {
			cfg.Debug.Enabled = true
			cfg.Debug.SaveAudioFiles = true
		}
		return runCapture(cfg, log, sources)
	},
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "List saved recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		files, err := recorder.List(cfg.Debug.AudioOutputDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%-8s %s %6dHz %8s %s\n",
				f.Source, f.CreatedAt.Format(time.DateTime), f.SampleRate,
				f.Duration.Round(10*time.Millisecond), f.Path)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		if save {
			path := cfgFile
			if path == "" {
				path = config.Path()
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", path)
			return nil
		}
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("heronote %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "audio backend: portaudio or miniaudio")

	captureCmd.Flags().BoolVar(&record, "record", false, "save captured audio as WAV files")
	captureCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	captureCmd.Flags().DurationVar(&stats, "stats", 0, "log capture stats at this interval and start a new window (0 disables)")
	configCmd.Flags().BoolVar(&save, "save", false, "write the effective configuration to the config file")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(recordingsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, logging.New(), err
	}
	if backend != "" {
		cfg.Audio.Backend = backend
		if err := cfg.Validate(); err != nil {
			return nil, logging.New(), err
		}
	}
	return cfg, logging.NewWithLevel(cfg.LogLevel), nil
}

func parseSources(args []string) ([]audio.Source, error) {
	if len(args) == 0 {
		return []audio.Source{audio.SourceMicrophone}, nil
	}
	seen := make(map[audio.Source]bool)
	var sources []audio.Source
	for _, arg := range args {
		src, err := audio.ParseSource(arg)
		if err != nil {
			return nil, err
		}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}
	return sources, nil
}

func runCapture(cfg *config.Config, log zerolog.Logger, sources []audio.Source) error {
	host, err := audio.NewHost(cfg.Audio, log)
	if err != nil {
		return err
	}
	defer host.Close()

	application := app.New(app.Config{
		Host:   host,
		Config: cfg,
		Logger: log,
	})

	log.Info().Str("version", Version).Msg("heronote starting...")

	for _, src := range sources {
		if err := application.Start(src); err != nil {
			_ = application.Shutdown(context.Background())
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	var ticks <-chan time.Time
	if stats > 0 {
		ticker := time.NewTicker(stats)
		defer ticker.Stop()
		ticks = ticker.C
	}
	for running := true; running; {
		select {
		case <-ticks:
			logStats(log, application.Metrics(), "Capture stats")
			application.Metrics().Reset()
		case <-ctx.Done():
			running = false
		}
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	logStats(log, application.Metrics(), "Capture summary")
	return nil
}

// logStats reports every source that captured since the last window.
func logStats(log zerolog.Logger, reg *metrics.Registry, msg string) {
	for _, m := range reg.All() {
		if m.DeviceName == "" {
			continue
		}
		log.Info().
			Str("source", m.Source.String()).
			Str("device", m.DeviceName).
			Bool("capturing", m.Capturing).
			Uint32("sample_rate", m.SampleRate).
			Uint64("samples", m.SamplesProcessed).
			Uint64("dropped", m.SamplesDropped).
			Msg(msg)
	}
}
