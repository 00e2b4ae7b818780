// Package recorder writes captured chunks to mono 32-bit PCM WAV files for
// debugging, one file per source and sample rate.
package recorder

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/petems/heronote/internal/audio"
	"github.com/rs/zerolog"
)

const (
	bitDepth      = 32
	pcmFormat     = 1
	timestampForm = "20060102_150405.000"
)

// Recorder is a WAV sink for one capture. It is used from the capture
// goroutine only.
type Recorder struct {
	dir    string
	source audio.Source
	log    zerolog.Logger
	now    func() time.Time

	rate    uint32
	path    string
	file    *os.File
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	written uint64
}

// New creates dir if needed and opens the first file.
func New(dir string, source audio.Source, rate uint32, log zerolog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio output dir: %w", err)
	}
	r := &Recorder{
		dir:    dir,
		source: source,
		log:    log,
		now:    time.Now,
	}
	if err := r.open(rate); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) open(rate uint32) error {
	stem := fmt.Sprintf("%s_%s", r.source, r.now().Format(timestampForm))
	path := filepath.Join(r.dir, stem+".wav")

	// Never truncate an earlier file from the same millisecond.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	for i := 1; os.IsExist(err) && i < 100; i++ {
		path = filepath.Join(r.dir, fmt.Sprintf("%s_%d.wav", stem, i))
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	}
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}

	r.rate = rate
	r.path = path
	r.file = f
	r.written = 0
	r.enc = wav.NewEncoder(f, int(rate), bitDepth, 1, pcmFormat)
	r.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: int(rate)},
		SourceBitDepth: bitDepth,
	}

	r.log.Info().Str("path", path).Uint32("sample_rate", rate).Msg("recording audio")
	return nil
}

// Write appends chunk. A chunk flagged RateChanged starts a new file at its
// rate so each file has a single rate.
func (r *Recorder) Write(chunk audio.Chunk) error {
	if r.file == nil {
		return fmt.Errorf("recorder closed")
	}
	if chunk.RateChanged && chunk.SampleRate != 0 && chunk.SampleRate != r.rate {
		if err := r.finish(); err != nil {
			return err
		}
		if err := r.open(chunk.SampleRate); err != nil {
			return err
		}
	}
	if len(chunk.Samples) == 0 {
		return nil
	}

	data := r.buf.Data[:0]
	for _, s := range chunk.Samples {
		data = append(data, toPCM32(s))
	}
	r.buf.Data = data

	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	r.written += uint64(len(chunk.Samples))
	return nil
}

func toPCM32(s float32) int {
	if math.IsNaN(float64(s)) {
		return 0
	}
	v := math.Round(float64(s) * math.MaxInt32)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}

// Path is the file currently written.
func (r *Recorder) Path() string { return r.path }

// SamplesWritten counts samples in the current file.
func (r *Recorder) SamplesWritten() uint64 { return r.written }

func (r *Recorder) finish() error {
	if r.file == nil {
		return nil
	}
	encErr := r.enc.Close()
	fileErr := r.file.Close()
	r.log.Info().
		Str("path", r.path).
		Uint64("samples", r.written).
		Msg("recording finished")
	r.file = nil
	r.enc = nil
	if encErr != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", encErr)
	}
	return fileErr
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	return r.finish()
}

// File describes one recording on disk.
type File struct {
	Path       string
	Source     audio.Source
	CreatedAt  time.Time
	SampleRate uint32
	Duration   time.Duration
	SizeBytes  int64
}

// List scans dir for recordings, newest first. A missing dir yields nothing.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wav" {
			continue
		}
		f, ok := inspect(filepath.Join(dir, e.Name()))
		if ok {
			files = append(files, f)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

func inspect(path string) (File, bool) {
	name := filepath.Base(path)
	var src audio.Source
	switch {
	case strings.HasPrefix(name, audio.SourceMicrophone.String()+"_"):
		src = audio.SourceMicrophone
	case strings.HasPrefix(name, audio.SourceSystem.String()+"_"):
		src = audio.SourceSystem
	default:
		return File{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return File{}, false
	}
	f := File{
		Path:      path,
		Source:    src,
		CreatedAt: info.ModTime(),
		SizeBytes: info.Size(),
	}

	// Unreadable headers still list the file, without rate or duration.
	fh, err := os.Open(path)
	if err != nil {
		return f, true
	}
	defer fh.Close()

	dec := wav.NewDecoder(fh)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return f, true
	}
	f.SampleRate = dec.SampleRate
	f.Duration = pcmDuration(dec)
	return f, true
}

// pcmDuration measures the data chunk only. The decoder's own Duration counts
// the RIFF header too.
func pcmDuration(dec *wav.Decoder) time.Duration {
	if err := dec.FwdToPCM(); err != nil {
		return 0
	}
	frameBytes := int64(dec.NumChans) * int64(dec.BitDepth/8)
	if frameBytes == 0 || dec.SampleRate == 0 {
		return 0
	}
	frames := int64(dec.PCMSize) / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate)
}
