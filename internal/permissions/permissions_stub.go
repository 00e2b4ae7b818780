//go:build !darwin

package permissions

// CheckMicrophone always reports access on platforms without a privacy gate.
func CheckMicrophone() Status {
	return StatusAuthorized
}

// RequestMicrophone is a no-op on non-macOS platforms.
func RequestMicrophone() {}
