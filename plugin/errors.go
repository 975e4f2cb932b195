package plugin

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure patterns. These allow both errors.Is()
// checks and errors.As() for detailed information.
var (
	// ErrIncompatibleHostAPI is returned when a plugin declares a host API
	// version this host cannot serve.
	ErrIncompatibleHostAPI = errors.New("incompatible host API version")

	// ErrIntegrityCheckFailed is returned when digest verification fails.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")

	// ErrNotActivated is returned when an adapter factory is invoked before
	// its backing plugin has been activated.
	ErrNotActivated = errors.New("plugin not activated")
)

// HostAPIError indicates a plugin requires a host API version outside the
// range this host supports.
type HostAPIError struct {
	Plugin    string
	Required  string
	Supported string
}

func (e *HostAPIError) Error() string {
	return fmt.Sprintf(
		"plugin %q requires host API %q, host supports %q",
		e.Plugin, e.Required, e.Supported,
	)
}

// Is implements error matching for errors.Is() checks.
func (e *HostAPIError) Is(target error) bool {
	return target == ErrIncompatibleHostAPI
}

// IntegrityError indicates a digest mismatch between the lockfile and the
// plugin binary on disk.
type IntegrityError struct {
	Plugin   string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("integrity check failed: expected %s, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf(
		"plugin %q integrity check failed: expected %s, got %s",
		e.Plugin, e.Expected, e.Actual,
	)
}

// Is implements error matching for errors.Is() checks.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityCheckFailed
}
