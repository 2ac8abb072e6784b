package manage

import "fmt"

// Predefined errors
var (
	// ErrNilCore is returned when a Manager is created without a Core
	ErrNilCore = fmt.Errorf("manage: core is required")
	// ErrNilConfig is returned when a Manager is created without a config
	ErrNilConfig = fmt.Errorf("manage: config is required")
	// ErrNilBackend is returned when the configuration has no backend
	ErrNilBackend = fmt.Errorf("manage: backend is required")
	// ErrJanitorRunning is returned when StartJanitor is called twice
	ErrJanitorRunning = fmt.Errorf("manage: janitor already running")
)

// ErrInvalidName returns an error for an invalid manager name
func ErrInvalidName(name string) error {
	return fmt.Errorf("manage: invalid name: %q (must be non-empty)", name)
}

// ErrJanitor wraps a janitor scheduling error
func ErrJanitor(err error) error {
	return fmt.Errorf("manage: failed to schedule janitor: %w", err)
}

// ErrParseEnv wraps an environment parsing error
func ErrParseEnv(err error) error {
	return fmt.Errorf("manage: failed to parse environment: %w", err)
}
