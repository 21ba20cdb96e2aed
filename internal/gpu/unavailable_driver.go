package gpu

import "fmt"

// unavailableDriver stands in when no device can be reached. Every native
// operation fails with ErrDriverUnavailable.
type unavailableDriver struct {
	reason string
}

func (d *unavailableDriver) err() error {
	return fmt.Errorf("%w: %s", ErrDriverUnavailable, d.reason)
}

func (d *unavailableDriver) Name() string { return "unavailable" }

func (d *unavailableDriver) IsAvailable() bool { return false }

func (d *unavailableDriver) LoadLibrary(string) (Library, error) { return 0, d.err() }

func (d *unavailableDriver) GetKernel(Library, string) (Kernel, error) { return 0, d.err() }

func (d *unavailableDriver) UnloadLibrary(Library) error { return d.err() }

func (d *unavailableDriver) Launch(Kernel, LaunchConfig, [][]byte) error { return d.err() }

func (d *unavailableDriver) Cleanup() error { return nil }
