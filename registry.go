package armbot

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// BusRegistry hands out shared I2C bus handles. The PWM controller and the
// ADC sit on the same wires, so both adapters must reuse one kernel device;
// handles are refcounted and the last release closes the bus.
type BusRegistry struct {
	mu      sync.Mutex
	open    func(name string) (i2c.BusCloser, error)
	entries map[string]*busEntry
}

type busEntry struct {
	bus  i2c.BusCloser
	refs int
}

// NewBusRegistry returns a registry backed by the host's bus enumeration.
// Callers must have initialized the periph host first.
func NewBusRegistry() *BusRegistry {
	return &BusRegistry{
		open:    i2creg.Open,
		entries: make(map[string]*busEntry),
	}
}

// Get opens the named bus, or bumps the refcount of an already-open one.
func (r *BusRegistry) Get(name string) (i2c.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[name]; ok {
		entry.refs++
		return entry.bus, nil
	}

	bus, err := r.open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %q", name)
	}
	r.entries[name] = &busEntry{bus: bus, refs: 1}
	return bus, nil
}

// Release drops one reference to the named bus, closing it when no user
// remains. Releasing an unknown bus is an error.
func (r *BusRegistry) Release(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[name]
	if !ok {
		return errors.Errorf("i2c bus %q is not open", name)
	}
	entry.refs--
	if entry.refs > 0 {
		return nil
	}
	delete(r.entries, name)
	if err := entry.bus.Close(); err != nil {
		return errors.Wrapf(err, "close i2c bus %q", name)
	}
	return nil
}

// Close closes every bus still open, regardless of refcounts.
func (r *BusRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for name, entry := range r.entries {
		err = multierr.Combine(err, errors.Wrapf(entry.bus.Close(), "close i2c bus %q", name))
		delete(r.entries, name)
	}
	return err
}
