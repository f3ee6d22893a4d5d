// Package transport defines the synchronous command/query channel used to talk to an
// instrument and the registry of drivers that open one. Drivers live in subpackages and
// register themselves when imported.
package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/neilo40/tek_remote/internal/logging"
)

// ErrTimeout is returned when the underlying channel stops answering.
var ErrTimeout = errors.New("transport timeout")

// DefaultTimeout is the I/O timeout used when Options.Timeout is zero.
const DefaultTimeout = 4 * time.Second

// Transport is a reliable request/response channel to a single device.
type Transport interface {
	// Write sends a command that produces no response.
	Write(ctx context.Context, cmd string) error
	// Query sends a command and returns the response line without its terminator.
	Query(ctx context.Context, cmd string) (string, error)
	// QueryBinary sends a command and returns the payload of the definite-length block
	// that answers it.
	QueryBinary(ctx context.Context, cmd string) ([]byte, error)
	// ReadStatusByte returns the status byte without waiting on pending operations.
	ReadStatusByte(ctx context.Context) (byte, error)
	Close() error
}

// Options configure an opened transport.
type Options struct {
	Timeout  time.Duration
	BaudRate int
	Logger   logging.Logger
}

// IOTimeout returns Timeout, or DefaultTimeout when it is not set.
func (o Options) IOTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Log returns Logger, or a no-op logger when it is not set.
func (o Options) Log() logging.Logger {
	if o.Logger == nil {
		return logging.NewNopLogger()
	}
	return o.Logger
}

// Opener creates a transport for a parsed resource.
type Opener func(ctx context.Context, res Resource, opts Options) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Opener{}
)

// Register makes an opener available for resources of the given interface kind
// (TCPIP, USB, ASRL, GPIB, ...). Registering a kind twice replaces the opener.
func Register(kind string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToUpper(kind)] = opener
}

// Open parses the resource identifier and opens it with the registered opener.
func Open(ctx context.Context, resource string, opts Options) (Transport, error) {
	res, err := ParseResource(resource)
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	opener, ok := registry[res.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no transport registered for %q resources", res.Kind)
	}
	opts.Log().Debugw("opening transport", "resource", res.String())
	t, err := opener(ctx, res, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", res)
	}
	return t, nil
}
