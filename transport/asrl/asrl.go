// Package asrl opens ASRL resources on an RS-232 port.
package asrl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
)

// DefaultBaudRate matches the factory RS-232 setting of the TDS3000 series.
const DefaultBaudRate = 9600

func init() {
	transport.Register("ASRL", open)
}

// Port talks to an instrument over an RS-232 port with LF-terminated messages.
type Port struct {
	mu     sync.Mutex
	port   serial.Port
	r      *bufio.Reader
	path   string
	logger logging.Logger
}

func open(ctx context.Context, res transport.Resource, opts transport.Options) (transport.Transport, error) {
	return Open(res.Address, opts)
}

// Open opens the port at path, e.g. /dev/ttyUSB0.
func Open(path string, opts transport.Options) (*Port, error) {
	baud := opts.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial %s", path)
	}
	if err := port.SetReadTimeout(opts.IOTimeout()); err != nil {
		//nolint:errcheck
		port.Close()
		return nil, errors.Wrap(err, "setting read timeout")
	}
	s := &Port{port: port, path: path, logger: opts.Log()}
	s.r = bufio.NewReader(timeoutReader{port})
	return s, nil
}

// timeoutReader turns the (0, nil) result the port returns on a read timeout into transport.ErrTimeout.
type timeoutReader struct {
	port serial.Port
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, transport.ErrTimeout
	}
	return n, nil
}

// Close closes the port.
func (s *Port) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

func (s *Port) write(cmd string) error {
	if _, err := io.WriteString(s.port, cmd+"\n"); err != nil {
		return errors.Wrapf(err, "write %s", cmd)
	}
	return nil
}

// readLine returns the next non-empty line. An empty one is the terminator of a block that
// had not arrived when the block was read.
func (s *Port) readLine(cmd string) (string, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return "", errors.Wrapf(err, "read %s", cmd)
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			return line, nil
		}
	}
}

// Write sends a command.
func (s *Port) Write(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cmd)
}

// Query sends a command and reads one response line.
func (s *Port) Query(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(cmd); err != nil {
		return "", err
	}
	return s.readLine(cmd)
}

// QueryBinary sends a command and reads a definite-length block. Anything buffered ahead of
// the block is discarded.
func (s *Port) QueryBinary(ctx context.Context, cmd string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(cmd); err != nil {
		return nil, err
	}
	payload, err := transport.ReadBlock(s.r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading block for %s", cmd)
	}
	s.logger.Debugw("block received", "cmd", cmd, "bytes", len(payload), "port", s.path)
	return payload, nil
}

// ReadStatusByte queries *STB?; RS-232 has no out-of-band status read.
func (s *Port) ReadStatusByte(ctx context.Context) (byte, error) {
	resp, err := s.Query(ctx, "*STB?")
	if err != nil {
		return 0, err
	}
	var stb int
	if _, err := fmt.Sscan(string(bytes.TrimSpace([]byte(resp))), &stb); err != nil {
		return 0, errors.Wrapf(err, "parsing status byte %q", resp)
	}
	return byte(stb), nil
}
