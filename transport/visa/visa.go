// Package visa opens TCPIP and GPIB resources through the system VISA library.
package visa

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	vi "github.com/jpoirier/visa"
	"github.com/pkg/errors"

	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
)

// Refer to the Tektronix MDO3000/MSO4000B programmer manuals for the command set.

const (
	visaReadChunk = 64 * 1024

	// status codes that the binding does not name
	visaErrorTimeout    = 0xBFFF0015
	visaSuccessMaxCount = 0x3FFF0006
)

func init() {
	transport.Register("TCPIP", openVISA)
	transport.Register("GPIB", openVISA)
}

// Conn talks to an instrument through the system VISA library.
type Conn struct {
	mu              sync.Mutex
	Instr           vi.Object
	ResourceManager vi.Session
	resource        string
	logger          logging.Logger
}

func openVISA(ctx context.Context, res transport.Resource, opts transport.Options) (transport.Transport, error) {
	v := &Conn{logger: opts.Log()}
	if err := v.Init(res.String()); err != nil {
		return nil, err
	}
	return v, nil
}

// Init opens a session to the default resource manager and then to the instrument.
func (v *Conn) Init(connStr string) error {
	rm, status := vi.OpenDefaultRM()
	if status < vi.SUCCESS {
		return errors.New("could not open a session to the VISA Resource Manager")
	}
	v.ResourceManager = rm

	instr, status := rm.Open(connStr, vi.NULL, vi.NULL)
	if status < vi.SUCCESS {
		rm.Close()
		return errors.Errorf("an error occurred opening the session to %s", connStr)
	}
	v.Instr = instr
	v.resource = connStr
	return nil
}

// Close closes the instrument session and the resource manager.
func (v *Conn) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Instr.Close()
	v.ResourceManager.Close()
	return nil
}

func visaError(op string, status vi.Status) error {
	if uint32(status) == visaErrorTimeout {
		return errors.Wrapf(transport.ErrTimeout, "%s", op)
	}
	return errors.Errorf("%s failed with status %x", op, uint32(status))
}

func (v *Conn) write(msg string) error {
	b := []byte(msg + "\n")
	_, status := v.Instr.Write(b, uint32(len(b)))
	if status < vi.SUCCESS {
		return visaError("write "+msg, status)
	}
	return nil
}

// Write sends a command.
func (v *Conn) Write(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.write(cmd)
}

// Query sends a command and reads one response message.
func (v *Conn) Query(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.write(cmd); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		b, _, status := v.Instr.Read(visaReadChunk)
		if status < vi.SUCCESS {
			return "", visaError("read "+cmd, status)
		}
		sb.Write(b)
		if uint32(status) != visaSuccessMaxCount {
			break
		}
	}
	return strings.TrimRight(sb.String(), "\r\n"), nil
}

// QueryBinary sends a command and reads a definite-length block.
func (v *Conn) QueryBinary(ctx context.Context, cmd string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.write(cmd); err != nil {
		return nil, err
	}
	payload, err := transport.ReadBlock(bufio.NewReaderSize(&visaReader{instr: v.Instr, cmd: cmd}, visaReadChunk))
	if err != nil {
		return nil, errors.Wrapf(err, "reading block for %s", cmd)
	}
	v.logger.Debugw("block received", "cmd", cmd, "bytes", len(payload))
	return payload, nil
}

// ReadStatusByte queries *STB?, which the device answers without waiting for pending operations.
func (v *Conn) ReadStatusByte(ctx context.Context) (byte, error) {
	resp, err := v.Query(ctx, "*STB?")
	if err != nil {
		return 0, err
	}
	var stb int
	if _, err := fmt.Sscan(resp, &stb); err != nil {
		return 0, errors.Wrapf(err, "parsing status byte %q", resp)
	}
	return byte(stb), nil
}

// visaReader adapts chunked VISA reads to io.Reader, reporting EOF once the device
// signalled the end of the message.
type visaReader struct {
	instr vi.Object
	cmd   string
	end   bool
}

func (r *visaReader) Read(p []byte) (int, error) {
	if r.end {
		return 0, io.EOF
	}
	b, _, status := r.instr.Read(uint32(len(p)))
	if status < vi.SUCCESS {
		return 0, visaError("read "+r.cmd, status)
	}
	if uint32(status) != visaSuccessMaxCount {
		r.end = true
	}
	return copy(p, b), nil
}
