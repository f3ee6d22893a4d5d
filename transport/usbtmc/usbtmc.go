// Package usbtmc talks to instruments over USB using the USBTMC/USB488 class protocol.
package usbtmc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/google/gousb"
	"github.com/pkg/errors"

	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
)

// https://pkg.go.dev/github.com/google/gousb
// USBTMC 1.0 / USB488 framing. May need to modprobe -r usbtmc if there are device busy errors.

// TektronixVendorID is the USB vendor id of Tektronix instruments.
const TektronixVendorID = 0x0699

const (
	usbtmcDevDepMsgOut       = 1
	usbtmcRequestDevDepMsgIn = 2
	usbtmcHeaderLen          = 12
	usbtmcMaxTransfer        = 1024 * 1024

	usb488ReadStatusByte = 128
	usbtmcStatusSuccess  = 1
	// bmRequestType: device to host, class, interface
	usbtmcClassInterfaceIn = 0xA1
)

func init() {
	transport.Register("USB", open)
}

// Conn talks to an instrument over USB bulk endpoints using the test and measurement class.
type Conn struct {
	mu     sync.Mutex
	ctx    *gousb.Context
	dev    *gousb.Device
	intf   *gousb.Interface
	done   func()
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
	tag    byte
	stbTag byte
	opts   transport.Options
	logger logging.Logger
}

func open(ctx context.Context, res transport.Resource, opts transport.Options) (transport.Transport, error) {
	return Open(res.Vendor, res.Product, res.Serial, opts)
}

// Open claims the default interface of the first device matching vid/pid (and serial,
// if not empty).
func Open(vid, pid uint16, serial string, opts transport.Options) (*Conn, error) {
	usbCtx := gousb.NewContext()
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && uint16(desc.Product) == pid
	})
	if err != nil && len(devs) == 0 {
		usbCtx.Close()
		return nil, errors.Wrap(err, "enumerating USB devices")
	}
	var dev *gousb.Device
	for _, d := range devs {
		if dev != nil {
			d.Close()
			continue
		}
		if serial != "" {
			sn, err := d.SerialNumber()
			if err != nil || sn != serial {
				d.Close()
				continue
			}
		}
		dev = d
	}
	if dev == nil {
		usbCtx.Close()
		return nil, errors.Errorf("no USB device %04x:%04x %s found", vid, pid, serial)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		opts.Log().Debugw("auto detach not supported", "err", err)
	}

	// The default interface is always #0 alt #0 in the currently active config.
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, errors.Wrapf(err, "%s.DefaultInterface()", dev)
	}
	t := &Conn{ctx: usbCtx, dev: dev, intf: intf, done: done, opts: opts, logger: opts.Log()}
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && t.epIn == nil {
			t.epIn, err = intf.InEndpoint(ep.Number)
		} else if ep.Direction == gousb.EndpointDirectionOut && t.epOut == nil {
			t.epOut, err = intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			//nolint:errcheck
			t.Close()
			return nil, errors.Wrapf(err, "opening endpoint %d", ep.Number)
		}
	}
	if t.epIn == nil || t.epOut == nil {
		//nolint:errcheck
		t.Close()
		return nil, errors.New("device has no bulk IN/OUT endpoint pair")
	}
	return t, nil
}

// Close releases the interface, the device and the libusb context.
func (t *Conn) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		t.done()
	}
	var err error
	if t.dev != nil {
		err = t.dev.Close()
	}
	if cerr := t.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func (t *Conn) nextTag() byte {
	t.tag++
	if t.tag == 0 {
		t.tag = 1
	}
	return t.tag
}

func usbError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gousb.ErrorTimeout) {
		if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrapf(transport.ErrTimeout, "%s", op)
		}
	}
	return errors.Wrap(err, op)
}

func header(msgID, tag byte, size uint32, eom bool) []byte {
	h := make([]byte, usbtmcHeaderLen)
	h[0] = msgID
	h[1] = tag
	h[2] = ^tag
	binary.LittleEndian.PutUint32(h[4:8], size)
	if eom {
		h[8] = 1
	}
	return h
}

func (t *Conn) write(ctx context.Context, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, t.opts.IOTimeout())
	defer cancel()
	payload := []byte(msg + "\n")
	buf := header(usbtmcDevDepMsgOut, t.nextTag(), uint32(len(payload)), true)
	buf = append(buf, payload...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	if _, err := t.epOut.WriteContext(ctx, buf); err != nil {
		return usbError(ctx, "write "+msg, err)
	}
	return nil
}

// read collects one device-dependent message, issuing IN requests until EOM.
func (t *Conn) read(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.IOTimeout())
	defer cancel()
	var msg bytes.Buffer
	for {
		tag := t.nextTag()
		if _, err := t.epOut.WriteContext(ctx, header(usbtmcRequestDevDepMsgIn, tag, usbtmcMaxTransfer, false)); err != nil {
			return nil, usbError(ctx, "request message in", err)
		}
		buf := make([]byte, usbtmcMaxTransfer+usbtmcHeaderLen+3)
		n, err := t.epIn.ReadContext(ctx, buf)
		if err != nil {
			return nil, usbError(ctx, "read", err)
		}
		if n < usbtmcHeaderLen || buf[0] != usbtmcRequestDevDepMsgIn || buf[1] != tag {
			return nil, errors.Errorf("malformed USBTMC response header % x", buf[:min(n, usbtmcHeaderLen)])
		}
		size := int(binary.LittleEndian.Uint32(buf[4:8]))
		data := buf[usbtmcHeaderLen:n]
		// the rest of a long transfer can arrive in further packets
		for len(data) < size {
			more := make([]byte, size-len(data)+3)
			m, err := t.epIn.ReadContext(ctx, more)
			if err != nil {
				return nil, usbError(ctx, "read", err)
			}
			data = append(data, more[:m]...)
		}
		msg.Write(data[:size])
		if buf[8]&1 == 1 {
			return msg.Bytes(), nil
		}
	}
}

// Write sends a command.
func (t *Conn) Write(ctx context.Context, cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(ctx, cmd)
}

// Query sends a command and reads the response message.
func (t *Conn) Query(ctx context.Context, cmd string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.write(ctx, cmd); err != nil {
		return "", err
	}
	b, err := t.read(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// QueryBinary sends a command and decodes the definite-length block that answers it.
func (t *Conn) QueryBinary(ctx context.Context, cmd string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.write(ctx, cmd); err != nil {
		return nil, err
	}
	b, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := transport.ReadBlock(bufio.NewReader(bytes.NewReader(b)))
	if err != nil {
		return nil, errors.Wrapf(err, "reading block for %s", cmd)
	}
	t.logger.Debugw("block received", "cmd", cmd, "bytes", len(payload))
	return payload, nil
}

// ReadStatusByte uses the USB488 READ_STATUS_BYTE control request, which does not go through
// the bulk message queue.
func (t *Conn) ReadStatusByte(ctx context.Context) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// bTag for control requests must be 2..127
	t.stbTag++
	if t.stbTag < 2 || t.stbTag > 127 {
		t.stbTag = 2
	}
	resp := make([]byte, 3)
	n, err := t.dev.Control(usbtmcClassInterfaceIn, usb488ReadStatusByte, uint16(t.stbTag), uint16(t.intf.Setting.Number), resp)
	if err != nil {
		return 0, usbError(ctx, "read status byte", err)
	}
	if n < 3 || resp[0] != usbtmcStatusSuccess {
		return 0, errors.Errorf("read status byte: USBTMC status %d", resp[0])
	}
	return resp[2], nil
}
