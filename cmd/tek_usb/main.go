package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/gousb"

	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
	"github.com/neilo40/tek_remote/transport/usbtmc"
)

// https://pkg.go.dev/github.com/google/gousb
// may need to modprobe -r usbtmc if there are device busy errors

type device struct {
	vid, pid gousb.ID
	serial   string
}

// Resource returns the identifier that opens the device with tek_visa.
func (d device) Resource() string {
	if d.serial == "" {
		return fmt.Sprintf("USB::0x%04x::0x%04x::INSTR", uint16(d.vid), uint16(d.pid))
	}
	return fmt.Sprintf("USB::0x%04x::0x%04x::%s::INSTR", uint16(d.vid), uint16(d.pid), d.serial)
}

// enumerate lists the attached Tektronix devices. The devices are closed again so that the
// USBTMC transport can claim them.
func enumerate() ([]device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == usbtmc.TektronixVendorID
	})
	var found []device
	for _, d := range devs {
		sn, serr := d.SerialNumber()
		if serr != nil {
			sn = ""
		}
		found = append(found, device{vid: d.Desc.Vendor, pid: d.Desc.Product, serial: sn})
		d.Close()
	}
	if err != nil && len(found) == 0 {
		return nil, err
	}
	return found, nil
}

func main() {
	logger := logging.NewLogger("tek_usb")
	if len(os.Args) > 1 && os.Args[1] == "-debug" {
		logger = logging.NewDebugLogger("tek_usb")
	}

	devs, err := enumerate()
	if err != nil {
		log.Fatalf("Could not enumerate USB devices: %v", err)
	}
	if len(devs) == 0 {
		log.Fatal("No Tektronix device found")
	}

	opts := transport.Options{Logger: logger}
	for _, d := range devs {
		conn, err := usbtmc.Open(uint16(d.vid), uint16(d.pid), d.serial, opts)
		if err != nil {
			logger.Warnw("open failed", "resource", d.Resource(), "err", err)
			continue
		}
		idn, err := conn.Query(context.Background(), "*IDN?")
		if cerr := conn.Close(); cerr != nil {
			logger.Debugw("close failed", "err", cerr)
		}
		if err != nil {
			logger.Warnw("*IDN? failed", "resource", d.Resource(), "err", err)
			continue
		}
		fmt.Printf("%s\t%s\n", d.Resource(), idn)
	}
}
