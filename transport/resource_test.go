package transport

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestParseResource(t *testing.T) {
	res, err := ParseResource("TCPIP::192.168.1.70::INSTR")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Kind, test.ShouldEqual, "TCPIP")
	test.That(t, res.Address, test.ShouldEqual, "192.168.1.70")
	test.That(t, res.String(), test.ShouldEqual, "TCPIP::192.168.1.70::INSTR")

	res, err = ParseResource("scope.lab")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Kind, test.ShouldEqual, "TCPIP")
	test.That(t, res.Address, test.ShouldEqual, "scope.lab")
	test.That(t, res.String(), test.ShouldEqual, "TCPIP::scope.lab::INSTR")

	res, err = ParseResource("GPIB0::7::INSTR")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Kind, test.ShouldEqual, "GPIB")
	test.That(t, res.Board, test.ShouldEqual, 0)
	test.That(t, res.Address, test.ShouldEqual, "7")

	res, err = ParseResource("USB0::0x0699::0x0408::C010123::INSTR")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Kind, test.ShouldEqual, "USB")
	test.That(t, res.Vendor, test.ShouldEqual, uint16(0x0699))
	test.That(t, res.Product, test.ShouldEqual, uint16(0x0408))
	test.That(t, res.Serial, test.ShouldEqual, "C010123")

	res, err = ParseResource("USB::1689::1032::INSTR")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Vendor, test.ShouldEqual, uint16(0x0699))
	test.That(t, res.Serial, test.ShouldEqual, "")

	res, err = ParseResource("ASRL/dev/ttyUSB0::INSTR")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Kind, test.ShouldEqual, "ASRL")
	test.That(t, res.Address, test.ShouldEqual, "/dev/ttyUSB0")

	res, err = ParseResource("SIM::MDO3024")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Kind, test.ShouldEqual, "SIM")
	test.That(t, res.Address, test.ShouldEqual, "MDO3024")

	for _, bad := range []string{"", "  ", "USB::0x0699", "USB::zz::0x0408::INSTR", "TCPIP::", "GPIB0::", "ASRL", "0::1::INSTR", "USB::0x0699::0x10000::INSTR"} {
		_, err := ParseResource(bad)
		test.That(t, err, test.ShouldNotBeNil)
	}
}

type nopTransport struct{ Transport }

func (nopTransport) Close() error { return nil }

func TestOpen(t *testing.T) {
	var got Resource
	Register("test", func(ctx context.Context, res Resource, opts Options) (Transport, error) {
		got = res
		if res.Address == "broken" {
			return nil, errors.New("no route")
		}
		return nopTransport{}, nil
	})

	tr, err := Open(context.Background(), "TEST::dev1", Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tr.Close(), test.ShouldBeNil)
	test.That(t, got.Address, test.ShouldEqual, "dev1")

	_, err = Open(context.Background(), "TEST::broken", Options{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "TEST::broken")
	test.That(t, err.Error(), test.ShouldContainSubstring, "no route")

	_, err = Open(context.Background(), "GPIB0::7::INSTR", Options{})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, Options{}.IOTimeout(), test.ShouldEqual, DefaultTimeout)
	test.That(t, Options{Timeout: 2 * DefaultTimeout}.IOTimeout(), test.ShouldEqual, 2*DefaultTimeout)
	test.That(t, Options{}.Log(), test.ShouldNotBeNil)
}
