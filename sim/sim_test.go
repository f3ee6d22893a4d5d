package sim

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/neilo40/tek_remote/transport"
)

func TestOpenRegistered(t *testing.T) {
	tr, err := transport.Open(context.Background(), "SIM::TDS3014B", transport.Options{})
	test.That(t, err, test.ShouldBeNil)
	defer tr.Close()
	idn, err := tr.Query(context.Background(), "*IDN?")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idn, test.ShouldStartWith, "TEKTRONIX,TDS3014B,")
	n, err := tr.Query(context.Background(), "CONFIGURATION:ANALOG:NUMCHANNELS?")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, "4")
}

func TestSequence(t *testing.T) {
	ctx := context.Background()
	s, err := New("MDO3024")
	test.That(t, err, test.ShouldBeNil)
	s.CompleteAfterPolls = 2
	for _, cmd := range []string{"DESE 49", "*ESE 49", "*SRE 32", "*CLS", "ACQUIRE:STOPAFTER SEQUENCE", "ACQUIRE:STATE RUN", "*OPC"} {
		test.That(t, s.Write(ctx, cmd), test.ShouldBeNil)
	}
	test.That(t, s.Running(), test.ShouldBeTrue)

	stb, err := s.ReadStatusByte(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stb, test.ShouldEqual, byte(0))
	stb, err = s.ReadStatusByte(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stb, test.ShouldEqual, byte(stbESB|stbMSS))
	test.That(t, s.Running(), test.ShouldBeFalse)

	esr, err := s.Query(ctx, "*ESR?")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, esr, test.ShouldEqual, "1")
	esr, err = s.Query(ctx, "*ESR?")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, esr, test.ShouldEqual, "0")

	t.Run("run without single sequence", func(t *testing.T) {
		test.That(t, s.Write(ctx, "ACQUIRE:STOPAFTER RUNSTOP"), test.ShouldBeNil)
		test.That(t, s.Write(ctx, "ACQUIRE:STATE ON"), test.ShouldBeNil)
		test.That(t, s.Running(), test.ShouldBeFalse)
		test.That(t, s.Setting("ACQUIRE:STATE"), test.ShouldEqual, "1")
	})
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	s, err := New("MDO3024")
	test.That(t, err, test.ShouldBeNil)

	t.Run("header", func(t *testing.T) {
		test.That(t, s.Write(ctx, "HEADER ON"), test.ShouldBeNil)
		v, err := s.Query(ctx, "SELECT:CH2?")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, ":SELECT:CH2 0")
		test.That(t, s.Write(ctx, "HEADER OFF"), test.ShouldBeNil)
		v, err = s.Query(ctx, "SELECT:CH2?")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, "0")
	})

	t.Run("compound", func(t *testing.T) {
		test.That(t, s.Write(ctx, "HEADER ON"), test.ShouldBeNil)
		defer s.Write(ctx, "HEADER OFF")
		v, err := s.Query(ctx, "TRIGGER:B?")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, ":TRIGGER:B:BY TIME;EVENTS:COUNT 2;STATE 0;TIME 1.6E-8")
	})

	t.Run("unknown header", func(t *testing.T) {
		_, err := s.Query(ctx, "BOGUS?")
		test.That(t, errors.Is(err, transport.ErrTimeout), test.ShouldBeTrue)
		msg, err := s.Query(ctx, "EVMSG?")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, msg, test.ShouldEqual, `113,"Undefined header"`)
		msg, err = s.Query(ctx, "EVMSG?")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, msg, test.ShouldStartWith, "0,")
	})

	t.Run("quoted and boolean values", func(t *testing.T) {
		test.That(t, s.Write(ctx, "CH1:LABEL 'probe'"), test.ShouldBeNil)
		test.That(t, s.Setting("CH1:LABEL"), test.ShouldEqual, `"probe"`)
		test.That(t, s.Write(ctx, "SELECT:CH3 ON"), test.ShouldBeNil)
		test.That(t, s.Setting("SELECT:CH3"), test.ShouldEqual, "1")
	})

	t.Run("reject", func(t *testing.T) {
		s.Reject("CH1:SCALE", "Settings conflict")
		test.That(t, s.Write(ctx, "CH1:SCALE 2"), test.ShouldBeNil)
		test.That(t, s.Setting("CH1:SCALE"), test.ShouldEqual, "1.0")
		esr, err := s.Query(ctx, "*ESR?")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, esr, test.ShouldEqual, "32")
	})

	t.Run("closed", func(t *testing.T) {
		test.That(t, s.Close(), test.ShouldBeNil)
		test.That(t, s.Write(ctx, "*CLS"), test.ShouldNotBeNil)
	})
}

func TestCurve(t *testing.T) {
	ctx := context.Background()
	s, err := New("MDO3024")
	test.That(t, err, test.ShouldBeNil)
	s.SetChannel("CH1", Channel{Raw: []int8{-1, 0, 1, 2, 3}, YMult: 1, XIncr: 1, XUnit: "s", YUnit: "V"})
	test.That(t, s.Write(ctx, "DATA:SOURCE CH1"), test.ShouldBeNil)
	test.That(t, s.Write(ctx, "DATA:START 2"), test.ShouldBeNil)
	test.That(t, s.Write(ctx, "DATA:STOP 4"), test.ShouldBeNil)

	b, err := s.QueryBinary(ctx, "CURVE?")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, transport.DecodeInt8(b), test.ShouldResemble, []int8{0, 1, 2})

	pre, err := s.Query(ctx, "WFMOUTPRE?")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pre, test.ShouldContainSubstring, ";3;Y;")

	_, err = s.QueryBinary(ctx, "CURVE? EXTRA")
	test.That(t, err, test.ShouldBeNil)
	_, err = s.QueryBinary(ctx, "WAVFRM?")
	test.That(t, errors.Is(err, transport.ErrTimeout), test.ShouldBeTrue)
}
