package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestReadBlock(t *testing.T) {
	payload := []byte{0x00, 0x19, 0x32, 0xff, 0x80}
	r := bufio.NewReader(bytes.NewReader(EncodeBlock(payload)))
	got, err := ReadBlock(r)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, payload)
	_, err = r.ReadByte()
	test.That(t, err, test.ShouldEqual, io.EOF)

	t.Run("header echo and no terminator", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader([]byte(":CURVE #13abc")))
		got, err := ReadBlock(r)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, []byte("abc"))
	})

	t.Run("payload containing terminators", func(t *testing.T) {
		payload := bytes.Repeat([]byte{'\n', '#'}, 600)
		got, err := ReadBlock(bufio.NewReader(bytes.NewReader(EncodeBlock(payload))))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, payload)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := ReadBlock(bufio.NewReader(bytes.NewReader([]byte("#10\n"))))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldBeEmpty)
	})

	t.Run("indefinite length", func(t *testing.T) {
		_, err := ReadBlock(bufio.NewReader(bytes.NewReader([]byte("#0abc\n"))))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("terminator not yet sent", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pr.Close()
		go func() {
			//nolint:errcheck
			pw.Write([]byte("#13abc"))
		}()
		got, err := ReadBlock(bufio.NewReader(pr))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, []byte("abc"))
	})

	t.Run("short payload", func(t *testing.T) {
		_, err := ReadBlock(bufio.NewReader(bytes.NewReader([]byte("#210abc"))))
		test.That(t, err, test.ShouldEqual, io.ErrUnexpectedEOF)
	})
}

func TestEncodeBlock(t *testing.T) {
	test.That(t, string(EncodeBlock([]byte("abc"))), test.ShouldEqual, "#13abc\n")
	test.That(t, string(EncodeBlock(make([]byte, 10000))[:7]), test.ShouldEqual, "#510000")
}

func TestDecode(t *testing.T) {
	test.That(t, DecodeInt8([]byte{0x00, 0x7f, 0x80, 0xff}), test.ShouldResemble, []int8{0, 127, -128, -1})

	want := []float32{1e-3, -2.5, float32(math.Inf(1))}
	buf := make([]byte, 4*len(want))
	for i, v := range want {
		binary.BigEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	got, err := DecodeFloat32(buf, binary.BigEndian)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, want)

	_, err = DecodeFloat32(buf[:5], binary.BigEndian)
	test.That(t, err, test.ShouldNotBeNil)
}
