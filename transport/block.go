package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// ReadBlock reads an IEEE 488.2 definite-length arbitrary block (#<n><length><payload>)
// and the trailing terminator, returning the payload.
func ReadBlock(r *bufio.Reader) ([]byte, error) {
	// skip anything (header echo, whitespace) before the block marker
	if _, err := r.ReadSlice('#'); err != nil {
		return nil, err
	}
	nDigits, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if nDigits < '1' || nDigits > '9' {
		return nil, errors.Errorf("unsupported block length digit %q", nDigits)
	}
	lenText := make([]byte, int(nDigits-'0'))
	if _, err := io.ReadFull(r, lenText); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(lenText))
	if err != nil {
		return nil, errors.Wrapf(err, "block length %q", lenText)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	// pop off the terminator if it already arrived; waiting for one could block until the
	// read deadline when the device sends none
	if r.Buffered() == 0 {
		return payload, nil
	}
	if b, err := r.Peek(1); err == nil && b[0] == '\n' {
		//nolint:errcheck
		r.ReadByte()
	}
	return payload, nil
}

// DecodeInt8 reinterprets a byte payload as signed 8-bit samples.
func DecodeInt8(payload []byte) []int8 {
	out := make([]int8, len(payload))
	for i, b := range payload {
		out[i] = int8(b)
	}
	return out
}

// DecodeFloat32 decodes a payload of IEEE-754 single precision values.
func DecodeFloat32(payload []byte, order binary.ByteOrder) ([]float32, error) {
	if len(payload)%4 != 0 {
		return nil, errors.Errorf("float32 payload length %d is not a multiple of 4", len(payload))
	}
	out := make([]float32, len(payload)/4)
	for i := range out {
		out[i] = math.Float32frombits(order.Uint32(payload[4*i:]))
	}
	return out, nil
}

// EncodeBlock frames a payload as a definite-length block with a newline terminator.
func EncodeBlock(payload []byte) []byte {
	n := strconv.Itoa(len(payload))
	out := make([]byte, 0, len(payload)+len(n)+3)
	out = append(out, '#', byte('0'+len(n)))
	out = append(out, n...)
	out = append(out, payload...)
	return append(out, '\n')
}
