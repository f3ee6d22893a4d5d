package transport

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Resource is a parsed VISA-style resource identifier.
//
//	TCPIP::192.168.1.70::INSTR
//	USB::0x0699::0x0408::C010123::INSTR
//	ASRL/dev/ttyUSB0::INSTR
//	SIM::MDO3024
//
// A bare host name is treated as TCPIP::<host>::INSTR.
type Resource struct {
	Kind    string
	Board   int
	Address string
	Vendor  uint16
	Product uint16
	Serial  string
	raw     string
}

func (r Resource) String() string {
	return r.raw
}

// ParseResource splits a resource identifier into its fields.
func ParseResource(s string) (Resource, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Resource{}, errors.New("empty resource identifier")
	}
	if !strings.Contains(s, "::") && !strings.HasPrefix(strings.ToUpper(s), "ASRL") {
		s = "TCPIP::" + s + "::INSTR"
	}
	parts := strings.Split(s, "::")
	head := parts[0]
	kind := strings.TrimRightFunc(strings.ToUpper(head), func(r rune) bool { return r >= '0' && r <= '9' })
	res := Resource{raw: s}
	if strings.HasPrefix(strings.ToUpper(head), "ASRL") {
		res.Kind = "ASRL"
		res.Address = head[len("ASRL"):]
		if res.Address == "" {
			return Resource{}, errors.Errorf("serial resource %q has no port", s)
		}
		return res, nil
	}
	if kind == "" {
		return Resource{}, errors.Errorf("resource %q has no interface kind", s)
	}
	res.Kind = kind
	if board := head[len(kind):]; board != "" {
		n, err := strconv.Atoi(board)
		if err != nil {
			return Resource{}, errors.Errorf("invalid board number in %q", s)
		}
		res.Board = n
	}

	switch res.Kind {
	case "USB":
		if len(parts) < 3 {
			return Resource{}, errors.Errorf("USB resource %q needs vendor and product ids", s)
		}
		vid, err := strconv.ParseUint(parts[1], 0, 16)
		if err != nil {
			return Resource{}, errors.Wrapf(err, "vendor id in %q", s)
		}
		pid, err := strconv.ParseUint(parts[2], 0, 16)
		if err != nil {
			return Resource{}, errors.Wrapf(err, "product id in %q", s)
		}
		res.Vendor, res.Product = uint16(vid), uint16(pid)
		if len(parts) > 3 && !strings.EqualFold(parts[3], "INSTR") {
			res.Serial = parts[3]
		}
	default:
		// TCPIP, GPIB, SIM and any other registered kind
		if len(parts) < 2 || parts[1] == "" {
			return Resource{}, errors.Errorf("resource %q has no address", s)
		}
		res.Address = parts[1]
	}
	return res, nil
}
