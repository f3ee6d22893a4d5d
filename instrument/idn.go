package instrument

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Family groups models that share a command set.
type Family string

// Supported model families.
const (
	MDO3000  Family = "MDO3000"
	MSO4000B Family = "MSO4000B"
	MSO4000  Family = "MSO4000"
	TDS3000  Family = "TDS3000"
)

// IDN is the parsed answer to *IDN?.
type IDN struct {
	Manufacturer    string
	Model           string
	SerialNumber    string
	FirmwareVersion string
}

// ParseIDN parses e.g. "TEKTRONIX,MDO3024,C012345,CF:91.1CT FV:v1.30".
func ParseIDN(resp string) (IDN, error) {
	fields := strings.Split(strings.Trim(strings.TrimSpace(resp), ":"), ",")
	if len(fields) < 4 {
		return IDN{}, errors.Errorf("malformed identification %q", resp)
	}
	idn := IDN{
		Manufacturer: strings.TrimSpace(fields[0]),
		Model:        strings.ReplaceAll(fields[1], " ", ""),
		SerialNumber: strings.TrimSpace(fields[2]),
	}
	for _, version := range strings.Fields(fields[3]) {
		if k, v, ok := strings.Cut(version, ":"); ok && k == "FV" {
			idn.FirmwareVersion = v
		}
	}
	return idn, nil
}

var (
	mdo3000Model  = regexp.MustCompile(`^MDO30(1|2|3|5)[24]$|^MDO310[24]$`)
	mso4000bModel = regexp.MustCompile(`^(MSO|DPO|MDO)4\d{3}(B|C|B-L|-\d)$`)
	tds3000Model  = regexp.MustCompile(`^TDS30([1-6])([24])[BC]*$`)
)

// LookupFamily returns the family of a model number or a ModelError.
func LookupFamily(model string) (Family, error) {
	switch {
	case mdo3000Model.MatchString(model):
		return MDO3000, nil
	case model == "MSO4104":
		return MSO4000, nil
	case mso4000bModel.MatchString(model):
		return MSO4000B, nil
	case tds3000Model.MatchString(model):
		return TDS3000, nil
	}
	return "", NewModelError(model)
}
