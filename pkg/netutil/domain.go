package netutil

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

const (
	maxHostnameSize = 253
	maxLabelSize    = 63
)

// ValidateHostname checks that value is usable as a DNS name for an RPC
// endpoint. Internationalized names are checked in their ASCII form.
func ValidateHostname(value string) error {
	if len(value) == 0 {
		return errors.New("hostname is empty")
	}

	ascii, err := idna.Lookup.ToASCII(value)
	if err != nil {
		return errors.Wrapf(err, "invalid hostname %q", value)
	}
	if len(ascii) > maxHostnameSize {
		return errors.Errorf("hostname exceeds %d bytes", maxHostnameSize)
	}

	for _, label := range strings.Split(strings.TrimSuffix(ascii, "."), ".") {
		if len(label) == 0 {
			return errors.Errorf("hostname %q has an empty label", value)
		}
		if len(label) > maxLabelSize {
			return errors.Errorf("hostname label exceeds %d bytes", maxLabelSize)
		}
	}
	return nil
}
