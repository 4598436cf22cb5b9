package netutil

import (
	"net"
	"net/url"

	"github.com/pkg/errors"
)

// ValidateEndpointUrl validates a URL whose scheme is one of schemes and
// whose host is an IP address or a valid hostname. No connection is made.
func ValidateEndpointUrl(value string, schemes ...string) error {
	if len(value) == 0 {
		return errors.New("url is empty")
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}

	var allowed bool
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Errorf("url scheme must be one of %v", schemes)
	}

	host := parsed.Hostname()
	if len(host) == 0 {
		return errors.New("host component missing")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if err := ValidateHostname(host); err != nil {
		return errors.Wrap(err, "host is not a valid hostname")
	}
	return nil
}

// ValidateHttpUrl validates a URL for an HTTP scheme
func ValidateHttpUrl(value string) error {
	return ValidateEndpointUrl(value, "http", "https")
}

// ValidateWebsocketUrl validates a URL for a websocket scheme
func ValidateWebsocketUrl(value string) error {
	return ValidateEndpointUrl(value, "ws", "wss")
}
