package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a configuration document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatFor picks the format from the file extension. Anything other than
// .json is treated as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), jsonExtension) {
		return FormatJSON
	}
	return FormatYAML
}

// ExportPath returns path with its extension replaced by .json.
func ExportPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + jsonExtension
}

// Marshal encodes the configuration in the given format.
func (c *Configuration) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// Unmarshal decodes a configuration document in the given format. Unknown
// fields are rejected so typos do not silently drop settings.
func Unmarshal(data []byte, format Format) (*Configuration, error) {
	var c Configuration

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return nil, err
		}
	}

	if c.Multisig.Accounts == nil {
		c.Multisig.Accounts = []MultiSigAccount{}
	}
	c.normalize()
	return &c, nil
}

// normalize collapses empty token account maps to nil. Both encode to the same
// document, so a saved configuration loads back equal to what was saved.
func (c *Configuration) normalize() {
	for i := range c.Multisig.Accounts {
		if len(c.Multisig.Accounts[i].TokenAccounts) == 0 {
			c.Multisig.Accounts[i].TokenAccounts = nil
		}
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfigIO, "failed to read %s: %v", path, err)
	}

	c, err := Unmarshal(data, FormatFor(path))
	if err != nil {
		return nil, errors.Wrapf(ErrConfigIO, "failed to parse %s: %v", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration %s", path)
	}

	return c, nil
}

// Save validates and atomically writes the configuration to path, in the
// format implied by its extension.
func (c *Configuration) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.normalize()

	data, err := c.Marshal(FormatFor(path))
	if err != nil {
		return errors.Wrapf(ErrConfigIO, "failed to encode %s: %v", path, err)
	}

	if err := writeFile(path, data); err != nil {
		return errors.Wrapf(ErrConfigIO, "failed to write %s: %v", path, err)
	}
	return nil
}

// writeFile is replaced in tests to simulate a failing disk.
var writeFile = atomicWriteFile

// atomicWriteFile writes data to a temporary file next to path and renames it
// into place, so readers see either the old or the new document.
func atomicWriteFile(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+tempFilePattern)
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
