// Package shortvec implements the compact-u16 length prefix used by the
// Solana wire format.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedBytes = 3

var ErrLengthOverflow = errors.Errorf("length exceeds %d", math.MaxUint16)

// EncodeLen writes length as a compact-u16 (7 bits per byte, high bit set
// while more bytes follow).
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLengthOverflow
	}

	var encoded []byte
	for {
		b := byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			encoded = append(encoded, b)
			break
		}
		encoded = append(encoded, b|0x80)
	}

	return w.Write(encoded)
}

// DecodeLen reads a compact-u16 length.
func DecodeLen(r io.Reader) (int, error) {
	var val int
	single := make([]byte, 1)

	for i := 0; ; i++ {
		if i == maxEncodedBytes {
			return 0, errors.Errorf("invalid size: more than %d bytes", maxEncodedBytes)
		}
		if _, err := io.ReadFull(r, single); err != nil {
			return 0, err
		}

		val |= int(single[0]&0x7f) << (i * 7)
		if single[0]&0x80 == 0 {
			return val, nil
		}
	}
}
