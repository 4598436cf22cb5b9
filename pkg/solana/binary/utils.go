// Package binary reads and writes the little endian, length prefixed layout
// used by on-chain program data. Put and Get helpers work at the start of
// the given slice and advance offset by the number of bytes they consumed.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned when encoded data ends before a value does.
var ErrShortBuffer = errors.New("buffer too short")

// vecLenSize is the size of the u32 length prefix of a vector.
const vecLenSize = 4

func PutKey32(dst []byte, src []byte, offset *int) {
	copy(dst, src)
	*offset += ed25519.PublicKeySize
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst, v)
	*offset += 8
}

func PutUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst, v)
	*offset += 4
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[0] = v
	*offset++
}

func PutBool(dst []byte, v bool, offset *int) {
	if v {
		PutUint8(dst, 1, offset)
		return
	}
	PutUint8(dst, 0, offset)
}

// PutBytes writes raw bytes with no length prefix.
func PutBytes(dst []byte, src []byte, offset *int) {
	*offset += copy(dst, src)
}

// PutByteVec writes src behind a u32 length prefix.
func PutByteVec(dst []byte, src []byte, offset *int) {
	PutUint32(dst, uint32(len(src)), offset)
	PutBytes(dst[vecLenSize:], src, offset)
}

// PutKeyVec writes keys behind a u32 length prefix.
func PutKeyVec(dst []byte, keys []ed25519.PublicKey, offset *int) {
	start := *offset
	PutUint32(dst, uint32(len(keys)), offset)
	for _, key := range keys {
		PutKey32(dst[*offset-start:], key, offset)
	}
}

// ByteVecSize is the encoded size of a byte vector of length n.
func ByteVecSize(n int) int {
	return vecLenSize + n
}

// KeyVecSize is the encoded size of a vector of n keys.
func KeyVecSize(n int) int {
	return vecLenSize + n*ed25519.PublicKeySize
}

func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src)
	*offset += ed25519.PublicKeySize
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src)
	*offset += 8
}

func GetUint32(src []byte, dst *uint32, offset *int) {
	*dst = binary.LittleEndian.Uint32(src)
	*offset += 4
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[0]
	*offset++
}

func GetBool(src []byte, dst *bool, offset *int) {
	*dst = src[0] != 0
	*offset++
}

// GetKeyVec reads a length prefixed vector of keys. Unlike the fixed size
// getters it checks src, since the length comes from the data itself.
func GetKeyVec(src []byte, dst *[]ed25519.PublicKey, offset *int) error {
	if len(src) < vecLenSize {
		return errors.Wrap(ErrShortBuffer, "missing vec length")
	}

	n := int(binary.LittleEndian.Uint32(src))
	if n > len(src) || len(src) < KeyVecSize(n) {
		return errors.Wrapf(ErrShortBuffer, "vec of %d keys exceeds %d bytes", n, len(src))
	}

	keys := make([]ed25519.PublicKey, n)
	for i := range keys {
		var read int
		GetKey32(src[vecLenSize+i*ed25519.PublicKeySize:], &keys[i], &read)
	}

	*dst = keys
	*offset += KeyVecSize(n)
	return nil
}
