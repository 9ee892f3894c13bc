package gate

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Certificate is the logical OGT1 record. Both wire layouts decode into it.
//
// ParentHash, PatchHash and Signature are opaque here; see package attest.
type Certificate struct {
	Magic      [4]byte
	Budget     uint32 // Λ-budget granted to the patch
	HardMax    uint32 // issuer's absolute maximum, carried for audit
	Epsilon    uint32 // side-channel bound
	ParentHash [32]byte
	PatchHash  [32]byte
	Signature  [64]byte
}

// Layout selects one of the two certificate encodings.
type Layout int

const (
	// LayoutPacked is the 512-byte firmware record, zero-padded.
	LayoutPacked Layout = iota
	// LayoutHost is the 144-byte host binding record without padding.
	LayoutHost
)

// Encoded sizes and field offsets. Integers are little-endian.
const (
	PackedSize = 512
	HostSize   = 144

	offMagic      = 0
	offBudget     = 4
	offHardMax    = 8
	offEpsilon    = 12
	offParentHash = 16
	offPatchHash  = 48
	offSignature  = 80
	offReserved   = 144

	// SigningPayloadSize is the number of leading bytes covered by the signature.
	SigningPayloadSize = offSignature
)

// ErrRecordSize is returned when a buffer matches neither layout.
var ErrRecordSize = errors.New("gate: certificate record has wrong size")

func (l Layout) String() string {
	switch l {
	case LayoutPacked:
		return "packed"
	case LayoutHost:
		return "host"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Size returns the encoded size of the layout.
func (l Layout) Size() int {
	if l == LayoutHost {
		return HostSize
	}
	return PackedSize
}

func (c *Certificate) putFields(b []byte) {
	copy(b[offMagic:], c.Magic[:])
	binary.LittleEndian.PutUint32(b[offBudget:], c.Budget)
	binary.LittleEndian.PutUint32(b[offHardMax:], c.HardMax)
	binary.LittleEndian.PutUint32(b[offEpsilon:], c.Epsilon)
	copy(b[offParentHash:], c.ParentHash[:])
	copy(b[offPatchHash:], c.PatchHash[:])
	copy(b[offSignature:], c.Signature[:])
}

func (c *Certificate) readFields(b []byte) {
	copy(c.Magic[:], b[offMagic:offBudget])
	c.Budget = binary.LittleEndian.Uint32(b[offBudget:])
	c.HardMax = binary.LittleEndian.Uint32(b[offHardMax:])
	c.Epsilon = binary.LittleEndian.Uint32(b[offEpsilon:])
	copy(c.ParentHash[:], b[offParentHash:offPatchHash])
	copy(c.PatchHash[:], b[offPatchHash:offSignature])
	copy(c.Signature[:], b[offSignature:offReserved])
}

// MarshalPacked encodes c in the 512-byte layout. Reserved bytes are zero.
func (c *Certificate) MarshalPacked() [PackedSize]byte {
	var b [PackedSize]byte
	c.putFields(b[:])
	return b
}

// MarshalHost encodes c in the 144-byte host layout.
func (c *Certificate) MarshalHost() [HostSize]byte {
	var b [HostSize]byte
	c.putFields(b[:])
	return b
}

// AppendBinary appends c encoded in layout l to dst.
func (c *Certificate) AppendBinary(dst []byte, l Layout) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, l.Size())...)
	c.putFields(dst[n:])
	return dst
}

// MarshalBinary implements encoding.BinaryMarshaler using the packed layout.
func (c *Certificate) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(nil, LayoutPacked), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Either layout is
// accepted.
func (c *Certificate) UnmarshalBinary(data []byte) error {
	_, err := c.decode(data)
	return err
}

// DecodePacked parses a 512-byte record. Reserved bytes are ignored.
func DecodePacked(b []byte) (Certificate, error) {
	var c Certificate
	if len(b) != PackedSize {
		return c, fmt.Errorf("%w: packed layout needs %d bytes, got %d", ErrRecordSize, PackedSize, len(b))
	}
	c.readFields(b)
	return c, nil
}

// DecodeHost parses a 144-byte host record.
func DecodeHost(b []byte) (Certificate, error) {
	var c Certificate
	if len(b) != HostSize {
		return c, fmt.Errorf("%w: host layout needs %d bytes, got %d", ErrRecordSize, HostSize, len(b))
	}
	c.readFields(b)
	return c, nil
}

// Decode parses a record in whichever layout its length identifies.
func Decode(b []byte) (Certificate, Layout, error) {
	var c Certificate
	l, err := c.decode(b)
	return c, l, err
}

func (c *Certificate) decode(b []byte) (Layout, error) {
	switch len(b) {
	case PackedSize:
		c.readFields(b)
		return LayoutPacked, nil
	case HostSize:
		c.readFields(b)
		return LayoutHost, nil
	default:
		return 0, fmt.Errorf("%w: got %d bytes, want %d or %d", ErrRecordSize, len(b), PackedSize, HostSize)
	}
}

// SigningPayload returns the bytes an issuer signs: every field before the
// signature, in wire order.
func (c *Certificate) SigningPayload() [SigningPayloadSize]byte {
	var b [HostSize]byte
	c.putFields(b[:])
	var p [SigningPayloadSize]byte
	copy(p[:], b[:SigningPayloadSize])
	return p
}

// Digest is the SHA-256 of the packed record. A child certificate names its
// parent by this value.
func (c *Certificate) Digest() [32]byte {
	b := c.MarshalPacked()
	return sha256.Sum256(b[:])
}

// HasMagic reports whether the record carries the OGT1 tag.
func (c *Certificate) HasMagic() bool {
	return string(c.Magic[:]) == MagicTag
}
