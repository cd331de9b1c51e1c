package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/drand/kyber"
)

// ErrInvalidEncoding is returned for bytes that don't decode to a non-identity
// element of the prime order subgroup.
var ErrInvalidEncoding = errors.New("invalid group element encoding")

// ValidatePoint rejects the identity and any point outside the prime order
// subgroup of g. Points decoded from untrusted bytes must pass it before being
// used in a pairing or a multiplication.
func ValidatePoint(g kyber.Group, p kyber.Point) error {
	if p == nil {
		return fmt.Errorf("%w: nil point", ErrInvalidEncoding)
	}
	// p may be shared, work on a copy
	p = p.Clone()
	null := g.Point().Null()
	if p.Equal(null) {
		return fmt.Errorf("%w: identity element", ErrInvalidEncoding)
	}
	// scalars live modulo the group order r, so r·P is computed as (r-1)·P + P
	minusOne := g.Scalar().One()
	minusOne.Neg(minusOne)
	rp := g.Point().Mul(minusOne, p)
	rp.Add(rp, p)
	if !rp.Equal(null) {
		return fmt.Errorf("%w: point not in prime order subgroup", ErrInvalidEncoding)
	}
	return nil
}

// DecodePoint unmarshals buff into a point of g and validates it.
func DecodePoint(g kyber.Group, buff []byte) (kyber.Point, error) {
	if len(buff) != g.PointLen() {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidEncoding, g.PointLen(), len(buff))
	}
	p := g.Point()
	if err := p.UnmarshalBinary(buff); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if err := ValidatePoint(g, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PointToString returns the hex encoding of p.
func PointToString(p kyber.Point) string {
	buff, _ := p.MarshalBinary()
	return hex.EncodeToString(buff)
}

// StringToPoint decodes and validates a hex encoded point of g.
func StringToPoint(g kyber.Group, s string) (kyber.Point, error) {
	buff, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return DecodePoint(g, buff)
}
