// Package signature holds the step-out group signature handed out by the
// signature server and its versioned wire encoding.
package signature

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	json "github.com/nikkolasg/hexjson"

	"github.com/drand/kyber"

	"github.com/drand/stepout/crypto"
)

// V1 is the only wire version understood so far.
const V1 byte = 1

// ErrMalformedSignature is returned for bytes that are not a well-formed
// signature. Failures of an embedded group element also match
// crypto.ErrInvalidEncoding.
var ErrMalformedSignature = errors.New("malformed signature")

// Signature is a group signature of one member. It is never modified after
// being decoded.
type Signature struct {
	Scheme *crypto.Scheme
	// Version of the wire encoding.
	Version byte
	// Index of the member the signature claims to come from.
	Index uint32
	// Nonce is chosen by the signer and bound into the proof.
	Nonce []byte
	// TagBase is the random point U.
	TagBase kyber.Point
	// Tag is U^sk, tested against the revocation tokens.
	Tag kyber.Point
	// Proof is the BLS signature on the transcript digest.
	Proof kyber.Point
}

// GetIndex implements crypto.Transcript.
func (s *Signature) GetIndex() uint32 { return s.Index }

// GetNonce implements crypto.Transcript.
func (s *Signature) GetNonce() []byte { return s.Nonce }

// GetTagBase implements crypto.Transcript.
func (s *Signature) GetTagBase() kyber.Point { return s.TagBase }

// GetTag implements crypto.Transcript.
func (s *Signature) GetTag() kyber.Point { return s.Tag }

// GetProof implements crypto.Transcript.
func (s *Signature) GetProof() kyber.Point { return s.Proof }

// Size returns the length of a v1 encoded signature under sch.
func Size(sch *crypto.Scheme) int {
	return 1 + 4 + sch.NonceSize + 3*sch.SigGroup.PointLen()
}

// Marshal returns the wire encoding of s:
//
//	version(1) | index(4, big endian) | nonce | U | V | sigma
func (s *Signature) Marshal() ([]byte, error) {
	if s.Version != V1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrMalformedSignature, s.Version)
	}
	if len(s.Nonce) != s.Scheme.NonceSize {
		return nil, fmt.Errorf("%w: nonce of %d bytes, expected %d", ErrMalformedSignature, len(s.Nonce), s.Scheme.NonceSize)
	}
	var b bytes.Buffer
	b.Grow(Size(s.Scheme))
	b.WriteByte(s.Version)
	_ = binary.Write(&b, binary.BigEndian, s.Index)
	b.Write(s.Nonce)
	for _, p := range []kyber.Point{s.TagBase, s.Tag, s.Proof} {
		if p == nil {
			return nil, fmt.Errorf("%w: missing point", ErrMalformedSignature)
		}
		if _, err := p.MarshalTo(&b); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// Unmarshal decodes buff as a signature of sch. Every point must be a valid
// non-identity element of the signature group.
func Unmarshal(sch *crypto.Scheme, buff []byte) (*Signature, error) {
	if len(buff) != Size(sch) {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", ErrMalformedSignature, len(buff), Size(sch))
	}
	if buff[0] != V1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrMalformedSignature, buff[0])
	}
	s := &Signature{
		Scheme:  sch,
		Version: buff[0],
		Index:   binary.BigEndian.Uint32(buff[1:5]),
	}
	off := 5
	s.Nonce = append([]byte(nil), buff[off:off+sch.NonceSize]...)
	off += sch.NonceSize

	pl := sch.SigGroup.PointLen()
	points := make([]kyber.Point, 3)
	for i, name := range []string{"tag base", "tag", "proof"} {
		p, err := crypto.DecodePoint(sch.SigGroup, buff[off:off+pl])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedSignature, name, err)
		}
		points[i] = p
		off += pl
	}
	s.TagBase, s.Tag, s.Proof = points[0], points[1], points[2]
	return s, nil
}

// Equal compares every field of two signatures.
func (s *Signature) Equal(s2 *Signature) bool {
	if s == nil || s2 == nil {
		return s == s2
	}
	return s.Scheme.String() == s2.Scheme.String() &&
		s.Version == s2.Version &&
		s.Index == s2.Index &&
		bytes.Equal(s.Nonce, s2.Nonce) &&
		pointEqual(s.TagBase, s2.TagBase) &&
		pointEqual(s.Tag, s2.Tag) &&
		pointEqual(s.Proof, s2.Proof)
}

func pointEqual(a, b kyber.Point) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func (s *Signature) String() string {
	return fmt.Sprintf("{ index: %d, nonce: %s, tag: %s }", s.Index, shortHex(s.Nonce), s.Tag)
}

func shortHex(b []byte) string {
	if len(b) > 4 {
		b = b[:4]
	}
	return hex.EncodeToString(b)
}

type signatureJSON struct {
	Scheme  string `json:"scheme"`
	Version byte   `json:"version"`
	Index   uint32 `json:"index"`
	Nonce   []byte `json:"nonce"`
	TagBase []byte `json:"tag_base"`
	Tag     []byte `json:"tag"`
	Proof   []byte `json:"proof"`
}

// MarshalJSON renders s with every byte field hex encoded.
func (s *Signature) MarshalJSON() ([]byte, error) {
	out := signatureJSON{
		Scheme:  s.Scheme.String(),
		Version: s.Version,
		Index:   s.Index,
		Nonce:   s.Nonce,
	}
	var err error
	if out.TagBase, err = s.TagBase.MarshalBinary(); err != nil {
		return nil, err
	}
	if out.Tag, err = s.Tag.MarshalBinary(); err != nil {
		return nil, err
	}
	if out.Proof, err = s.Proof.MarshalBinary(); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the output of MarshalJSON and validates the points.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var in signatureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	sch, err := crypto.GetSchemeByIDWithDefault(in.Scheme)
	if err != nil {
		return err
	}
	return s.fill(sch, in.Version, in.Index, in.Nonce, in.TagBase, in.Tag, in.Proof)
}

// fill validates the decoded fields through the wire decoder so every
// encoding of a signature goes through the same checks.
func (s *Signature) fill(sch *crypto.Scheme, version byte, index uint32, nonce, u, v, sigma []byte) error {
	var b bytes.Buffer
	b.WriteByte(version)
	_ = binary.Write(&b, binary.BigEndian, index)
	b.Write(nonce)
	b.Write(u)
	b.Write(v)
	b.Write(sigma)
	decoded, err := Unmarshal(sch, b.Bytes())
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}
