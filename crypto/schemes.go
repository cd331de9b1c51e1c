package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/pairing"
	"github.com/drand/kyber/sign"

	// Only single signatures are verified with this package, none are
	// aggregated, so the rogue key attack on the deprecated package does not
	// apply.
	//nolint:staticcheck
	signBls "github.com/drand/kyber/sign/bls"
)

// Transcript is the view of a step-out signature the equation set works on.
// The signature type implements it so this package doesn't depend on the wire
// format.
type Transcript interface {
	GetIndex() uint32
	GetNonce() []byte
	GetTagBase() kyber.Point
	GetTag() kyber.Point
	GetProof() kyber.Point
}

var (
	// ErrProofMismatch is returned when the membership proof of a signature
	// does not verify under the member key.
	ErrProofMismatch = errors.New("membership proof does not verify")
	// ErrTagMismatch is returned when the revocation tag is not bound to the
	// member key.
	ErrTagMismatch = errors.New("revocation tag is not bound to the member key")
)

// Equations is the set of verification equations of a step-out scheme.
//
// Membership must return nil only if every equation tying the transcript to
// memberKey holds. Revoked reports whether the transcript's revocation tag
// was produced by the member whose revocation token is given. Both must be
// safe for concurrent use.
type Equations interface {
	Membership(groupHash []byte, t Transcript, memberKey kyber.Point) error
	Revoked(t Transcript, token kyber.Point) bool
}

// Scheme gathers the groups and equations used by a deployment. KeyGroup
// carries the polynomial coefficients, member keys and revocation tokens;
// SigGroup carries every point embedded in a signature. The two must be the
// two source groups of Pairing.
//
// Note: Scheme is not meant to be marshaled directly, use SchemeFromName.
type Scheme struct {
	// Name identifies the scheme in group, step-out and signature files.
	Name string
	// Pairing is the bilinear group the equations are evaluated in.
	Pairing pairing.Suite `toml:"-"`
	KeyGroup kyber.Group `toml:"-"`
	SigGroup kyber.Group `toml:"-"`
	// AuthScheme verifies the membership proof: a BLS signature in SigGroup
	// under a member key in KeyGroup.
	AuthScheme sign.Scheme `toml:"-"`
	// IdentityHash hashes group parameters into a short identifier.
	IdentityHash func() hash.Hash `toml:"-"`
	// DigestSignature returns the message the membership proof signs.
	DigestSignature func(name string, groupHash []byte, t Transcript) []byte `toml:"-"`
	// NonceSize is the length in bytes of the signature nonce.
	NonceSize int
	Equations Equations `toml:"-"`
}

func (s *Scheme) String() string {
	if s != nil {
		return s.Name
	}
	return ""
}

// Digest is the message signed by the membership proof of t.
func (s *Scheme) Digest(groupHash []byte, t Transcript) []byte {
	return s.DigestSignature(s.Name, groupHash, t)
}

// VerifyMembership checks that t was produced by the holder of memberKey.
func (s *Scheme) VerifyMembership(groupHash []byte, t Transcript, memberKey kyber.Point) error {
	return s.Equations.Membership(groupHash, t, memberKey)
}

// RevokedBy reports whether the revocation tag of t matches token.
func (s *Scheme) RevokedBy(t Transcript, token kyber.Point) bool {
	return s.Equations.Revoked(t, token)
}

// DefaultSchemeID is the default scheme ID.
const DefaultSchemeID = "stepout-bls12381-vlr"

// NewStepOutBLSVLR instantiates the "stepout-bls12381-vlr" scheme. Member keys
// are g2^sk in G2 and signatures carry three G1 points:
//
//	U      random tag base
//	V      U^sk, the verifier-local revocation tag
//	sigma  H(d)^sk, a BLS signature on the transcript digest d
//
// Membership holds when e(sigma, g2) = e(H(d), Y) and e(V, g2) = e(U, Y) for
// the member key Y. A signature is revoked by token T when e(V, g2) = e(U, T);
// the issuer publishes T = Y to step a member out.
func NewStepOutBLSVLR() *Scheme {
	suite := bls.NewBLS12381Suite()
	s := &Scheme{
		Name:       DefaultSchemeID,
		Pairing:    suite,
		KeyGroup:   suite.G2(),
		SigGroup:   suite.G1(),
		AuthScheme: signBls.NewSchemeOnG1(suite),
		IdentityHash: func() hash.Hash {
			h, _ := blake2b.New256(nil)
			return h
		},
		DigestSignature: transcriptDigest,
		NonceSize:       32,
	}
	s.Equations = &vlrEquations{s}
	return s
}

func transcriptDigest(name string, groupHash []byte, t Transcript) []byte {
	h := sha256.New()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write(groupHash)
	_ = binary.Write(h, binary.BigEndian, t.GetIndex())
	_, _ = h.Write(t.GetNonce())
	_, _ = t.GetTagBase().MarshalTo(h)
	_, _ = t.GetTag().MarshalTo(h)
	return h.Sum(nil)
}

type vlrEquations struct {
	s *Scheme
}

func (v *vlrEquations) Membership(groupHash []byte, t Transcript, memberKey kyber.Point) error {
	base := t.GetTagBase()
	if base == nil || t.GetTag() == nil || t.GetProof() == nil {
		return ErrTagMismatch
	}
	if base.Equal(v.s.SigGroup.Point().Null()) {
		return ErrTagMismatch
	}
	proof, err := t.GetProof().MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofMismatch, err)
	}
	if err := v.s.AuthScheme.Verify(memberKey, v.s.Digest(groupHash, t), proof); err != nil {
		return fmt.Errorf("%w: %v", ErrProofMismatch, err)
	}
	if !v.tagMatches(t, memberKey) {
		return ErrTagMismatch
	}
	return nil
}

func (v *vlrEquations) Revoked(t Transcript, token kyber.Point) bool {
	if t.GetTagBase() == nil || t.GetTag() == nil || token == nil {
		return false
	}
	if t.GetTagBase().Equal(v.s.SigGroup.Point().Null()) {
		return false
	}
	return v.tagMatches(t, token)
}

// tagMatches checks e(V, g2) = e(U, key). Pair writes the affine form back
// into its inputs, ValidatePairing works on copies, so key may be shared
// between goroutines.
func (v *vlrEquations) tagMatches(t Transcript, key kyber.Point) bool {
	return v.s.Pairing.ValidatePairing(t.GetTag(), v.s.KeyGroup.Point().Base(), t.GetTagBase(), key)
}

// ErrUnknownScheme is returned by SchemeFromName for unregistered names.
var ErrUnknownScheme = errors.New("unknown scheme")

// SchemeFromName returns the scheme registered under schemeName.
func SchemeFromName(schemeName string) (*Scheme, error) {
	switch schemeName {
	case DefaultSchemeID:
		return NewStepOutBLSVLR(), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownScheme, schemeName)
	}
}

var schemeIDs = []string{DefaultSchemeID}

// ListSchemes returns the ids of all registered schemes.
func ListSchemes() []string {
	return schemeIDs
}

// GetSchemeByIDWithDefault is SchemeFromName, except an empty id selects the
// default scheme.
func GetSchemeByIDWithDefault(id string) (*Scheme, error) {
	if id == "" {
		id = DefaultSchemeID
	}
	return SchemeFromName(id)
}

// GetSchemeFromEnv selects the scheme named by the SCHEME_ID environment
// variable.
func GetSchemeFromEnv() (*Scheme, error) {
	return GetSchemeByIDWithDefault(os.Getenv("SCHEME_ID"))
}
