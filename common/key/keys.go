package key

import (
	"github.com/drand/kyber"
)

// UserPublicKey is the public key of one group member: the member polynomial
// g^Qm obtained by combining the issuer's master polynomial with the member's
// partial polynomial. It is a value; replacing the polynomial goes through
// WithQm and yields a new key, so a key shared between goroutines is never
// observed half updated.
type UserPublicKey struct {
	qm *Polynomial
}

// NewUserPublicKey wraps qm. No check is done here, the manager validates the
// polynomial against the group parameters.
func NewUserPublicKey(qm *Polynomial) UserPublicKey {
	return UserPublicKey{qm: qm}
}

// Qm returns the member polynomial.
func (k UserPublicKey) Qm() *Polynomial {
	return k.qm
}

// WithQm returns a key holding qm instead of the current polynomial.
func (k UserPublicKey) WithQm(qm *Polynomial) UserPublicKey {
	return UserPublicKey{qm: qm}
}

// IsZero is true for the zero value.
func (k UserPublicKey) IsZero() bool {
	return k.qm == nil
}

// Equal compares the member polynomials.
func (k UserPublicKey) Equal(k2 UserPublicKey) bool {
	return k.qm.Equal(k2.qm)
}

// VerificationKey returns g^Qm(x) at the evaluation point of member index,
// x = index+1. Membership proofs of that member verify under it.
func (k UserPublicKey) VerificationKey(index uint32) kyber.Point {
	return k.qm.EvaluateAt(EvaluationPoint(k.qm.Group(), index))
}

// EvaluationPoint is the scalar a member index is evaluated at. Zero is
// never used since it would expose the constant coefficient.
func EvaluationPoint(g kyber.Group, index uint32) kyber.Scalar {
	return g.Scalar().SetInt64(int64(index) + 1)
}

// UserPublicKeyTOML is the TOML representation of a UserPublicKey.
type UserPublicKeyTOML struct {
	Index uint32
	Qm    *PolynomialTOML
}

// TOML returns a TOML-compatible version of k for the given member index.
func (k UserPublicKey) TOML(index uint32) *UserPublicKeyTOML {
	return &UserPublicKeyTOML{Index: index, Qm: k.qm.TOML()}
}
