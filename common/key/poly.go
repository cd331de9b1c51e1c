package key

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"

	"github.com/drand/kyber"
	"github.com/drand/kyber/share"

	"github.com/drand/stepout/crypto"
)

// QmPolynomialDegree is the degree of the issuer's master polynomial and of
// every member polynomial derived from it.
const QmPolynomialDegree = 2

var (
	// ErrShape is returned when a polynomial is built from the wrong number of
	// coefficients.
	ErrShape = errors.New("polynomial has the wrong number of coefficients")
	// ErrDegreeMismatch is returned when combining polynomials of different
	// degrees or groups.
	ErrDegreeMismatch = errors.New("polynomials have different degrees")
)

// Polynomial is a polynomial in the exponent: the coefficient list
// [g^a_0, ..., g^a_N] of f(x) = a_0 + a_1 x + ... + a_N x^N, with g the base
// point of the group. The scalar coefficients are never known to the holder.
// A Polynomial never changes after construction and is safe to share.
type Polynomial struct {
	g      kyber.Group
	coeffs []kyber.Point
}

// NewPolynomial returns the polynomial of the given degree with the given
// coefficients, lowest degree first. It fails with ErrShape unless exactly
// degree+1 non-nil coefficients are given.
func NewPolynomial(g kyber.Group, degree int, coeffs []kyber.Point) (*Polynomial, error) {
	if degree < 0 {
		return nil, fmt.Errorf("%w: negative degree %d", ErrShape, degree)
	}
	if len(coeffs) != degree+1 {
		return nil, fmt.Errorf("%w: degree %d needs %d coefficients, got %d", ErrShape, degree, degree+1, len(coeffs))
	}
	cs := make([]kyber.Point, len(coeffs))
	for i, c := range coeffs {
		if c == nil {
			return nil, fmt.Errorf("%w: coefficient %d is nil", ErrShape, i)
		}
		cs[i] = c.Clone()
	}
	return &Polynomial{g: g, coeffs: cs}, nil
}

// Degree returns N for a polynomial with N+1 coefficients.
func (p *Polynomial) Degree() int {
	return len(p.coeffs) - 1
}

// Group returns the group the coefficients live in.
func (p *Polynomial) Group() kyber.Group {
	return p.g
}

// Coefficients returns a copy of the coefficients, lowest degree first.
func (p *Polynomial) Coefficients() []kyber.Point {
	cs := make([]kyber.Point, len(p.coeffs))
	for i, c := range p.coeffs {
		cs[i] = c.Clone()
	}
	return cs
}

// Commit returns the constant coefficient g^a_0.
func (p *Polynomial) Commit() kyber.Point {
	return p.coeffs[0].Clone()
}

// EvaluateAt returns g^f(x), computed with Horner's rule on the coefficients.
func (p *Polynomial) EvaluateAt(x kyber.Scalar) kyber.Point {
	v := p.g.Point().Null()
	for j := p.Degree(); j >= 0; j-- {
		v.Mul(x, v)
		v.Add(v, p.coeffs[j])
	}
	return v
}

// PubPoly exposes p as a kyber public polynomial over the group base point.
func (p *Polynomial) PubPoly() *share.PubPoly {
	return share.NewPubPoly(p.g, p.g.Point().Base(), p.Coefficients())
}

// Combine returns the coefficient-wise sum of p and q, i.e. g^(f+h) for
// p = g^f and q = g^h.
func (p *Polynomial) Combine(q *Polynomial) (*Polynomial, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil polynomial", ErrDegreeMismatch)
	}
	if p.Degree() != q.Degree() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDegreeMismatch, p.Degree(), q.Degree())
	}
	sum, err := p.PubPoly().Add(q.PubPoly())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegreeMismatch, err)
	}
	_, commits := sum.Info()
	return &Polynomial{g: p.g, coeffs: commits}, nil
}

// Equal compares all coefficients. It is meant for tests and diagnostics,
// verification never relies on it.
func (p *Polynomial) Equal(q *Polynomial) bool {
	if p == nil || q == nil {
		return p == q
	}
	if len(p.coeffs) != len(q.coeffs) || p.g.String() != q.g.String() {
		return false
	}
	eq := 1
	for i := range p.coeffs {
		a, errA := p.coeffs[i].MarshalBinary()
		b, errB := q.coeffs[i].MarshalBinary()
		if errA != nil || errB != nil {
			return false
		}
		eq &= subtle.ConstantTimeCompare(a, b)
	}
	return eq == 1
}

// Hash feeds the coefficients to h.
func (p *Polynomial) Hash(h hash.Hash) {
	for _, c := range p.coeffs {
		_, _ = c.MarshalTo(h)
	}
}

func (p *Polynomial) String() string {
	return fmt.Sprintf("{degree %d, commit %s}", p.Degree(), p.coeffs[0])
}

// PolynomialTOML is the TOML representation of a Polynomial.
type PolynomialTOML struct {
	Coefficients []string
}

// TOML returns the TOML-compatible version of p.
func (p *Polynomial) TOML() *PolynomialTOML {
	cs := make([]string, len(p.coeffs))
	for i, c := range p.coeffs {
		cs[i] = crypto.PointToString(c)
	}
	return &PolynomialTOML{Coefficients: cs}
}

// PolynomialFromTOML decodes and validates every coefficient of t in g and
// checks the polynomial has the given degree.
func PolynomialFromTOML(g kyber.Group, degree int, t *PolynomialTOML) (*Polynomial, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: missing polynomial", ErrShape)
	}
	points := make([]kyber.Point, len(t.Coefficients))
	for i, s := range t.Coefficients {
		p, err := crypto.StringToPoint(g, s)
		if err != nil {
			return nil, fmt.Errorf("coefficient %d: %w", i, err)
		}
		points[i] = p
	}
	return NewPolynomial(g, degree, points)
}
