package key

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/drand/kyber"

	"github.com/drand/stepout/crypto"
)

// Group holds the parameters published by the issuer: the scheme, the master
// polynomial g^Q and one partial polynomial per registered member. Member i
// holds the key g^(Q+R_i) where g^R_i = Members[i]. A loaded Group is only
// ever read.
type Group struct {
	// Scheme fixes the groups and verification equations.
	Scheme *crypto.Scheme
	// ID names the group; it is bound into every signature digest.
	ID string
	// Master is the issuer's master polynomial.
	Master *Polynomial
	// Members lists the member partial polynomials, indexed by member index.
	Members []*Polynomial
}

// NewGroup returns a group after checking every polynomial has the degree
// QmPolynomialDegree and lives in the scheme's key group.
func NewGroup(sch *crypto.Scheme, id string, master *Polynomial, members []*Polynomial) (*Group, error) {
	g := &Group{Scheme: sch, ID: id, Master: master, Members: members}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate reports every malformed polynomial of g at once.
func (g *Group) Validate() error {
	if g.Scheme == nil {
		return errors.New("group: no scheme")
	}
	var result *multierror.Error
	check := func(name string, p *Polynomial) {
		switch {
		case p == nil:
			result = multierror.Append(result, fmt.Errorf("%s: %w: missing", name, ErrShape))
		case p.Degree() != QmPolynomialDegree:
			result = multierror.Append(result, fmt.Errorf("%s: %w: degree %d, expected %d",
				name, ErrShape, p.Degree(), QmPolynomialDegree))
		case p.Group().String() != g.Scheme.KeyGroup.String():
			result = multierror.Append(result, fmt.Errorf("%s: coefficients in %s, expected %s",
				name, p.Group(), g.Scheme.KeyGroup))
		}
	}
	check("master", g.Master)
	for i, m := range g.Members {
		check(fmt.Sprintf("member[%d]", i), m)
	}
	return result.ErrorOrNil()
}

// Len returns the number of registered members.
func (g *Group) Len() int {
	return len(g.Members)
}

// Member returns the partial polynomial of member index.
func (g *Group) Member(index uint32) (*Polynomial, bool) {
	if int64(index) >= int64(len(g.Members)) {
		return nil, false
	}
	return g.Members[index], true
}

// EvaluationPoint returns the scalar member index is evaluated at.
func (g *Group) EvaluationPoint(index uint32) kyber.Scalar {
	return EvaluationPoint(g.Scheme.KeyGroup, index)
}

// Hash is a digest of the scheme, the id and every coefficient of g.
func (g *Group) Hash() []byte {
	h := g.Scheme.IdentityHash()
	_, _ = h.Write([]byte(g.Scheme.Name))
	_, _ = h.Write([]byte(g.ID))
	g.Master.Hash(h)
	for _, m := range g.Members {
		m.Hash(h)
	}
	return h.Sum(nil)
}

// Equal indicates if two groups hold the same parameters.
func (g *Group) Equal(g2 *Group) bool {
	if g == nil || g2 == nil {
		return g == g2
	}
	if g.Scheme.String() != g2.Scheme.String() || g.ID != g2.ID || g.Len() != g2.Len() {
		return false
	}
	if !g.Master.Equal(g2.Master) {
		return false
	}
	for i := range g.Members {
		if !g.Members[i].Equal(g2.Members[i]) {
			return false
		}
	}
	return true
}

func (g *Group) String() string {
	var b bytes.Buffer
	_ = toml.NewEncoder(&b).Encode(g.TOML())
	return b.String()
}

// GroupTOML is the TOML representation of a Group.
type GroupTOML struct {
	SchemeID string
	ID       string
	Degree   int
	Master   *PolynomialTOML
	Members  []*PolynomialTOML
}

// TOML returns a TOML-encodable version of the Group.
func (g *Group) TOML() interface{} {
	gt := &GroupTOML{
		SchemeID: g.Scheme.Name,
		ID:       g.ID,
		Degree:   g.Master.Degree(),
		Master:   g.Master.TOML(),
		Members:  make([]*PolynomialTOML, len(g.Members)),
	}
	for i, m := range g.Members {
		gt.Members[i] = m.TOML()
	}
	return gt
}

// FromTOML initializes g from a GroupTOML. All decoding failures are
// reported together.
func (g *Group) FromTOML(i interface{}) error {
	gt, ok := i.(*GroupTOML)
	if !ok {
		return fmt.Errorf("grouptoml unknown")
	}
	sch, err := crypto.GetSchemeByIDWithDefault(gt.SchemeID)
	if err != nil {
		return fmt.Errorf("group: %w", err)
	}
	if gt.Degree != QmPolynomialDegree {
		return fmt.Errorf("group: %w: degree %d, expected %d", ErrShape, gt.Degree, QmPolynomialDegree)
	}

	var result *multierror.Error
	master, err := PolynomialFromTOML(sch.KeyGroup, gt.Degree, gt.Master)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("master: %w", err))
	}
	members := make([]*Polynomial, len(gt.Members))
	for i, mt := range gt.Members {
		if members[i], err = PolynomialFromTOML(sch.KeyGroup, gt.Degree, mt); err != nil {
			result = multierror.Append(result, fmt.Errorf("member[%d]: %w", i, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("group: %w", err)
	}

	g.Scheme = sch
	g.ID = gt.ID
	g.Master = master
	g.Members = members
	return nil
}

// TOMLValue returns an empty TOML-compatible value of the group.
func (g *Group) TOMLValue() interface{} {
	return &GroupTOML{}
}
