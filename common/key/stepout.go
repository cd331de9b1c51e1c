package key

import (
	"fmt"

	"github.com/drand/kyber"

	"github.com/drand/stepout/crypto"
)

// StepOutList is the set of revocation tokens published for members that were
// stepped out of the group. Epoch increases with every publication.
type StepOutList struct {
	Scheme *crypto.Scheme
	Epoch  uint64
	Tokens []kyber.Point
}

// NewStepOutList returns a list holding copies of tokens.
func NewStepOutList(sch *crypto.Scheme, epoch uint64, tokens []kyber.Point) *StepOutList {
	ts := make([]kyber.Point, len(tokens))
	for i, t := range tokens {
		ts[i] = t.Clone()
	}
	return &StepOutList{Scheme: sch, Epoch: epoch, Tokens: ts}
}

// EmptyStepOutList is the list in effect before any member stepped out.
func EmptyStepOutList(sch *crypto.Scheme) *StepOutList {
	return &StepOutList{Scheme: sch}
}

// Len returns the number of revocation tokens.
func (l *StepOutList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Tokens)
}

// Copy returns a list with its own token slice and points.
func (l *StepOutList) Copy() *StepOutList {
	return NewStepOutList(l.Scheme, l.Epoch, l.Tokens)
}

// Equal reports whether both lists have the same scheme, epoch and tokens.
func (l *StepOutList) Equal(o *StepOutList) bool {
	if l.Scheme.String() != o.Scheme.String() || l.Epoch != o.Epoch || len(l.Tokens) != len(o.Tokens) {
		return false
	}
	for i := range l.Tokens {
		if !l.Tokens[i].Equal(o.Tokens[i]) {
			return false
		}
	}
	return true
}

// Match returns the position of the first token t is revoked by, or -1.
// Every token is tested so the time taken doesn't depend on the position.
func (l *StepOutList) Match(t crypto.Transcript) int {
	if l == nil {
		return -1
	}
	found := -1
	for i, token := range l.Tokens {
		if l.Scheme.RevokedBy(t, token) && found < 0 {
			found = i
		}
	}
	return found
}

// StepOutTOML is the TOML representation of a StepOutList.
type StepOutTOML struct {
	SchemeID string
	Epoch    uint64
	Tokens   []string
}

// TOML returns the TOML-compatible version of l.
func (l *StepOutList) TOML() interface{} {
	tokens := make([]string, len(l.Tokens))
	for i, t := range l.Tokens {
		tokens[i] = crypto.PointToString(t)
	}
	return &StepOutTOML{SchemeID: l.Scheme.Name, Epoch: l.Epoch, Tokens: tokens}
}

// FromTOML decodes and validates every token.
func (l *StepOutList) FromTOML(i interface{}) error {
	st, ok := i.(*StepOutTOML)
	if !ok {
		return fmt.Errorf("step-out list: wrong interface, expected StepOutTOML")
	}
	sch, err := crypto.GetSchemeByIDWithDefault(st.SchemeID)
	if err != nil {
		return fmt.Errorf("step-out list: %w", err)
	}
	tokens := make([]kyber.Point, len(st.Tokens))
	for i, s := range st.Tokens {
		if tokens[i], err = crypto.StringToPoint(sch.KeyGroup, s); err != nil {
			return fmt.Errorf("step-out list: token %d: %w", i, err)
		}
	}
	l.Scheme = sch
	l.Epoch = st.Epoch
	l.Tokens = tokens
	return nil
}

// TOMLValue returns an empty TOML-compatible value of the list.
func (l *StepOutList) TOMLValue() interface{} {
	return &StepOutTOML{}
}
