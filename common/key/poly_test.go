package key

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/drand/kyber"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/util/random"

	"github.com/drand/stepout/crypto"
)

var testScheme = crypto.NewStepOutBLSVLR()

// randomPoly returns a random polynomial together with its scalar
// coefficients.
func randomPoly(t testing.TB, degree int) (*Polynomial, []kyber.Scalar) {
	g := testScheme.KeyGroup
	scalars := make([]kyber.Scalar, degree+1)
	points := make([]kyber.Point, degree+1)
	for i := range scalars {
		scalars[i] = g.Scalar().Pick(random.New())
		points[i] = g.Point().Mul(scalars[i], nil)
	}
	p, err := NewPolynomial(g, degree, points)
	require.NoError(t, err)
	return p, scalars
}

func drawPoly(t *rapid.T, degree int, label string) *Polynomial {
	g := testScheme.KeyGroup
	points := make([]kyber.Point, degree+1)
	for i := range points {
		a := rapid.Int64().Draw(t, label)
		points[i] = g.Point().Mul(g.Scalar().SetInt64(a), nil)
	}
	p, err := NewPolynomial(g, degree, points)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewPolynomialShape(t *testing.T) {
	g := testScheme.KeyGroup
	base := g.Point().Base()

	_, err := NewPolynomial(g, 2, []kyber.Point{base, base})
	require.ErrorIs(t, err, ErrShape)
	_, err = NewPolynomial(g, 1, []kyber.Point{base, base, base})
	require.ErrorIs(t, err, ErrShape)
	_, err = NewPolynomial(g, -1, nil)
	require.ErrorIs(t, err, ErrShape)
	_, err = NewPolynomial(g, 1, []kyber.Point{base, nil})
	require.ErrorIs(t, err, ErrShape)

	coeffs := []kyber.Point{base.Clone(), base.Clone()}
	p, err := NewPolynomial(g, 1, coeffs)
	require.NoError(t, err)
	require.Equal(t, 1, p.Degree())

	// the polynomial keeps its own copies
	coeffs[0].Null()
	require.True(t, p.Commit().Equal(base))
	p.Coefficients()[1].Null()
	require.True(t, p.Coefficients()[1].Equal(base))
}

func TestEvaluateAtZeroIsFirstCoefficient(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		degree := rapid.IntRange(0, 4).Draw(t, "degree")
		p := drawPoly(t, degree, "a")
		got := p.EvaluateAt(testScheme.KeyGroup.Scalar().Zero())
		if !got.Equal(p.Commit()) {
			t.Fatalf("f(0) = %s, expected %s", got, p.Commit())
		}
	})
}

func TestEvaluateAtMatchesScalarPolynomial(t *testing.T) {
	g := testScheme.KeyGroup
	p, scalars := randomPoly(t, QmPolynomialDegree)
	priPoly := share.CoefficientsToPriPoly(g, scalars)

	for i := 0; i < 5; i++ {
		x := g.Scalar().SetInt64(int64(i) + 1)
		got := p.EvaluateAt(x)

		// g^f(x) from the scalar side
		exp := g.Point().Mul(priPoly.Eval(i).V, nil)
		require.True(t, exp.Equal(got), "index %d", i)

		// and kyber's own evaluation of the public polynomial
		require.True(t, p.PubPoly().Eval(i).V.Equal(got), "index %d", i)
	}

	x := g.Scalar().Pick(random.New())
	require.True(t, p.EvaluateAt(x).Equal(p.EvaluateAt(x.Clone())))
}

func TestCombineCommutativeAndAssociative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		degree := rapid.IntRange(0, 3).Draw(t, "degree")
		a := drawPoly(t, degree, "a")
		b := drawPoly(t, degree, "b")
		c := drawPoly(t, degree, "c")

		ab, err := a.Combine(b)
		if err != nil {
			t.Fatal(err)
		}
		ba, err := b.Combine(a)
		if err != nil {
			t.Fatal(err)
		}
		if !ab.Equal(ba) {
			t.Fatal("combine is not commutative")
		}

		abc, _ := ab.Combine(c)
		bc, _ := b.Combine(c)
		aBC, _ := a.Combine(bc)
		if !abc.Equal(aBC) {
			t.Fatal("combine is not associative")
		}
	})
}

func TestCombineEvaluatesToProduct(t *testing.T) {
	g := testScheme.KeyGroup
	a, _ := randomPoly(t, 2)
	b, _ := randomPoly(t, 2)
	sum, err := a.Combine(b)
	require.NoError(t, err)

	x := g.Scalar().Pick(random.New())
	exp := g.Point().Add(a.EvaluateAt(x), b.EvaluateAt(x))
	require.True(t, exp.Equal(sum.EvaluateAt(x)))

	// operands are left untouched
	require.False(t, sum.Equal(a))
	require.False(t, sum.Equal(b))
}

func TestCombineDegreeMismatch(t *testing.T) {
	a, _ := randomPoly(t, 2)
	b, _ := randomPoly(t, 3)
	_, err := a.Combine(b)
	require.ErrorIs(t, err, ErrDegreeMismatch)
	_, err = a.Combine(nil)
	require.ErrorIs(t, err, ErrDegreeMismatch)
}

func TestPolynomialEqual(t *testing.T) {
	a, _ := randomPoly(t, 2)
	b, _ := randomPoly(t, 2)
	c, _ := randomPoly(t, 1)
	require.True(t, a.Equal(a))
	require.False(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(nil))

	cp, err := NewPolynomial(a.Group(), a.Degree(), a.Coefficients())
	require.NoError(t, err)
	require.True(t, a.Equal(cp))
}

func TestPolynomialTOML(t *testing.T) {
	g := testScheme.KeyGroup
	a, _ := randomPoly(t, QmPolynomialDegree)
	got, err := PolynomialFromTOML(g, QmPolynomialDegree, a.TOML())
	require.NoError(t, err)
	require.True(t, a.Equal(got))

	_, err = PolynomialFromTOML(g, QmPolynomialDegree+1, a.TOML())
	require.ErrorIs(t, err, ErrShape)

	bad := a.TOML()
	bad.Coefficients[1] = bad.Coefficients[1][2:]
	_, err = PolynomialFromTOML(g, QmPolynomialDegree, bad)
	require.ErrorIs(t, err, crypto.ErrInvalidEncoding)
}
