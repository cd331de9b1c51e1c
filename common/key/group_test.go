package key

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"
)

func makeGroup(t *testing.T, n int) *Group {
	master, _ := randomPoly(t, QmPolynomialDegree)
	members := make([]*Polynomial, n)
	for i := range members {
		members[i], _ = randomPoly(t, QmPolynomialDegree)
	}
	g, err := NewGroup(testScheme, "test-group", master, members)
	require.NoError(t, err)
	return g
}

func TestGroupValidate(t *testing.T) {
	master, _ := randomPoly(t, QmPolynomialDegree)
	short, _ := randomPoly(t, 1)
	long, _ := randomPoly(t, 3)

	_, err := NewGroup(testScheme, "g", master, []*Polynomial{master, short, nil, long})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrShape)
	require.Contains(t, err.Error(), "member[1]")
	require.Contains(t, err.Error(), "member[2]")
	require.Contains(t, err.Error(), "member[3]")

	_, err = NewGroup(nil, "g", master, nil)
	require.Error(t, err)

	g, err := NewGroup(testScheme, "g", master, nil)
	require.NoError(t, err)
	require.Equal(t, 0, g.Len())
}

func TestGroupMember(t *testing.T) {
	g := makeGroup(t, 3)
	m, ok := g.Member(2)
	require.True(t, ok)
	require.True(t, m.Equal(g.Members[2]))
	_, ok = g.Member(3)
	require.False(t, ok)
	_, ok = g.Member(^uint32(0))
	require.False(t, ok)

	require.True(t, g.EvaluationPoint(0).Equal(testScheme.KeyGroup.Scalar().One()))
}

func TestGroupHash(t *testing.T) {
	g := makeGroup(t, 2)
	require.Equal(t, g.Hash(), g.Hash())
	require.Len(t, g.Hash(), 32)

	renamed := *g
	renamed.ID = "other"
	require.NotEqual(t, g.Hash(), renamed.Hash())

	one := *g
	one.Members = g.Members[:1]
	require.NotEqual(t, g.Hash(), one.Hash())
}

func TestGroupSaveLoad(t *testing.T) {
	g := makeGroup(t, 3)
	path := filepath.Join(t.TempDir(), "group.toml")
	require.NoError(t, Save(path, g, false))

	loaded, err := LoadGroup(path)
	require.NoError(t, err)
	require.True(t, g.Equal(loaded))
	require.Equal(t, g.Hash(), loaded.Hash())

	require.NoError(t, Save(path, g, true))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGroupFromTOMLErrors(t *testing.T) {
	g := makeGroup(t, 2)
	gt := g.TOML().(*GroupTOML)

	wrongDegree := *gt
	wrongDegree.Degree = 3
	require.ErrorIs(t, new(Group).FromTOML(&wrongDegree), ErrShape)

	unknown := *gt
	unknown.SchemeID = "nope"
	require.Error(t, new(Group).FromTOML(&unknown))

	// every broken member is reported
	broken := *gt
	broken.Members = []*PolynomialTOML{
		{Coefficients: gt.Master.Coefficients[:2]},
		{Coefficients: []string{"00", "11", "22"}},
	}
	err := new(Group).FromTOML(&broken)
	require.Error(t, err)
	require.Contains(t, err.Error(), "member[0]")
	require.Contains(t, err.Error(), "member[1]")

	require.Error(t, new(Group).FromTOML(&StepOutTOML{}))
}

func TestGroupEmptySchemeIsDefault(t *testing.T) {
	g := makeGroup(t, 1)
	gt := g.TOML().(*GroupTOML)
	gt.SchemeID = ""
	loaded := new(Group)
	require.NoError(t, loaded.FromTOML(gt))
	require.Equal(t, testScheme.Name, loaded.Scheme.Name)
}

func TestGroupString(t *testing.T) {
	g := makeGroup(t, 1)
	gt := new(GroupTOML)
	_, err := toml.Decode(g.String(), gt)
	require.NoError(t, err)
	require.Equal(t, g.ID, gt.ID)
	require.Len(t, gt.Members, 1)
}

func TestUserPublicKey(t *testing.T) {
	g := makeGroup(t, 2)
	qm0, err := g.Master.Combine(g.Members[0])
	require.NoError(t, err)
	qm1, err := g.Master.Combine(g.Members[1])
	require.NoError(t, err)

	var zero UserPublicKey
	require.True(t, zero.IsZero())

	k := NewUserPublicKey(qm0)
	require.False(t, k.IsZero())
	k2 := k.WithQm(qm1)
	require.True(t, k.Qm().Equal(qm0), "WithQm must not modify the receiver")
	require.True(t, k2.Qm().Equal(qm1))
	require.False(t, k.Equal(k2))
	require.True(t, k.Equal(NewUserPublicKey(qm0)))

	x := g.EvaluationPoint(0)
	require.True(t, k.VerificationKey(0).Equal(qm0.EvaluateAt(x)))

	kt := k.TOML(0)
	require.Equal(t, uint32(0), kt.Index)
	back, err := PolynomialFromTOML(testScheme.KeyGroup, QmPolynomialDegree, kt.Qm)
	require.NoError(t, err)
	require.True(t, back.Equal(qm0))
}

type transcript struct {
	index uint32
	nonce []byte
	u     kyber.Point
	v     kyber.Point
	sigma kyber.Point
}

func (t *transcript) GetIndex() uint32        { return t.index }
func (t *transcript) GetNonce() []byte        { return t.nonce }
func (t *transcript) GetTagBase() kyber.Point { return t.u }
func (t *transcript) GetTag() kyber.Point     { return t.v }
func (t *transcript) GetProof() kyber.Point   { return t.sigma }

func taggedBy(sk kyber.Scalar) *transcript {
	g1 := testScheme.SigGroup
	u := g1.Point().Pick(random.New())
	return &transcript{u: u, v: g1.Point().Mul(sk, u)}
}

func TestStepOutMatch(t *testing.T) {
	g2 := testScheme.KeyGroup
	sks := make([]kyber.Scalar, 3)
	tokens := make([]kyber.Point, 3)
	for i := range sks {
		sks[i] = g2.Scalar().Pick(random.New())
		tokens[i] = g2.Point().Mul(sks[i], nil)
	}

	l := NewStepOutList(testScheme, 1, tokens[1:])
	require.Equal(t, 2, l.Len())
	require.Equal(t, -1, l.Match(taggedBy(sks[0])))
	require.Equal(t, 0, l.Match(taggedBy(sks[1])))
	require.Equal(t, 1, l.Match(taggedBy(sks[2])))

	require.Equal(t, -1, EmptyStepOutList(testScheme).Match(taggedBy(sks[1])))
	var nilList *StepOutList
	require.Equal(t, 0, nilList.Len())
	require.Equal(t, -1, nilList.Match(taggedBy(sks[1])))

	// the list keeps copies of the tokens
	tokens[1].Null()
	require.Equal(t, 0, l.Match(taggedBy(sks[1])))
}

func TestStepOutCopyEqual(t *testing.T) {
	g2 := testScheme.KeyGroup
	l := NewStepOutList(testScheme, 3, []kyber.Point{g2.Point().Pick(random.New())})
	c := l.Copy()
	require.True(t, l.Equal(c))

	c.Tokens[0].Null()
	require.False(t, l.Equal(c))
	require.False(t, l.Equal(EmptyStepOutList(testScheme)))

	c = l.Copy()
	c.Epoch++
	require.False(t, l.Equal(c))
}

func TestStepOutSaveLoad(t *testing.T) {
	g2 := testScheme.KeyGroup
	tokens := []kyber.Point{
		g2.Point().Pick(random.New()),
		g2.Point().Pick(random.New()),
	}
	l := NewStepOutList(testScheme, 7, tokens)
	path := filepath.Join(t.TempDir(), "stepout.toml")
	require.NoError(t, Save(path, l, false))

	loaded, err := LoadStepOutList(path)
	require.NoError(t, err)
	require.Equal(t, uint64(7), loaded.Epoch)
	require.Equal(t, l.Scheme.Name, loaded.Scheme.Name)
	require.Len(t, loaded.Tokens, 2)
	for i := range tokens {
		require.True(t, tokens[i].Equal(loaded.Tokens[i]))
	}

	empty := EmptyStepOutList(testScheme)
	require.NoError(t, Save(path, empty, false))
	loaded, err = LoadStepOutList(path)
	require.NoError(t, err)
	require.Equal(t, 0, loaded.Len())

	bad := &StepOutTOML{SchemeID: testScheme.Name, Tokens: []string{"abcd"}}
	require.Error(t, new(StepOutList).FromTOML(bad))

	_, err = LoadStepOutList(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
