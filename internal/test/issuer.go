// Package test offers fixtures shared by the tests of the step-out client:
// an issuer that builds groups and signs on behalf of their members.
package test

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/kyber"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/util/random"

	"github.com/drand/stepout/common/key"
	"github.com/drand/stepout/common/signature"
	"github.com/drand/stepout/crypto"
)

// Issuer plays the trusted issuer: it knows every scalar polynomial behind
// the published group.
type Issuer struct {
	Scheme   *crypto.Scheme
	Group    *key.Group
	master   *share.PriPoly
	partials []*share.PriPoly
}

// NewIssuerFromEnv creates a group of n members under the scheme named by
// SCHEME_ID, the default scheme when unset.
func NewIssuerFromEnv(t testing.TB, n int) *Issuer {
	sch, err := crypto.GetSchemeFromEnv()
	require.NoError(t, err)
	return NewIssuer(t, sch, n)
}

// NewIssuer creates a group of n members under sch.
func NewIssuer(t testing.TB, sch *crypto.Scheme, n int) *Issuer {
	g := sch.KeyGroup
	threshold := key.QmPolynomialDegree + 1
	master := share.NewPriPoly(g, threshold, nil, random.New())

	partials := make([]*share.PriPoly, n)
	members := make([]*key.Polynomial, n)
	for i := range partials {
		partials[i] = share.NewPriPoly(g, threshold, nil, random.New())
		members[i] = commit(t, g, partials[i])
	}
	grp, err := key.NewGroup(sch, fmt.Sprintf("test-%d", n), commit(t, g, master), members)
	require.NoError(t, err)
	return &Issuer{Scheme: sch, Group: grp, master: master, partials: partials}
}

func commit(t testing.TB, g kyber.Group, p *share.PriPoly) *key.Polynomial {
	_, commits := p.Commit(g.Point().Base()).Info()
	poly, err := key.NewPolynomial(g, key.QmPolynomialDegree, commits)
	require.NoError(t, err)
	return poly
}

// SecretKey returns sk_i = (Q + R_i)(i+1).
func (i *Issuer) SecretKey(index uint32) kyber.Scalar {
	sum, err := i.master.Add(i.partials[index])
	if err != nil {
		panic(err)
	}
	return sum.Eval(int(index)).V
}

// VerificationKey returns g2^sk_i.
func (i *Issuer) VerificationKey(index uint32) kyber.Point {
	return i.Scheme.KeyGroup.Point().Mul(i.SecretKey(index), nil)
}

// RevocationToken returns the token the issuer publishes to step member
// index out.
func (i *Issuer) RevocationToken(index uint32) kyber.Point {
	return i.VerificationKey(index)
}

// StepOut returns a step-out list revoking the given members.
func (i *Issuer) StepOut(epoch uint64, indices ...uint32) *key.StepOutList {
	tokens := make([]kyber.Point, len(indices))
	for j, idx := range indices {
		tokens[j] = i.RevocationToken(idx)
	}
	return key.NewStepOutList(i.Scheme, epoch, tokens)
}

// Sign returns a fresh signature of member index.
func (i *Issuer) Sign(t testing.TB, index uint32) *signature.Signature {
	nonce := make([]byte, i.Scheme.NonceSize)
	_, err := rand.Read(nonce)
	require.NoError(t, err)
	return i.SignWithNonce(t, index, nonce)
}

// SignWithNonce signs as member index with the given nonce.
func (i *Issuer) SignWithNonce(t testing.TB, index uint32, nonce []byte) *signature.Signature {
	sch := i.Scheme
	sk := i.SecretKey(index)
	u := sch.SigGroup.Point().Pick(random.New())
	sig := &signature.Signature{
		Scheme:  sch,
		Version: signature.V1,
		Index:   index,
		Nonce:   append([]byte(nil), nonce...),
		TagBase: u,
		Tag:     sch.SigGroup.Point().Mul(sk, u),
	}
	proof, err := sch.AuthScheme.Sign(sk, sch.Digest(i.Group.Hash(), sig))
	require.NoError(t, err)
	sig.Proof = sch.SigGroup.Point()
	require.NoError(t, sig.Proof.UnmarshalBinary(proof))
	return sig
}

// SignBytes returns the wire encoding of a fresh signature of member index.
func (i *Issuer) SignBytes(t testing.TB, index uint32) []byte {
	buff, err := i.Sign(t, index).Marshal()
	require.NoError(t, err)
	return buff
}
