package crypto_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"

	"github.com/drand/stepout/crypto"
)

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

func sign(t *testing.T, sch *crypto.Scheme, sk kyber.Scalar, groupHash []byte) *transcript {
	r := sch.SigGroup.Scalar().Pick(random.New())
	u := sch.SigGroup.Point().Mul(r, nil)
	tr := &transcript{
		index: 7,
		nonce: bytes.Repeat([]byte{0x2a}, sch.NonceSize),
		u:     u,
		v:     sch.SigGroup.Point().Mul(sk, u),
	}
	proof, err := sch.AuthScheme.Sign(sk, sch.Digest(groupHash, tr))
	require.NoError(t, err)
	tr.sigma = sch.SigGroup.Point()
	require.NoError(t, tr.sigma.UnmarshalBinary(proof))
	return tr
}

func TestNamesInList(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"", false},
		{crypto.DefaultSchemeID, true},
		{"nonexistentschemename", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"IsInList", func(t *testing.T) {
			found := false
			for _, v := range crypto.ListSchemes() {
				if tt.name == v {
					found = true
				}
			}
			require.Equal(t, tt.expected, found)
		})
	}
}

func TestSchemeFromName(t *testing.T) {
	sch, err := crypto.SchemeFromName(crypto.DefaultSchemeID)
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultSchemeID, sch.String())

	_, err = crypto.SchemeFromName("bbs04")
	require.ErrorIs(t, err, crypto.ErrUnknownScheme)

	sch, err = crypto.GetSchemeByIDWithDefault("")
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultSchemeID, sch.Name)
}

func TestMembershipAndRevocation(t *testing.T) {
	sch := crypto.NewStepOutBLSVLR()
	groupHash := []byte("group hash")

	sk := sch.KeyGroup.Scalar().Pick(random.New())
	pub := sch.KeyGroup.Point().Mul(sk, nil)
	other := sch.KeyGroup.Point().Mul(sch.KeyGroup.Scalar().Pick(random.New()), nil)

	tr := sign(t, sch, sk, groupHash)
	require.NoError(t, sch.VerifyMembership(groupHash, tr, pub))
	require.ErrorIs(t, sch.VerifyMembership(groupHash, tr, other), crypto.ErrProofMismatch)
	require.ErrorIs(t, sch.VerifyMembership([]byte("another group"), tr, pub), crypto.ErrProofMismatch)

	require.True(t, sch.RevokedBy(tr, pub))
	require.False(t, sch.RevokedBy(tr, other))

	// a tag not bound to the signer's key fails even with a valid proof
	forged := *tr
	forged.v = sch.SigGroup.Point().Mul(sch.SigGroup.Scalar().Pick(random.New()), tr.u)
	proof, err := sch.AuthScheme.Sign(sk, sch.Digest(groupHash, &forged))
	require.NoError(t, err)
	forged.sigma = sch.SigGroup.Point()
	require.NoError(t, forged.sigma.UnmarshalBinary(proof))
	require.ErrorIs(t, sch.VerifyMembership(groupHash, &forged, pub), crypto.ErrTagMismatch)

	// the identity as tag base would match any token
	null := *tr
	null.u = sch.SigGroup.Point().Null()
	null.v = sch.SigGroup.Point().Null()
	require.ErrorIs(t, sch.VerifyMembership(groupHash, &null, pub), crypto.ErrTagMismatch)
	require.False(t, sch.RevokedBy(&null, pub))
}

func TestDigestCoversTranscript(t *testing.T) {
	sch := crypto.NewStepOutBLSVLR()
	sk := sch.KeyGroup.Scalar().Pick(random.New())
	tr := sign(t, sch, sk, nil)
	d := sch.Digest(nil, tr)

	moved := *tr
	moved.index++
	require.NotEqual(t, d, sch.Digest(nil, &moved))

	renonced := *tr
	renonced.nonce = bytes.Repeat([]byte{0x01}, sch.NonceSize)
	require.NotEqual(t, d, sch.Digest(nil, &renonced))
}

func BenchmarkVerifyMembership(b *testing.B) {
	sch, err := crypto.GetSchemeFromEnv()
	if err != nil {
		b.Fatal(err)
	}
	sk := sch.KeyGroup.Scalar().Pick(random.New())
	pub := sch.KeyGroup.Point().Mul(sk, nil)
	u := sch.SigGroup.Point().Pick(random.New())
	tr := &transcript{nonce: make([]byte, sch.NonceSize), u: u, v: sch.SigGroup.Point().Mul(sk, u)}
	proof, _ := sch.AuthScheme.Sign(sk, sch.Digest(nil, tr))
	tr.sigma = sch.SigGroup.Point()
	_ = tr.sigma.UnmarshalBinary(proof)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := sch.VerifyMembership(nil, tr, pub); err != nil {
			b.Fatal(err)
		}
	}
}

func TestEquationsConcurrentSharedKey(t *testing.T) {
	sch := crypto.NewStepOutBLSVLR()
	sk := sch.KeyGroup.Scalar().Pick(random.New())
	// the shared key is left in projective form, as Mul returns it
	key := sch.KeyGroup.Point().Mul(sk, nil)
	groupHash := []byte("group")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		tr := sign(t, sch, sk, groupHash)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sch.VerifyMembership(groupHash, tr, key); err != nil {
				t.Errorf("membership: %v", err)
			}
			if !sch.RevokedBy(tr, key) {
				t.Error("not revoked by own key")
			}
		}()
	}
	wg.Wait()
}
