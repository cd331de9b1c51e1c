package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/stepout/internal/core"
)

func TestExecute(t *testing.T) {
	iss := newIssuer(t)
	m := newManager(t, iss, core.WithTransport(serving(iss.SignBytes(t, 1))))
	ctx := context.Background()

	resp, err := m.Execute(ctx, core.Request{Op: core.OpDeriveKey, Index: 1})
	require.NoError(t, err)
	require.True(t, iss.VerificationKey(1).Equal(resp.Key.VerificationKey(1)))

	resp, err = m.Execute(ctx, core.Request{Op: core.OpRequestSignature, Index: 1})
	require.NoError(t, err)
	require.NotNil(t, resp.Signature)

	resp, err = m.Execute(ctx, core.Request{Op: core.OpVerify, Index: 1, Signature: resp.Signature})
	require.NoError(t, err)
	require.Equal(t, core.Verified, resp.Verification.Result)

	resp, err = m.Execute(ctx, core.Request{Op: core.OpAcquireAndVerify, Index: 1})
	require.NoError(t, err)
	require.Equal(t, core.OpAcquireAndVerify, resp.Op)
	require.Equal(t, core.Verified, resp.Verification.Result)

	_, err = m.Execute(ctx, core.Request{Op: core.OpDeriveKey, Index: 9})
	require.ErrorIs(t, err, core.ErrUnknownMember)

	_, err = m.Execute(ctx, core.Request{Op: core.Operation(42)})
	require.ErrorIs(t, err, core.ErrUnknownOperation)
}

func TestResultStrings(t *testing.T) {
	require.Equal(t, "verified", core.Verified.String())
	require.Equal(t, "revoked", core.Revoked.String())
	require.Equal(t, "transport_failed", core.TransportFailed.String())
	require.Equal(t, "Deserializing", core.StateDeserializing.String())
	require.Equal(t, "verify", core.OpVerify.String())
}
