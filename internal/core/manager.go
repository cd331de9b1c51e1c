// Package core holds the client manager: it derives member keys from the
// group parameters, fetches signatures through a transport and classifies
// them as verified, invalid or revoked.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/drand/kyber"

	"github.com/drand/stepout/common/key"
	"github.com/drand/stepout/common/log"
	"github.com/drand/stepout/common/signature"
	"github.com/drand/stepout/crypto"
	"github.com/drand/stepout/internal/metrics"
)

// Manager verifies signatures of the members of one group. The group
// parameters and the key registry never change after NewManager, only the
// step-out list is replaced, through SetStepOut or ReloadStepOut. A Manager is
// safe for concurrent use.
type Manager struct {
	conf      *Config
	log       log.Logger
	group     *key.Group
	groupHash []byte
	keys      []key.UserPublicKey
	vkeys     *lru.Cache

	mu      sync.RWMutex
	stepOut *key.StepOutList
}

// NewManager derives the key of every member of g. It fails if the group
// parameters are malformed.
func NewManager(g *key.Group, opts ...ConfigOption) (*Manager, error) {
	if g == nil {
		return nil, errors.New("manager: nil group")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("manager: invalid group: %w", err)
	}
	conf := NewConfig(opts...)
	cache, err := lru.New(conf.keyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("manager: key cache: %w", err)
	}

	keys := make([]key.UserPublicKey, g.Len())
	for i, partial := range g.Members {
		qm, err := g.Master.Combine(partial)
		if err != nil {
			return nil, fmt.Errorf("manager: member %d: %w", i, err)
		}
		keys[i] = key.NewUserPublicKey(qm)
	}

	m := &Manager{
		conf:      conf,
		log:       conf.logger.Named("manager"),
		group:     g,
		groupHash: g.Hash(),
		keys:      keys,
		vkeys:     cache,
		stepOut:   key.EmptyStepOutList(g.Scheme),
	}
	if conf.stepOut != nil {
		if err := m.SetStepOut(conf.stepOut); err != nil {
			return nil, fmt.Errorf("manager: %w", err)
		}
	}
	m.log.Infow("manager ready", "group", g.ID, "scheme", g.Scheme.Name, "members", g.Len())
	return m, nil
}

// Group returns the group parameters. They must not be modified.
func (m *Manager) Group() *key.Group {
	return m.group
}

// DeriveUserPublicKey returns the public key of member index, the combination
// of the master polynomial with the member's partial polynomial.
func (m *Manager) DeriveUserPublicKey(index uint32) (key.UserPublicKey, error) {
	if int64(index) >= int64(len(m.keys)) {
		return key.UserPublicKey{}, fmt.Errorf("%w: index %d, group has %d members", ErrUnknownMember, index, len(m.keys))
	}
	return m.keys[index], nil
}

// verificationKey returns g2^Qm_i(i+1), memoised.
func (m *Manager) verificationKey(index uint32) (kyber.Point, error) {
	if v, ok := m.vkeys.Get(index); ok {
		metrics.KeyCacheLookup(true)
		return v.(kyber.Point), nil
	}
	metrics.KeyCacheLookup(false)
	k, err := m.DeriveUserPublicKey(index)
	if err != nil {
		return nil, err
	}
	y := k.VerificationKey(index)
	m.vkeys.Add(index, y)
	return y, nil
}

// StepOut returns a copy of the step-out list currently in effect.
func (m *Manager) StepOut() *key.StepOutList {
	return m.currentStepOut().Copy()
}

// currentStepOut returns the list in effect. It is never modified, SetStepOut
// swaps in a new one.
func (m *Manager) currentStepOut() *key.StepOutList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stepOut
}

// SetStepOut replaces the step-out list. The list must belong to the group's
// scheme, carry valid tokens and must not be older than the current one. The
// manager keeps a copy, later changes to l have no effect.
func (m *Manager) SetStepOut(l *key.StepOutList) error {
	if l == nil {
		return errors.New("nil step-out list")
	}
	if l.Scheme.String() != m.group.Scheme.Name {
		return fmt.Errorf("step-out list: %w: %s", ErrSchemeMismatch, l.Scheme)
	}
	for i, t := range l.Tokens {
		if err := crypto.ValidatePoint(m.group.Scheme.KeyGroup, t); err != nil {
			return fmt.Errorf("step-out list: token %d: %w", i, err)
		}
	}

	l = l.Copy()
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.Epoch < m.stepOut.Epoch {
		return fmt.Errorf("%w: loaded %d, got %d", ErrStaleStepOut, m.stepOut.Epoch, l.Epoch)
	}
	m.stepOut = l
	metrics.StepOutLoaded(l.Epoch, l.Len())
	m.log.Infow("step-out list loaded", "epoch", l.Epoch, "tokens", l.Len())
	return nil
}

// ReloadStepOut fetches the step-out list from the configured source. On
// failure the current list stays in effect.
func (m *Manager) ReloadStepOut(ctx context.Context) error {
	if m.conf.stepOutSrc == nil {
		return ErrNoStepOutSource
	}
	l, err := m.conf.stepOutSrc.LoadStepOut(ctx)
	if err != nil {
		return fmt.Errorf("reload step-out list: %w", err)
	}
	return m.SetStepOut(l)
}

// RequestSignature fetches the signature of member index and decodes it. The
// signature is not verified. Transport failures match ErrTransport and
// undecodable bytes match signature.ErrMalformedSignature.
func (m *Manager) RequestSignature(ctx context.Context, index uint32) (*signature.Signature, error) {
	r := m.newRequest(index)
	sig, err := m.request(ctx, r)
	switch {
	case err == nil, errors.Is(err, ErrUnknownMember):
	case errors.Is(err, ErrTransport), errors.Is(err, ErrNoTransport):
		r.enter(StateTransportFailed)
	default:
		r.enter(StateInvalid)
	}
	return sig, err
}

func (m *Manager) request(ctx context.Context, r *request) (*signature.Signature, error) {
	if _, err := m.DeriveUserPublicKey(r.index); err != nil {
		return nil, err
	}
	t := m.conf.transport
	if t == nil {
		return nil, ErrNoTransport
	}

	r.enter(StateRequesting)
	start := m.conf.clock.Now()
	buff, err := t.FetchSignature(ctx, r.index)
	metrics.ObserveFetch(t.Name(), m.conf.clock.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	r.enter(StateDeserializing)
	sig, err := signature.Unmarshal(m.group.Scheme, buff)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// VerifySignature checks sig was produced by member index and that member
// index is not stepped out. Cryptographic failures are reported as an Invalid
// result, the error is only set for an unknown member.
func (m *Manager) VerifySignature(sig *signature.Signature, index uint32) (*Verification, error) {
	r := m.newRequest(index)
	start := m.conf.clock.Now()
	v, err := m.verify(r, sig)
	if err != nil {
		return nil, err
	}
	v.Took = m.conf.clock.Since(start)
	m.finish(r, v)
	return v, nil
}

func (m *Manager) verify(r *request, sig *signature.Signature) (*Verification, error) {
	y, err := m.verificationKey(r.index)
	if err != nil {
		return nil, err
	}
	r.enter(StateVerifying)

	list := m.currentStepOut()
	v := &Verification{
		Index:     r.index,
		Signature: sig,
		RevokedBy: -1,
		Epoch:     list.Epoch,
		RequestID: r.id,
	}
	if reason := m.wellFormed(sig); reason != nil {
		v.Result = Invalid
		v.Reason = reason
		return v, nil
	}

	// revocation is tested whether or not the equations hold
	if pos := list.Match(sig); pos >= 0 {
		v.Result = Revoked
		v.RevokedBy = pos
		return v, nil
	}

	if sig.Index != r.index {
		v.Result = Invalid
		v.Reason = fmt.Errorf("%w: signature claims %d", ErrIndexMismatch, sig.Index)
		return v, nil
	}
	if err := m.group.Scheme.VerifyMembership(m.groupHash, sig, y); err != nil {
		v.Result = Invalid
		v.Reason = err
		return v, nil
	}
	v.Result = Verified
	return v, nil
}

// wellFormed checks signatures that didn't go through signature.Unmarshal.
func (m *Manager) wellFormed(sig *signature.Signature) error {
	if sig == nil {
		return fmt.Errorf("%w: nil signature", signature.ErrMalformedSignature)
	}
	if sig.Scheme.String() != m.group.Scheme.Name {
		return fmt.Errorf("%w: %s", ErrSchemeMismatch, sig.Scheme)
	}
	if sig.Version != signature.V1 || len(sig.Nonce) != m.group.Scheme.NonceSize {
		return signature.ErrMalformedSignature
	}
	for _, p := range []kyber.Point{sig.TagBase, sig.Tag, sig.Proof} {
		if err := crypto.ValidatePoint(m.group.Scheme.SigGroup, p); err != nil {
			return fmt.Errorf("%w: %w", signature.ErrMalformedSignature, err)
		}
	}
	return nil
}

// AcquireAndVerify fetches the signature of member index and verifies it.
// Transport failures and malformed bytes are results, not errors: only an
// unknown member is returned as an error. A verified signature is stored in
// the archive when one is configured.
func (m *Manager) AcquireAndVerify(ctx context.Context, index uint32) (*Verification, error) {
	r := m.newRequest(index)
	start := m.conf.clock.Now()

	sig, err := m.request(ctx, r)
	var v *Verification
	switch {
	case errors.Is(err, ErrUnknownMember):
		return nil, err
	case errors.Is(err, ErrTransport), errors.Is(err, ErrNoTransport):
		v = &Verification{Result: TransportFailed, Index: index, Reason: err, RevokedBy: -1, RequestID: r.id}
	case err != nil:
		v = &Verification{Result: Invalid, Index: index, Reason: err, RevokedBy: -1, RequestID: r.id}
	default:
		if v, err = m.verify(r, sig); err != nil {
			return nil, err
		}
	}
	v.Took = m.conf.clock.Since(start)

	if v.OK() && m.conf.archive != nil {
		if err := m.conf.archive.Put(v.Signature); err != nil {
			m.log.Errorw("archiving verified signature", "request", r.id, "index", index, "err", err)
		}
	}
	m.finish(r, v)
	return v, nil
}

func (m *Manager) newRequest(index uint32) *request {
	return &request{
		id:    uuid.New().String(),
		index: index,
		state: StateIdle,
		cb:    m.conf.callback,
		log:   m.log,
	}
}

func (m *Manager) finish(r *request, v *Verification) {
	r.enter(terminalState(v.Result))
	metrics.ObserveResult(v.Result.String())
	switch v.Result {
	case Verified:
		m.log.Infow("signature verified", "request", r.id, "index", r.index, "took", v.Took)
	default:
		m.log.Warnw("signature rejected", "request", r.id, "index", r.index, "result", v.Result, "reason", v.Reason)
	}
}

// SaveVerified writes the signature of a Verified result to path, readable by
// the owner only. Any other result is refused with ErrNotVerified.
func SaveVerified(path string, v *Verification) error {
	if !v.OK() {
		return ErrNotVerified
	}
	return key.Save(path, v.Signature, true)
}
