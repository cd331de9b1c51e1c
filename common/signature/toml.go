package signature

import (
	"encoding/hex"
	"fmt"

	"github.com/drand/stepout/crypto"
)

// SignatureTOML is the TOML representation of a Signature.
type SignatureTOML struct {
	SchemeID string
	Version  int
	Index    uint32
	Nonce    string
	TagBase  string
	Tag      string
	Proof    string
}

// TOML returns the TOML-compatible version of s.
func (s *Signature) TOML() interface{} {
	return &SignatureTOML{
		SchemeID: s.Scheme.String(),
		Version:  int(s.Version),
		Index:    s.Index,
		Nonce:    hex.EncodeToString(s.Nonce),
		TagBase:  crypto.PointToString(s.TagBase),
		Tag:      crypto.PointToString(s.Tag),
		Proof:    crypto.PointToString(s.Proof),
	}
}

// FromTOML decodes a SignatureTOML, applying the same checks as Unmarshal.
func (s *Signature) FromTOML(i interface{}) error {
	st, ok := i.(*SignatureTOML)
	if !ok {
		return fmt.Errorf("signature: wrong interface, expected SignatureTOML")
	}
	sch, err := crypto.GetSchemeByIDWithDefault(st.SchemeID)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if st.Version < 0 || st.Version > 255 {
		return fmt.Errorf("%w: unknown version %d", ErrMalformedSignature, st.Version)
	}
	fields := make([][]byte, 4)
	for j, f := range []string{st.Nonce, st.TagBase, st.Tag, st.Proof} {
		if fields[j], err = hex.DecodeString(f); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
		}
	}
	return s.fill(sch, byte(st.Version), st.Index, fields[0], fields[1], fields[2], fields[3])
}

// TOMLValue returns an empty TOML-compatible value of the signature.
func (s *Signature) TOMLValue() interface{} {
	return &SignatureTOML{}
}
