// Package codec provides the reference Codec and HandlerRegistry
// implementations described in spec §9: a registered-handler model that
// replaces serializing arbitrary callables. Embedding applications may
// supply their own domain.Codec; this package exists so Store, Producer,
// and Worker are independently testable without one.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// wireEnvelope is the JSON-on-the-wire shape of a domain.Envelope.
type wireEnvelope struct {
	Handler string            `json:"handler"`
	Args    []json.RawMessage `json:"args"`
	Context []byte            `json:"context,omitempty"`
}

// JSON is the default domain.Codec: envelopes and values round-trip
// through encoding/json. nil round-trips as JSON null.
type JSON struct{}

var _ domain.Codec = JSON{}

// EncodeEnvelope implements domain.Codec.
func (JSON) EncodeEnvelope(env domain.Envelope) ([]byte, error) {
	w := wireEnvelope{Handler: env.Handler, Context: env.Context}
	w.Args = make([]json.RawMessage, len(env.Args))
	for i, a := range env.Args {
		if len(a) == 0 {
			w.Args[i] = json.RawMessage("null")
			continue
		}
		w.Args[i] = json.RawMessage(a)
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("op=codec.encode_envelope: %w: %w", domain.ErrCodec, err)
	}
	return b, nil
}

// DecodeEnvelope implements domain.Codec.
func (JSON) DecodeEnvelope(b []byte) (domain.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return domain.Envelope{}, fmt.Errorf("op=codec.decode_envelope: %w: %w", domain.ErrCodec, err)
	}
	if w.Handler == "" {
		return domain.Envelope{}, fmt.Errorf("op=codec.decode_envelope: %w: missing handler", domain.ErrCodec)
	}
	args := make([]domain.RawValue, len(w.Args))
	for i, a := range w.Args {
		args[i] = domain.RawValue(a)
	}
	return domain.Envelope{Handler: w.Handler, Args: args, Context: w.Context}, nil
}

// EncodeValue implements domain.Codec.
func (JSON) EncodeValue(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("op=codec.encode_value: %w: %w", domain.ErrCodec, err)
	}
	return b, nil
}

// DecodeValue implements domain.Codec.
func (JSON) DecodeValue(b []byte, out any) error {
	if len(b) == 0 {
		b = []byte("null")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("op=codec.decode_value: %w: %w", domain.ErrCodec, err)
	}
	return nil
}

// EncodeArg is a convenience for building domain.Envelope.Args from
// ordinary Go values at the call site.
func EncodeArg(v any) (domain.RawValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("op=codec.encode_arg: %w: %w", domain.ErrCodec, err)
	}
	return domain.RawValue(b), nil
}
