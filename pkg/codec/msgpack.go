// Package codec serializes TriggerDecisions and CompletionTokens for the
// wire. The core dispatch logic is agnostic to the bytes; this package
// is the concrete MsgPack codec named in the specification.
package codec

import (
	"fmt"

	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeDecision serializes a TriggerDecision to MsgPack bytes.
func EncodeDecision(decision models.TriggerDecision) ([]byte, error) {
	b, err := msgpack.Marshal(decision)
	if err != nil {
		return nil, fmt.Errorf("codec: encode decision: %w", err)
	}
	return b, nil
}

// DecodeDecision deserializes MsgPack bytes into a TriggerDecision.
func DecodeDecision(b []byte) (models.TriggerDecision, error) {
	var decision models.TriggerDecision
	if err := msgpack.Unmarshal(b, &decision); err != nil {
		return models.TriggerDecision{}, fmt.Errorf("codec: decode decision: %w", err)
	}
	return decision, nil
}

// EncodeToken serializes a CompletionToken to MsgPack bytes.
func EncodeToken(token models.CompletionToken) ([]byte, error) {
	b, err := msgpack.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("codec: encode token: %w", err)
	}
	return b, nil
}

// DecodeToken deserializes MsgPack bytes into a CompletionToken.
func DecodeToken(b []byte) (models.CompletionToken, error) {
	var token models.CompletionToken
	if err := msgpack.Unmarshal(b, &token); err != nil {
		return models.CompletionToken{}, fmt.Errorf("codec: decode token: %w", err)
	}
	return token, nil
}
