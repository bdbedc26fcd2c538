package remoteid

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON form of a Message when it leaves the process.
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	Version uint8           `json:"version"`
	Title   string          `json:"title"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes a message inside an Envelope.
func Marshal(msg Message) ([]byte, error) {
	if IsNil(msg) {
		return nil, fmt.Errorf("failed to marshal nil message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.Kind(), err)
	}
	return json.Marshal(Envelope{
		Kind:    msg.Kind(),
		Version: msg.ProtocolVersion(),
		Title:   msg.Kind().String(),
		Payload: payload,
	})
}

// Unmarshal decodes an Envelope produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	var msg Message
	switch env.Kind {
	case KindBasicID:
		msg = &BasicID{}
	case KindLocation:
		msg = &Location{}
	case KindSelfID:
		msg = &SelfID{}
	case KindSystem:
		msg = &System{}
	case KindOperatorID:
		msg = &OperatorID{}
	default:
		msg = &Raw{}
	}

	if err := json.Unmarshal(env.Payload, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Kind, err)
	}
	if raw, ok := msg.(*Raw); ok {
		raw.TypeCode = uint8(env.Kind)
	}
	return msg, nil
}
