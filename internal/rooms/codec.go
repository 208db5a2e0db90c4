package rooms

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DecodeError reports a record payload that could not be decoded. The
// synchronizer logs and skips such records instead of failing the pass.
type DecodeError struct {
	Kind string // "message" or "room"
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeMessage serializes a message record payload.
func EncodeMessage(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a message record payload.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, &DecodeError{Kind: "message", Err: err}
	}
	if m.Author == "" {
		return Message{}, &DecodeError{Kind: "message", Err: fmt.Errorf("missing author")}
	}
	return m, nil
}

// EncodeCorrelation serializes the payload of a room record: the
// correlation id minted by the client that created it.
func EncodeCorrelation(id uuid.UUID) ([]byte, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode correlation id: %w", err)
	}
	return data, nil
}

// DecodeCorrelation parses a room record payload.
func DecodeCorrelation(data []byte) (uuid.UUID, error) {
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return uuid.Nil, &DecodeError{Kind: "room", Err: err}
	}
	return id, nil
}
