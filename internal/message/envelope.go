package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the envelope wire version. Parsers reject anything else.
const Version = 1

// Envelope is the versioned request/response wrapper used on the wire.
// Responses echo the request's correlation id.
type Envelope struct {
	Version   int             `json:"version"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	OK        bool            `json:"ok"`
	Error     *ErrorBody      `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorBody carries a machine kind plus a human-readable message
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewRequest creates a request envelope with a fresh correlation id
func NewRequest(msgType string, payload interface{}) (*Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version:   Version,
		ID:        uuid.NewString(),
		Type:      msgType,
		OK:        true,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// NewResponse creates a success envelope correlated with the request
func NewResponse(req *Envelope, payload interface{}) (*Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version:   Version,
		ID:        correlationID(req),
		Type:      responseType(req),
		OK:        true,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// NewErrorResponse creates a failure envelope correlated with the request
func NewErrorResponse(req *Envelope, kind, msg string) *Envelope {
	return &Envelope{
		Version:   Version,
		ID:        correlationID(req),
		Type:      responseType(req),
		OK:        false,
		Error:     &ErrorBody{Kind: kind, Message: msg},
		Timestamp: time.Now(),
	}
}

// Parse decodes an envelope from wire bytes, rejecting unknown versions
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("error parsing envelope: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("envelope missing correlation id")
	}
	return &env, nil
}

// DecodePayload unmarshals the envelope payload into v
func (e *Envelope) DecodePayload(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope has no payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// Encode serializes the envelope to wire bytes
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding payload: %w", err)
	}
	return raw, nil
}

func correlationID(req *Envelope) string {
	if req != nil && req.ID != "" {
		return req.ID
	}
	return uuid.NewString()
}

func responseType(req *Envelope) string {
	if req == nil || req.Type == "" {
		return "response"
	}
	return req.Type + ".result"
}
