package domain

import (
	"encoding/json"
	"fmt"
)

// ============================================================
// Envelope
// ============================================================

// Envelope is the uniform result of every backend call.
// Feature code branches on Success instead of handling Go errors.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  int             `json:"status"`

	// Raw is the full JSON body; Text is set for non-JSON 2xx bodies.
	Raw  json.RawMessage `json:"-"`
	Text string          `json:"-"`
}

// Unauthorized reports whether the backend rejected the credential.
func (e *Envelope) Unauthorized() bool {
	return e.Status == 401
}

// Network reports whether the call never produced an HTTP response.
func (e *Envelope) Network() bool {
	return !e.Success && e.Status == 0
}

// DecodeData unmarshals the data payload into v. Bodies without a data key
// are decoded as a whole.
func (e *Envelope) DecodeData(v any) error {
	switch {
	case len(e.Data) > 0 && string(e.Data) != "null":
		return json.Unmarshal(e.Data, v)
	case len(e.Raw) > 0:
		return json.Unmarshal(e.Raw, v)
	}
	return fmt.Errorf("empty response body")
}

// Field unmarshals one top-level key of the body into v.
// It returns false when the key is absent.
func (e *Envelope) Field(key string, v any) (bool, error) {
	if len(e.Raw) == 0 {
		return false, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(e.Raw, &m); err != nil {
		return false, nil
	}
	raw, ok := m[key]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Message returns the server "mensagem" field, or fallback.
func (e *Envelope) Message(fallback string) string {
	var msg string
	if ok, err := e.Field("mensagem", &msg); ok && err == nil && msg != "" {
		return msg
	}
	var data struct {
		Mensagem string `json:"mensagem"`
	}
	if len(e.Data) > 0 && json.Unmarshal(e.Data, &data) == nil && data.Mensagem != "" {
		return data.Mensagem
	}
	return fallback
}

// Err converts a failed envelope into a typed error. It returns nil on success.
func (e *Envelope) Err(service string) error {
	if e.Success {
		return nil
	}
	switch {
	case e.Status == 401:
		return &ErrUnauthorized{Message: e.Error}
	case e.Status == 403:
		return &ErrForbidden{Action: service}
	case e.Status == 404:
		return &ErrNotFound{Resource: service, ID: e.Error}
	case e.Status == 0:
		return &ErrNetwork{Service: service, Message: e.Error}
	}
	return &ErrExternalService{Service: service, Status: e.Status, Err: fmt.Errorf("%s", e.Error)}
}
