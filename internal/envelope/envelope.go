// Package envelope defines the wire message shape shared by every request
// and response exchanged between peers: a small set of routing fields
// (id, paradigm, method) merged at the top level with whatever fields the
// named method contributes. Nothing else is permitted on the wire.
package envelope

import (
	"encoding/json"
	"fmt"
)

// Kind values for ID.Kind.
const (
	KindRequest  = "req"
	KindResponse = "rep"
)

// ID identifies one exchange: the originator, the target, the originator's
// chosen correlation UUID, and which side of the exchange this message is.
type ID struct {
	UUID string `json:"uuid"`
	To   string `json:"to"`
	From string `json:"from"`
	Kind string `json:"kind"`
}

// Envelope is the parsed, typed view of a message: the routing fields split
// out, everything else kept as raw JSON in Fields so that method-specific
// payloads never need a schema-aware Go type at this layer.
type Envelope struct {
	ID       ID
	Paradigm string
	Method   string
	Fields   map[string]json.RawMessage
}

// New builds an envelope carrying fields (none if nil); callers add more
// with Set, then stamp Paradigm/Method (see the paradigm package's Stamp).
func New(id ID, fields map[string]json.RawMessage) *Envelope {
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return &Envelope{ID: id, Fields: fields}
}

// Set merges data, marshaled to JSON, onto the envelope's top-level fields.
func (e *Envelope) Set(data interface{}) error {
	merged, err := FieldsOf(data)
	if err != nil {
		return fmt.Errorf("envelope: set: %w", err)
	}
	if e.Fields == nil {
		e.Fields = map[string]json.RawMessage{}
	}
	for k, v := range merged {
		e.Fields[k] = v
	}
	return nil
}

// Decode unmarshals the envelope's merged fields into v.
func (e *Envelope) Decode(v interface{}) error {
	b, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("envelope: decode: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("envelope: decode: %w", err)
	}
	return nil
}

// Raw returns the full merged top-level object (id, paradigm, method, and
// every method field) suitable for schema validation or wire transmission.
func (e *Envelope) Raw() (map[string]json.RawMessage, error) {
	idRaw, err := json.Marshal(e.ID)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshaling id: %w", err)
	}
	paradigmRaw, err := json.Marshal(e.Paradigm)
	if err != nil {
		return nil, err
	}
	methodRaw, err := json.Marshal(e.Method)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["id"] = idRaw
	out["paradigm"] = paradigmRaw
	out["method"] = methodRaw
	return out, nil
}

// MarshalJSON implements the flat wire shape: id/paradigm/method alongside
// every method-specific field, all at the same level.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	raw, err := e.Raw()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// UnmarshalJSON splits id/paradigm/method out of the flat object and keeps
// the remainder as Fields. It does not validate the result against any
// schema; that is the schema package's job.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	return e.fromRaw(raw)
}

// FromRaw builds an Envelope out of a previously decoded top-level object,
// e.g. one read off the wire before its shape is known to be valid.
func FromRaw(raw map[string]json.RawMessage) (*Envelope, error) {
	e := &Envelope{}
	if err := e.fromRaw(raw); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Envelope) fromRaw(raw map[string]json.RawMessage) error {
	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("envelope: missing \"id\"")
	}
	var id ID
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return fmt.Errorf("envelope: invalid \"id\": %w", err)
	}

	var paradigmName, methodName string
	if v, ok := raw["paradigm"]; ok {
		if err := json.Unmarshal(v, &paradigmName); err != nil {
			return fmt.Errorf("envelope: invalid \"paradigm\": %w", err)
		}
	}
	if v, ok := raw["method"]; ok {
		if err := json.Unmarshal(v, &methodName); err != nil {
			return fmt.Errorf("envelope: invalid \"method\": %w", err)
		}
	}

	fields := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if k == "id" || k == "paradigm" || k == "method" {
			continue
		}
		fields[k] = v
	}

	e.ID = id
	e.Paradigm = paradigmName
	e.Method = methodName
	e.Fields = fields
	return nil
}

// FieldsOf marshals v and flattens it into a map of raw JSON fields, the
// building block used both by Set and by paradigm request/response builders.
func FieldsOf(v interface{}) (map[string]json.RawMessage, error) {
	if v == nil {
		return map[string]json.RawMessage{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshaling fields: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("envelope: flattening fields: %w", err)
	}
	return fields, nil
}

// Ack is the listener's synchronous acknowledgement, sent before any handler
// runs. It is never validated against a paradigm schema.
type Ack struct {
	Ack bool `json:"ack"`
}
