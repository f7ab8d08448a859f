// Package request implements the per-exchange state a worker carries from
// the moment an envelope is dequeued to the moment its response has been
// sent and the opposite peer's confirm has been received.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/tenzoki/meshd/internal/envelope"
	"github.com/tenzoki/meshd/internal/paradigm"
	"github.com/tenzoki/meshd/internal/schema"
	"github.com/tenzoki/meshd/internal/wire"
)

// Error codes carried in a response's "code" field when processing fails
// before a handler produces a real result.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnknownError    = "UNKNOWN_ERROR"
)

// ErrorRedactor filters the text that lands in an UNKNOWN_ERROR response's
// "message" field. It defaults to the identity function; a deployment that
// cannot expose raw Go error text to peers may replace it without changing
// the envelope shape.
var ErrorRedactor = func(message string) string { return message }

// Request holds one in-flight exchange: the raw, not-yet-validated envelope
// fields as received, the derived outbound host, and the response once
// processing has run.
type Request struct {
	Raw      map[string]json.RawMessage
	Response map[string]json.RawMessage
	Host     string
}

// New constructs a Request from a raw top-level JSON object, deriving Host
// — the address the worker must dial to deliver this exchange's computed
// reply — as tcp://id.from for a req (the reply goes back to whoever
// originated the exchange) and tcp://id.to for a rep (present for
// symmetry; the listener never enqueues rep-kind envelopes as Requests,
// see Server.handleConnection, so this branch is not reachable in
// practice). Host is empty if id is missing or malformed; the worker drops
// such a request without processing it, since there is nowhere to send the
// reply.
func New(raw map[string]json.RawMessage) *Request {
	return &Request{Raw: raw, Host: deriveHost(raw)}
}

func deriveHost(raw map[string]json.RawMessage) string {
	idRaw, ok := raw["id"]
	if !ok {
		return ""
	}
	var id envelope.ID
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return ""
	}
	switch id.Kind {
	case envelope.KindRequest:
		return "tcp://" + id.From
	case envelope.KindResponse:
		return "tcp://" + id.To
	default:
		return ""
	}
}

// Equal reports whether two requests carry the same envelope, field for
// field (not byte for byte — whitespace differences in raw JSON don't
// count).
func (r *Request) Equal(other *Request) bool {
	if other == nil {
		return false
	}
	a, err := json.Marshal(normalize(r.Raw))
	if err != nil {
		return false
	}
	b, err := json.Marshal(normalize(other.Raw))
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

func normalize(raw map[string]json.RawMessage) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		var val interface{}
		_ = json.Unmarshal(v, &val)
		out[k] = val
	}
	return out
}

// Process is the worker entry point: validate and dispatch, decorate the
// result, send it on conn, then block for the opposite peer's confirm
// before returning. Validation and handler errors are turned into response
// bodies here; they never propagate out of Process as errors. Only a
// transport failure while sending the response is returned to the caller.
func (r *Request) Process(conn *wire.Conn, registry *paradigm.Registry, validator *schema.Validator) error {
	r.Response = r.buildResponse(registry, validator)

	if err := conn.Send(r.Response); err != nil {
		return fmt.Errorf("request: sending response: %w", err)
	}

	var confirm map[string]json.RawMessage
	if err := conn.Recv(&confirm); err != nil {
		log.Printf("Request: confirm recv failed (ignored): %v", err)
		return nil
	}
	log.Printf("Request: received confirm from %s", r.Host)
	return nil
}

func (r *Request) buildResponse(registry *paradigm.Registry, validator *schema.Validator) map[string]json.RawMessage {
	env, err := envelope.FromRaw(r.Raw)
	if err != nil {
		return decorate(r.Raw, CodeValidationError, err.Error())
	}

	if err := validator.Validate(schema.RequestSide, env.Paradigm, env.Method, r.Raw); err != nil {
		return decorate(r.Raw, CodeValidationError, err.Error())
	}

	method, ok := registry.Lookup(env.Paradigm, env.Method)
	if !ok {
		return decorate(r.Raw, CodeValidationError, registry.UnknownMessage(env.Paradigm, env.Method))
	}

	fields, err := method.Handle(env)
	if err != nil {
		return decorate(r.Raw, CodeUnknownError, ErrorRedactor(err.Error()))
	}

	respID := env.ID
	respID.Kind = envelope.KindResponse
	idRaw, err := json.Marshal(respID)
	if err != nil {
		return decorate(r.Raw, CodeUnknownError, err.Error())
	}
	paradigmRaw, _ := json.Marshal(env.Paradigm)
	methodRaw, _ := json.Marshal(env.Method)

	resp := make(map[string]json.RawMessage, len(fields)+3)
	for k, v := range fields {
		resp[k] = v
	}
	resp["id"] = idRaw
	resp["paradigm"] = paradigmRaw
	resp["method"] = methodRaw

	if err := validator.Validate(schema.ResponseSide, env.Paradigm, env.Method, resp); err != nil {
		code := CodeUnknownError
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			code = CodeValidationError
		}
		return decorate(r.Raw, code, err.Error())
	}

	return resp
}

// decorate overlays code/message onto a copy of the original raw fields,
// preserving whatever id/paradigm/method/unknown fields the original
// carried rather than synthesizing them.
func decorate(raw map[string]json.RawMessage, code, message string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(raw)+2)
	for k, v := range raw {
		out[k] = v
	}
	out["code"], _ = json.Marshal(code)
	out["message"], _ = json.Marshal(message)
	return out
}
