// Package jsonrpc implements the JSON-RPC 2.0 envelope spoken on the terminal
// channel: the four message shapes, their constructors and the wire codec.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the only protocol version accepted on the wire.
const Version = "2.0"

// Reserved JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Kind identifies which of the message shapes a Message is.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
	KindError
)

// String returns the string representation of a message kind.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one of *Request, *Notification, *Response or *ErrorResponse.
type Message interface {
	Kind() Kind
	isMessage()
}

// ID is an opaque correlation id: a JSON string, a JSON number, or null.
// The exact bytes received are kept so the id is echoed back unchanged.
type ID struct {
	raw json.RawMessage
}

// NullID returns the null id used when a request id could not be recovered.
func NullID() ID { return ID{} }

// StringID returns a string-valued id.
func StringID(s string) ID {
	raw, _ := json.Marshal(s)
	return ID{raw: raw}
}

// NumberID returns an integer-valued id.
func NumberID(n int64) ID {
	return ID{raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// IsNull reports whether the id is null.
func (id ID) IsNull() bool { return len(id.raw) == 0 }

// String returns the id as it appears on the wire.
func (id ID) String() string {
	if id.IsNull() {
		return "null"
	}
	return string(id.raw)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNull() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. Only strings, numbers and null
// are valid ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	parsed, err := parseID(data)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseID(data []byte) (ID, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ID{}, nil
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ID{}, fmt.Errorf("invalid string id: %w", err)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ID{}, fmt.Errorf("invalid number id: %w", err)
		}
	default:
		return ID{}, fmt.Errorf("id must be a string, number or null")
	}
	return ID{raw: append(json.RawMessage(nil), data...)}, nil
}

// Request is a correlated call expecting exactly one reply. ID is never null.
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

// Notification is an uncorrelated, fire-and-forget message.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Response is a successful reply. Result is always present.
type Response struct {
	ID     ID
	Result json.RawMessage
}

// ErrorResponse is a failed reply. ID is null when the request id was unknown.
type ErrorResponse struct {
	ID    ID
	Error *Error
}

func (*Request) Kind() Kind       { return KindRequest }
func (*Notification) Kind() Kind  { return KindNotification }
func (*Response) Kind() Kind      { return KindResponse }
func (*ErrorResponse) Kind() Kind { return KindError }

func (*Request) isMessage()       {}
func (*Notification) isMessage()  {}
func (*Response) isMessage()      {}
func (*ErrorResponse) isMessage() {}

// Error is the JSON-RPC error object. Handlers may return an *Error to reply
// with a specific code.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("jsonrpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request, marshaling params when non-nil.
func NewRequest(id ID, method string, params any) (*Request, error) {
	if id.IsNull() {
		return nil, fmt.Errorf("request id must not be null")
	}
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return &Request{ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification, marshaling params when non-nil.
func NewNotification(method string, params any) (*Notification, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return &Notification{Method: method, Params: raw}, nil
}

// NewResponse builds a success response for id.
func NewResponse(id ID, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{ID: id, Result: raw}, nil
}

// NewError builds an error response. Data is optional; when it cannot be
// marshaled its error text is attached instead.
func NewError(id ID, code int, message string, data any) *ErrorResponse {
	return &ErrorResponse{ID: id, Error: NewErrorObject(code, message, data)}
}

// NewErrorObject builds an error object without wrapping it in a response.
func NewErrorObject(code int, message string, data any) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			raw, _ = json.Marshal(err.Error())
		}
		e.Data = raw
	}
	return e
}

// InvalidParams returns an *Error with the invalid-params code.
func InvalidParams(detail string) *Error {
	return NewErrorObject(CodeInvalidParams, "Invalid params", detail)
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return compact(raw)
	}
	return json.Marshal(v)
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	if raw == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
