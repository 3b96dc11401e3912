package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeError reports a frame that is not a valid JSON-RPC 2.0 message.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode: " + e.Reason
}

func decodeErrorf(format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// Wire shapes. Field order fixes the key order of encoded frames.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id"`
}

type wireNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result"`
}

type wireError struct {
	JSONRPC string `json:"jsonrpc"`
	ID      ID     `json:"id"`
	Error   *Error `json:"error"`
}

// Encode serializes m. It is the inverse of Decode for every message built
// by this package's constructors or returned by Decode.
func Encode(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case *Request:
		if msg.ID.IsNull() {
			return nil, fmt.Errorf("encode request: id must not be null")
		}
		return marshal(wireRequest{JSONRPC: Version, Method: msg.Method, Params: msg.Params, ID: msg.ID})
	case *Notification:
		return marshal(wireNotification{JSONRPC: Version, Method: msg.Method, Params: msg.Params})
	case *Response:
		result := msg.Result
		if result == nil {
			result = json.RawMessage("null")
		}
		return marshal(wireResponse{JSONRPC: Version, ID: msg.ID, Result: result})
	case *ErrorResponse:
		if msg.Error == nil {
			return nil, fmt.Errorf("encode error response: missing error object")
		}
		return marshal(wireError{JSONRPC: Version, ID: msg.ID, Error: msg.Error})
	default:
		return nil, fmt.Errorf("encode: unsupported message type %T", m)
	}
}

// marshal encodes v without HTML escaping so raw members keep the bytes
// they arrived with.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses one frame. Every failure is a *DecodeError. Raw members
// (params, result, error data) are stored compacted.
func Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, decodeErrorf("empty frame")
	}
	if trimmed[0] == '[' {
		return nil, decodeErrorf("batch requests are not supported")
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, decodeErrorf("invalid JSON: %v", err)
	}
	if env == nil {
		return nil, decodeErrorf("message must be a JSON object")
	}

	for key, raw := range env {
		c, err := compact(raw)
		if err != nil {
			return nil, decodeErrorf("invalid member %q: %v", key, err)
		}
		env[key] = c
	}

	var version string
	if raw, ok := env["jsonrpc"]; !ok {
		return nil, decodeErrorf("missing jsonrpc version")
	} else if err := json.Unmarshal(raw, &version); err != nil || version != Version {
		return nil, decodeErrorf("invalid JSON-RPC version")
	}

	rawID, hasID := env["id"]
	rawMethod, hasMethod := env["method"]
	rawResult, hasResult := env["result"]
	rawError, hasError := env["error"]

	if hasMethod {
		if hasResult || hasError {
			return nil, decodeErrorf("message cannot carry both method and result/error")
		}
		var method string
		if err := json.Unmarshal(rawMethod, &method); err != nil {
			return nil, decodeErrorf("method must be a string")
		}
		if method == "" {
			return nil, decodeErrorf("method must not be empty")
		}
		params := env["params"]

		if !hasID {
			return &Notification{Method: method, Params: params}, nil
		}
		id, err := parseID(rawID)
		if err != nil {
			return nil, decodeErrorf("%v", err)
		}
		if id.IsNull() {
			return nil, decodeErrorf("request id must not be null")
		}
		return &Request{ID: id, Method: method, Params: params}, nil
	}

	if !hasID {
		return nil, decodeErrorf("message has neither method nor id")
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, decodeErrorf("%v", err)
	}

	switch {
	case hasResult && hasError:
		return nil, decodeErrorf("response cannot carry both result and error")
	case hasResult:
		if id.IsNull() {
			return nil, decodeErrorf("response id must not be null")
		}
		return &Response{ID: id, Result: rawResult}, nil
	case hasError:
		var e Error
		if err := json.Unmarshal(rawError, &e); err != nil {
			return nil, decodeErrorf("invalid error object: %v", err)
		}
		if e.Data != nil {
			if e.Data, err = compact(e.Data); err != nil {
				return nil, decodeErrorf("invalid error data: %v", err)
			}
		}
		return &ErrorResponse{ID: id, Error: &e}, nil
	default:
		return nil, decodeErrorf("response must carry result or error")
	}
}
