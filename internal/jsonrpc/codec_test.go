package jsonrpc_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonletto/tellersim/internal/jsonrpc"
)

func mustRequest(t *testing.T, id jsonrpc.ID, method string, params any) *jsonrpc.Request {
	t.Helper()
	req, err := jsonrpc.NewRequest(id, method, params)
	require.NoError(t, err)
	return req
}

func mustNotification(t *testing.T, method string, params any) *jsonrpc.Notification {
	t.Helper()
	n, err := jsonrpc.NewNotification(method, params)
	require.NoError(t, err)
	return n
}

func mustResponse(t *testing.T, id jsonrpc.ID, result any) *jsonrpc.Response {
	t.Helper()
	r, err := jsonrpc.NewResponse(id, result)
	require.NoError(t, err)
	return r
}

func TestRoundTrip(t *testing.T) {
	messages := map[string]jsonrpc.Message{
		"request string id":      mustRequest(t, jsonrpc.StringID("1"), "AvailabilityController.ping", map[string]any{}),
		"request number id":      mustRequest(t, jsonrpc.NumberID(42), "SessionController.create_session", map[string]any{"selfservice": false}),
		"request without params": mustRequest(t, jsonrpc.StringID("x"), "CardReaderController.read_card", nil),
		"notification":           mustNotification(t, "SessionController.call_established", map[string]any{"call": map[string]int{"id": 2001, "teller": 100}}),
		"notification no params": mustNotification(t, "connection_established", nil),
		"response":               mustResponse(t, jsonrpc.StringID("1"), map[string]bool{"success": true}),
		"response null result":   mustResponse(t, jsonrpc.NumberID(7), nil),
		"error with data":        jsonrpc.NewError(jsonrpc.StringID("9"), jsonrpc.CodeMethodNotFound, "Method not found", "Nope.nope"),
		"error null id":          jsonrpc.NewError(jsonrpc.NullID(), jsonrpc.CodeParseError, "Parse error", "Invalid JSON"),
		"error without data":     jsonrpc.NewError(jsonrpc.NumberID(-3), jsonrpc.CodeInternalError, "Internal error", nil),
	}

	for name, m := range messages {
		t.Run(name, func(t *testing.T) {
			data, err := jsonrpc.Encode(m)
			require.NoError(t, err)

			decoded, err := jsonrpc.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, m, decoded)

			again, err := jsonrpc.Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))
		})
	}
}

func TestRoundTripOfDecodedFrames(t *testing.T) {
	frames := []string{
		`{"jsonrpc":"2.0","method":"ChatController.send_message","params":{ "message" : "hi" },"id":"m-1"}`,
		`{"id": 12, "jsonrpc":"2.0", "result": [1, 2, 3]}`,
		`{"jsonrpc":"2.0","method":"x.y","params":null}`,
		`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error","data":null}}`,
		`{"jsonrpc":"2.0","method":"ChatController.send_message","params":{"message":"a<b & c>d"},"id":"<1>"}`,
		`{"jsonrpc":"2.0","method":"x.y","params":{"q":"&"}}`,
		`{"jsonrpc":"2.0","id":"a&b","result":"<ok>"}`,
		`{"jsonrpc":"2.0","id":"<e>","error":{"code":-32603,"message":"Internal error","data":"x > y"}}`,
	}
	for _, frame := range frames {
		m, err := jsonrpc.Decode([]byte(frame))
		require.NoError(t, err, frame)

		data, err := jsonrpc.Encode(m)
		require.NoError(t, err)

		again, err := jsonrpc.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, m, again, frame)
	}
}

func TestEncodeKeyOrder(t *testing.T) {
	resp := mustResponse(t, jsonrpc.StringID("1"), map[string]bool{"success": true})
	data, err := jsonrpc.Encode(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":"1","result":{"success":true}}`, string(data))

	errResp := jsonrpc.NewError(jsonrpc.NullID(), jsonrpc.CodeParseError, "Parse error", "Invalid JSON")
	data, err = jsonrpc.Encode(errResp)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error","data":"Invalid JSON"}}`, string(data))

	n := mustNotification(t, "connection_established", map[string]bool{"success": true})
	data, err = jsonrpc.Encode(n)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"connection_established","params":{"success":true}}`, string(data))
}

func TestDecodeClassification(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		kind  jsonrpc.Kind
	}{
		{"request", `{"jsonrpc":"2.0","method":"a.b","params":{},"id":"1"}`, jsonrpc.KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"a.b","params":{}}`, jsonrpc.KindNotification},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, jsonrpc.KindResponse},
		{"error", `{"jsonrpc":"2.0","id":1,"error":{"code":1,"message":"m"}}`, jsonrpc.KindError},
		{"error null id", `{"jsonrpc":"2.0","id":null,"error":{"code":1,"message":"m"}}`, jsonrpc.KindError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := jsonrpc.Decode([]byte(tc.frame))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, m.Kind())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	frames := map[string]string{
		"empty":               ``,
		"not json":            `hello`,
		"truncated":           `{"jsonrpc":"2.0",`,
		"null":                `null`,
		"batch":               `[{"jsonrpc":"2.0","method":"a","id":1}]`,
		"scalar":              `42`,
		"missing version":     `{"method":"a.b","id":1}`,
		"wrong version":       `{"jsonrpc":"1.0","method":"a.b","id":1}`,
		"numeric version":     `{"jsonrpc":2.0,"method":"a.b","id":1}`,
		"method not string":   `{"jsonrpc":"2.0","method":5,"id":1}`,
		"empty method":        `{"jsonrpc":"2.0","method":"","id":1}`,
		"null request id":     `{"jsonrpc":"2.0","method":"a.b","id":null}`,
		"object id":           `{"jsonrpc":"2.0","method":"a.b","id":{"x":1}}`,
		"method and result":   `{"jsonrpc":"2.0","method":"a.b","id":1,"result":{}}`,
		"result and error":    `{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"m"}}`,
		"neither":             `{"jsonrpc":"2.0"}`,
		"id only":             `{"jsonrpc":"2.0","id":1}`,
		"null response id":    `{"jsonrpc":"2.0","id":null,"result":{}}`,
		"malformed error obj": `{"jsonrpc":"2.0","id":1,"error":"boom"}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			m, err := jsonrpc.Decode([]byte(frame))
			require.Error(t, err)
			assert.Nil(t, m)

			var decErr *jsonrpc.DecodeError
			require.True(t, errors.As(err, &decErr), "expected *DecodeError, got %T", err)
			assert.NotEmpty(t, decErr.Reason)
		})
	}
}

func TestEncodeKeepsHTMLCharacters(t *testing.T) {
	frame := `{"jsonrpc":"2.0","method":"ChatController.send_message","params":{"message":"a<b & c>d"},"id":"<1>"}`
	m, err := jsonrpc.Decode([]byte(frame))
	require.NoError(t, err)

	data, err := jsonrpc.Encode(m)
	require.NoError(t, err)
	assert.Equal(t, frame, string(data))

	req := m.(*jsonrpc.Request)
	resp := mustResponse(t, req.ID, true)
	data, err = jsonrpc.Encode(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":"<1>","result":true}`, string(data))
}

func TestIDPreservedVerbatim(t *testing.T) {
	m, err := jsonrpc.Decode([]byte(`{"jsonrpc":"2.0","method":"a.b","id":1.50}`))
	require.NoError(t, err)
	req := m.(*jsonrpc.Request)
	assert.Equal(t, "1.50", req.ID.String())

	resp := mustResponse(t, req.ID, true)
	data, err := jsonrpc.Encode(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1.50,"result":true}`, string(data))
	assert.Contains(t, string(data), `"id":1.50`)
}

func TestErrorImplementsError(t *testing.T) {
	var err error = jsonrpc.InvalidParams("params must be an object")
	var rpcErr *jsonrpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)

	var detail string
	require.NoError(t, json.Unmarshal(rpcErr.Data, &detail))
	assert.Equal(t, "params must be an object", detail)
}

func TestNewRequestRejectsNullID(t *testing.T) {
	_, err := jsonrpc.NewRequest(jsonrpc.NullID(), "a.b", nil)
	assert.Error(t, err)

	_, err = jsonrpc.Encode(&jsonrpc.Request{Method: "a.b"})
	assert.Error(t, err)
}
