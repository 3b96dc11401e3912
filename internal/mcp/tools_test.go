package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	method    string
	params    json.RawMessage
	delivered int
	sendErr   error
	count     int
	recent    []MessageInfo
	gotLimit  int
	gotDir    string
}

func (b *fakeBridge) SendNotification(_ context.Context, method string, params json.RawMessage) (int, error) {
	b.method, b.params = method, params
	return b.delivered, b.sendErr
}

func (b *fakeBridge) ClientCount() int { return b.count }

func (b *fakeBridge) Recent(limit int, direction string) []MessageInfo {
	b.gotLimit, b.gotDir = limit, direction
	return b.recent
}

func (b *fakeBridge) WaitForMessage(context.Context, int) (*WaitForMessageOutput, error) {
	return &WaitForMessageOutput{Status: "timeout", WaitedSeconds: 1}, nil
}

func TestHandleSendNotification(t *testing.T) {
	b := &fakeBridge{delivered: 2}
	s := NewServer(b)

	_, out, err := s.handleSendNotification(context.Background(), nil, SendNotificationInput{
		Method: "SignatureController.signature_captured",
		Params: map[string]any{"success": true},
	})
	require.NoError(t, err)
	assert.Equal(t, SendNotificationOutput{Method: "SignatureController.signature_captured", Delivered: 2}, out)
	assert.JSONEq(t, `{"success":true}`, string(b.params))

	_, _, err = s.handleSendNotification(context.Background(), nil, SendNotificationInput{})
	assert.Error(t, err)

	b.sendErr = errors.New("rate limit exceeded")
	_, _, err = s.handleSendNotification(context.Background(), nil, SendNotificationInput{Method: "a.b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Nil(t, b.params)
}

func TestHandleRecentMessages(t *testing.T) {
	b := &fakeBridge{}
	s := NewServer(b)

	_, out, err := s.handleRecentMessages(context.Background(), nil, RecentMessagesInput{})
	require.NoError(t, err)
	assert.Equal(t, defaultRecentLimit, b.gotLimit)
	assert.NotNil(t, out.Messages)
	assert.Zero(t, out.Count)

	b.recent = []MessageInfo{{Direction: "incoming"}}
	_, out, err = s.handleRecentMessages(context.Background(), nil, RecentMessagesInput{Limit: 5, Direction: "incoming"})
	require.NoError(t, err)
	assert.Equal(t, 5, b.gotLimit)
	assert.Equal(t, "incoming", b.gotDir)
	assert.Equal(t, 1, out.Count)

	_, _, err = s.handleRecentMessages(context.Background(), nil, RecentMessagesInput{Direction: "sideways"})
	assert.Error(t, err)
}

func TestToolsOverSession(t *testing.T) {
	ctx := context.Background()
	s := NewServer(&fakeBridge{count: 4}, WithVersion("1.2.3"))
	assert.Equal(t, "1.2.3", s.version)

	clientTransport, serverTransport := gomcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer func() { _ = ss.Close() }()

	client := gomcp.NewClient(&gomcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = cs.Close() }()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"send_notification", "client_count", "recent_messages", "wait_for_message"}, names)

	res, err := cs.CallTool(ctx, &gomcp.CallToolParams{Name: "client_count", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":4}`, string(raw))
}
