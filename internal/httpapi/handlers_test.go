package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonletto/tellersim/internal/auth"
	"github.com/leonletto/tellersim/internal/identity"
	"github.com/leonletto/tellersim/internal/ratelimit"
)

const testKey = "/A?D(G+KbPeSgVkYp3s6v9y$B&E)H@Mc"

var testCreds = auth.Credentials{Username: "IK385001_T2", Password: "IK385001_T2"}

type fakeStats struct{ terminals, observers int }

func (f fakeStats) TerminalCount() int { return f.terminals }
func (f fakeStats) ObserverCount() int { return f.observers }

func newTestHandlers(t *testing.T, opts ...func(*Options)) (*Handlers, http.Handler) {
	t.Helper()
	o := Options{
		Store:         auth.NewStore(testCreds, 0),
		EncryptionKey: testKey,
		Counters:      identity.NewCounters(1001, 2001, 1),
		Stats:         fakeStats{terminals: 2, observers: 1},
		Version:       "test",
		MaxBodyBytes:  1 << 20,
	}
	for _, fn := range opts {
		fn(&o)
	}
	h := NewHandlers(o)
	return h, h.Router()
}

func do(t *testing.T, router http.Handler, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil && header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func loginBody(t *testing.T, creds auth.Credentials) []byte {
	t.Helper()
	body, err := auth.NewLoginBody(creds, testKey, "127.0.0.1")
	require.NoError(t, err)
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/login", loginBody(t, testCreds), http.Header{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Result string    `json:"result"`
		Data   LoginData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Success", resp.Result)
	require.NotEmpty(t, resp.Data.Token)
	require.NotEmpty(t, resp.Data.SessionKey)
	return resp.Data.Token
}

func TestLogin(t *testing.T) {
	_, router := newTestHandlers(t)

	tests := []struct {
		name   string
		body   []byte
		status int
		msg    string
	}{
		{"missing credentials", []byte(`{"ip":"1.2.3.4"}`), http.StatusBadRequest, "Missing credentials"},
		{"wrong password", loginBody(t, auth.Credentials{Username: testCreds.Username, Password: "nope"}), http.StatusUnauthorized, "Invalid credentials"},
		{"garbage cookie", []byte(`{"un_key_cookie":"%%%","ps_key_cookie":"%%%"}`), http.StatusUnauthorized, "Invalid credentials"},
		{"invalid json", []byte(`{`), http.StatusBadRequest, "Invalid request body"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/login", tc.body, http.Header{})
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"result":"Failed","message":"`+tc.msg+`"}`, rec.Body.String())
		})
	}

	assert.Len(t, login(t, router), 64)
}

func TestLoginAcceptsFormBody(t *testing.T) {
	_, router := newTestHandlers(t)

	body, err := auth.NewLoginBody(testCreds, testKey, "")
	require.NoError(t, err)
	form := url.Values{"un_key_cookie": {body.UsernameCookie}, "ps_key_cookie": {body.PasswordCookie}}

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(t, router, http.MethodPost, "/login", []byte(form.Encode()), header)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLoginRateLimited(t *testing.T) {
	_, router := newTestHandlers(t, func(o *Options) {
		o.LoginLimiter = ratelimit.New(ratelimit.Config{PerSecond: 0.001, Burst: 2, Enabled: true})
	})

	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodPost, "/login", []byte(`{}`), http.Header{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := do(t, router, http.MethodPost, "/login", loginBody(t, testCreds), http.Header{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUploadCallImage(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_, router := newTestHandlers(t, func(o *Options) { o.Now = func() time.Time { return now } })

	rec := do(t, router, http.MethodPost, "/teller/uploadCallImage", []byte(`{"image":"abc"}`), http.Header{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := login(t, router)
	header := http.Header{}
	header.Set(auth.TokenHeader, token)

	rec = do(t, router, http.MethodPost, "/teller/uploadCallImage", []byte(`{"description":"sig"}`), header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing image data")

	for want := 1; want <= 2; want++ {
		rec = do(t, router, http.MethodPost, "/teller/uploadCallImage",
			[]byte(`{"image":"data:image/png;base64,AAAA","description":"sig","call_id":2001,"session_id":1001}`), header)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Result string     `json:"result"`
			Data   UploadData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(want), resp.Data.ID)
		assert.Equal(t, resp.Data.ID, resp.Data.Image.ID)
		assert.Equal(t, "2026-01-02T03:04:05Z", resp.Data.Image.CreationDate)
		assert.True(t, strings.HasSuffix(resp.Data.Image.File, ".png"))
	}
}

func TestDownloadResource(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := do(t, router, http.MethodGet, "/content/config.json", nil, http.Header{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	header := http.Header{}
	header.Set(auth.TokenHeader, login(t, router))

	rec = do(t, router, http.MethodGet, "/content/config.json", nil, header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":"Success","data":{"message":"Mock resource data","path":"/content/config.json"}}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/media/logo.png", nil, header)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = do(t, router, http.MethodGet, "/docs/readme", nil, header)
	assert.Equal(t, "Mock resource content for: /docs/readme", rec.Body.String())
}

func TestHealth(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := do(t, router, http.MethodGet, "/health", nil, http.Header{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Terminals)
	assert.Equal(t, 1, resp.Observers)
	assert.Equal(t, "test", resp.Version)
}

func TestAdminConsoleIsPublic(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := do(t, router, http.MethodGet, "/admin/", nil, http.Header{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tellersim control panel")

	rec = do(t, router, http.MethodGet, "/admin/app.js", nil, http.Header{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "send_notification")

	rec = do(t, router, http.MethodGet, "/admin", nil, http.Header{})
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
}
