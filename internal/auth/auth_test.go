package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "/A?D(G+KbPeSgVkYp3s6v9y$B&E)H@Mc"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, text := range []string{"IK385001_T2", "", "a much longer secret than the key itself, wrapping around", "ünïcödé"} {
		enc, err := Encrypt(text, testKey)
		require.NoError(t, err)
		dec, err := Decrypt(enc, testKey)
		require.NoError(t, err)
		assert.Equal(t, text, dec)
	}
}

func TestEncryptKnownValue(t *testing.T) {
	// 'I'^'/' = 'f', 'K'^'A' = '\n'
	enc, err := Encrypt("IK", testKey)
	require.NoError(t, err)
	assert.Equal(t, "Zgo=", enc)
}

func TestDecryptErrors(t *testing.T) {
	_, err := Decrypt("!!!not base64", testKey)
	assert.Error(t, err)

	_, err = Decrypt("abc", "")
	assert.Error(t, err)

	_, err = Encrypt("abc", "")
	assert.Error(t, err)
}

func TestLoginBodyDecode(t *testing.T) {
	creds := Credentials{Username: "IK385001_T2", Password: "IK385001_T2"}
	body, err := NewLoginBody(creds, testKey, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", body.IP)

	got, err := body.Decode(testKey)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestStoreLogin(t *testing.T) {
	s := NewStore(Credentials{Username: "u", Password: "p"}, 0)

	_, err := s.Login(Credentials{Username: "u", Password: "wrong"}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := s.Login(Credentials{Username: "u", Password: "p"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, sess.Token, 64)
	assert.Len(t, sess.SessionKey, 32)
	assert.True(t, s.Valid(sess.Token))
	assert.False(t, s.Valid(""))
	assert.False(t, s.Valid("nope"))

	other, err := s.Login(Credentials{Username: "u", Password: "p"}, "")
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, other.Token)
	assert.Equal(t, 2, s.Count())
}

func TestStoreExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(Credentials{Username: "u", Password: "p"}, time.Minute)
	s.now = func() time.Time { return now }

	sess, err := s.Login(Credentials{Username: "u", Password: "p"}, "")
	require.NoError(t, err)
	assert.True(t, s.Valid(sess.Token))

	now = now.Add(2 * time.Minute)
	assert.False(t, s.Valid(sess.Token))
	assert.Equal(t, 0, s.Count())
}

func TestAuthorize(t *testing.T) {
	s := NewStore(Credentials{Username: "u", Password: "p"}, 0)
	sess, err := s.Login(Credentials{Username: "u", Password: "p"}, "")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/ws/tellerapp/client", nil)
	assert.False(t, s.Authorize(r))

	r.Header.Set(TokenHeader, sess.Token)
	assert.True(t, s.Authorize(r))

	r = httptest.NewRequest("GET", "/ws/tellerapp/client?token="+sess.Token, nil)
	assert.True(t, s.Authorize(r))
}
