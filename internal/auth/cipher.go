// Package auth implements the terminal login: the shared-secret credential
// encoding and the in-memory store of live logins.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Credentials are the decoded login fields.
type Credentials struct {
	Username string
	Password string
}

// LoginBody is what a terminal posts to /login.
type LoginBody struct {
	UsernameCookie string `json:"un_key_cookie"`
	PasswordCookie string `json:"ps_key_cookie"`
	IP             string `json:"ip,omitempty"`
}

// xor combines text with key character by character, repeating key.
func xor(text, key string) string {
	k := []rune(key)
	out := []rune(text)
	for i, r := range out {
		out[i] = r ^ k[i%len(k)]
	}
	return string(out)
}

// Encrypt encodes text the way terminals encode their login cookies.
func Encrypt(text, key string) (string, error) {
	if key == "" {
		return "", errors.New("encryption key is empty")
	}
	return base64.StdEncoding.EncodeToString([]byte(xor(text, key))), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encoded, key string) (string, error) {
	if key == "" {
		return "", errors.New("encryption key is empty")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", errors.New("decoded cookie is not valid UTF-8")
	}
	return xor(string(raw), key), nil
}

// NewLoginBody builds the encrypted body for creds.
func NewLoginBody(creds Credentials, key, ip string) (LoginBody, error) {
	un, err := Encrypt(creds.Username, key)
	if err != nil {
		return LoginBody{}, err
	}
	ps, err := Encrypt(creds.Password, key)
	if err != nil {
		return LoginBody{}, err
	}
	return LoginBody{UsernameCookie: un, PasswordCookie: ps, IP: ip}, nil
}

// Decode returns the credentials carried by b.
func (b LoginBody) Decode(key string) (Credentials, error) {
	un, err := Decrypt(b.UsernameCookie, key)
	if err != nil {
		return Credentials{}, fmt.Errorf("username: %w", err)
	}
	ps, err := Decrypt(b.PasswordCookie, key)
	if err != nil {
		return Credentials{}, fmt.Errorf("password: %w", err)
	}
	return Credentials{Username: un, Password: ps}, nil
}
