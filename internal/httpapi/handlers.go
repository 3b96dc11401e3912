// Package httpapi serves the plain HTTP collaborators that share the
// simulator's listener: login, image upload, resource download, health and
// the admin console.
package httpapi

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leonletto/tellersim/internal/auth"
	"github.com/leonletto/tellersim/internal/identity"
	"github.com/leonletto/tellersim/internal/ratelimit"
)

// transparentPNG is a 1x1 transparent image.
const transparentPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

// Stats reports live connection counts for /health.
type Stats interface {
	TerminalCount() int
	ObserverCount() int
}

// Options configures the HTTP handlers. Store and Counters are required.
type Options struct {
	Store         *auth.Store
	EncryptionKey string
	Counters      *identity.Counters
	LoginLimiter  *ratelimit.Limiter
	Stats         Stats
	Version       string
	MaxBodyBytes  int64
	Logger        *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handlers serves the collaborator endpoints.
type Handlers struct {
	opts    Options
	started time.Time
	logger  *slog.Logger
}

// NewHandlers creates the handlers.
func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 50 << 20
	}
	return &Handlers{
		opts:    opts,
		started: opts.Now(),
		logger:  opts.Logger.With("component", "http"),
	}
}

// LoginData is returned on a successful login.
type LoginData struct {
	Token      string `json:"token"`
	SessionKey string `json:"session_key"`
}

// Login handles POST /login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if err := h.opts.LoginLimiter.Allow(ip); err != nil {
		h.logger.Warn("login rate limited", "ip", ip)
		writeFailure(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	var body auth.LoginBody
	ok := readBody(w, r, h.opts.MaxBodyBytes, &body, func(get func(string) string) {
		body.UsernameCookie = get("un_key_cookie")
		body.PasswordCookie = get("ps_key_cookie")
		body.IP = get("ip")
	})
	if !ok {
		return
	}

	if body.UsernameCookie == "" || body.PasswordCookie == "" {
		h.logger.Warn("login missing credentials", "ip", ip)
		writeFailure(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	creds, err := body.Decode(h.opts.EncryptionKey)
	if err != nil {
		h.logger.Warn("login cookies undecodable", "ip", ip, "error", err)
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	sess, err := h.opts.Store.Login(creds, body.IP)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logger.Warn("invalid credentials", "ip", ip, "username", creds.Username)
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("login succeeded", "ip", ip, "username", creds.Username, "login", sess.ID)
	writeSuccess(w, LoginData{Token: sess.Token, SessionKey: sess.SessionKey})
}

// UploadRequest is the body of POST /teller/uploadCallImage.
type UploadRequest struct {
	Image       string `json:"image"`
	Description string `json:"description"`
	CallID      any    `json:"call_id,omitempty"`
	SessionID   any    `json:"session_id,omitempty"`
}

// UploadData describes the stored image.
type UploadData struct {
	ID    int64       `json:"id"`
	Image StoredImage `json:"image"`
}

// StoredImage is the image record.
type StoredImage struct {
	ID           int64  `json:"id"`
	CreationDate string `json:"creation_date"`
	File         string `json:"file"`
}

// UploadCallImage handles POST /teller/uploadCallImage.
func (h *Handlers) UploadCallImage(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	ok := readBody(w, r, h.opts.MaxBodyBytes, &req, func(get func(string) string) {
		req.Image = get("image")
		req.Description = get("description")
		if v := get("call_id"); v != "" {
			req.CallID = v
		}
		if v := get("session_id"); v != "" {
			req.SessionID = v
		}
	})
	if !ok {
		return
	}

	if req.Image == "" {
		writeFailure(w, http.StatusBadRequest, "Missing image data")
		return
	}

	id := h.opts.Counters.Image.Next()
	h.logger.Info("call image uploaded", "image_id", id, "description", req.Description,
		"call_id", req.CallID, "session_id", req.SessionID, "bytes", len(req.Image))

	writeSuccess(w, UploadData{
		ID: id,
		Image: StoredImage{
			ID:           id,
			CreationDate: h.opts.Now().UTC().Format(time.RFC3339Nano),
			File:         "/media/call_images/" + itoa(id) + ".png",
		},
	})
}

// ResourceData is the mock body of a JSON resource.
type ResourceData struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// DownloadResource handles GET on any other path.
func (h *Handlers) DownloadResource(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	h.logger.Debug("resource requested", "path", path)

	switch {
	case strings.Contains(path, ".json"):
		writeSuccess(w, ResourceData{Message: "Mock resource data", Path: path})
	case strings.Contains(path, ".png"), strings.Contains(path, ".jpg"):
		img, _ := base64.StdEncoding.DecodeString(transparentPNG)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Mock resource content for: " + path))
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    int64  `json:"uptime_ms"`
	Terminals int    `json:"terminals"`
	Observers int    `json:"observers"`
	Logins    int    `json:"logins"`
	Version   string `json:"version"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Uptime:  h.opts.Now().Sub(h.started).Milliseconds(),
		Logins:  h.opts.Store.Count(),
		Version: h.opts.Version,
	}
	if h.opts.Stats != nil {
		resp.Terminals = h.opts.Stats.TerminalCount()
		resp.Observers = h.opts.Stats.ObserverCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
