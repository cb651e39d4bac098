package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Skryldev/identity-registry/assets"
	"github.com/Skryldev/identity-registry/models"
	"github.com/Skryldev/identity-registry/registry"
)

const (
	bodyCreated  = "New user registered"
	bodyExisting = "All good"
	bodyNotFound = "File not found"
)

// GET /*

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.assets.Read(r.URL.Path)
	if errors.Is(err, assets.ErrNotFound) {
		writeText(w, http.StatusNotFound, bodyNotFound)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "http: asset read failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeStatus(w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", asset.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Content)
}

// POST /authorise
//
// The body is read as application/x-www-form-urlencoded whatever the
// Content-Type header says.
func (s *Server) handleAuthorise(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	faceID := firstNonEmpty(parseForm(string(body))["face_id"])
	if faceID == "" {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	s.register(w, r, models.KindFace, faceID)
}

// POST /fingerprint
//
// The body is a JSON object whose "id" member is a non-empty string.
func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	raw, ok := payload["id"]
	if !ok {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	s.register(w, r, models.KindFingerprint, id)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, kind models.TokenKind, value string) {
	outcome, err := s.registrar.RegisterOrConfirm(r.Context(), kind, value)
	switch {
	case err == nil:
	case errors.Is(err, registry.ErrInvalidToken), errors.Is(err, registry.ErrUnknownKind):
		writeStatus(w, http.StatusBadRequest)
		return
	default:
		s.logger.ErrorContext(r.Context(), "http: registration failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("kind", kind.String()),
			slog.Any("error", err),
		)
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	if outcome == registry.OutcomeCreated {
		writeText(w, http.StatusCreated, bodyCreated)
		return
	}
	writeText(w, http.StatusOK, bodyExisting)
}

// readBody reads at most maxBody bytes. On failure the response is already
// written and ok is false.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeStatus(w, http.StatusRequestEntityTooLarge)
			return nil, false
		}
		writeStatus(w, http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// parseForm splits an urlencoded body on '&'. Unlike url.ParseQuery it keeps
// pairs whose escapes are malformed, using the raw text, and keeps ';' inside
// values. Pairs without '=' are skipped.
func parseForm(body string) map[string][]string {
	values := make(map[string][]string)
	for _, pair := range strings.Split(body, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = unescapeForm(key), unescapeForm(value)
		values[key] = append(values[key], value)
	}
	return values
}

func unescapeForm(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return strings.ReplaceAll(s, "+", " ")
}

func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// GET /health

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "http: health check failed", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
