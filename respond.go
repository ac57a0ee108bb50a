package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/panshare/quarkshare/internal/quark"
	"github.com/panshare/quarkshare/internal/session"
)

// envelope is the uniform response shape: a domain code plus message
// wrap every payload, success or failure. Domain failures ride on
// HTTP 200 with a non-200 envelope code; only transport-level auth
// failures use the HTTP status.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (s *server) writeJSON(w http.ResponseWriter, httpStatus int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("encoding response", slog.String("error", err.Error()))
	}
}

// respondOK writes a code-200 envelope.
func (s *server) respondOK(w http.ResponseWriter, message string, data any) {
	s.writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Message: message, Data: data})
}

// respondErr writes a failure envelope, classifying the error into a
// domain code. The HTTP status stays 200; callers inspect the
// envelope, matching the service this replaces.
func (s *server) respondErr(w http.ResponseWriter, context string, err error) {
	code := http.StatusBadRequest
	if errors.Is(err, quark.ErrAuth) {
		code = http.StatusUnauthorized
	}

	s.writeJSON(w, http.StatusOK, envelope{
		Code:    code,
		Message: context + ": " + err.Error(),
		Data:    nil,
	})
}

// respondUnauthorized rejects a request at the transport level, for
// missing or dead tokens.
func (s *server) respondUnauthorized(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusUnauthorized, envelope{Code: http.StatusUnauthorized, Message: message})
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	return parts[1], true
}

// authenticate resolves the request's bearer token to a live session.
// The false return means the rejection has already been written.
func (s *server) authenticate(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.respondUnauthorized(w, "missing or malformed Authorization header, expected: Bearer <token>")
		return nil, false
	}

	sess, ok := s.store.Get(token)
	if !ok {
		s.respondUnauthorized(w, "token invalid or expired")
		return nil, false
	}

	return sess, true
}

// decodeBody decodes a JSON request body into dst, rejecting unknown
// fields so typos surface instead of silently defaulting.
func (s *server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusOK, envelope{
			Code:    http.StatusBadRequest,
			Message: "invalid request body: " + err.Error(),
		})

		return false
	}

	return true
}
