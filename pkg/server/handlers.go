package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/store"
)

// writeResult is the body of successful write responses.
type writeResult struct {
	OK           bool     `json:"ok"`
	Result       any      `json:"result,omitempty"`
	NotifyErrors []string `json:"notify_errors,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, ok := s.store.State().Peek(key)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %q", reactive.ErrUnknownKey, key))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := s.decodeBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, r, nil, s.store.State().Set(r.Context(), key, value))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	payload, err := s.decodeBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.store.Commit(r.Context(), chi.URLParam(r, "mutation"), payload)
	s.writeOutcome(w, r, nil, err)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	payload, err := s.decodeBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.store.Dispatch(r.Context(), chi.URLParam(r, "action"), payload)
	s.writeOutcome(w, r, result, err)
}

func (s *Server) handleGetter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.store.Getter(reactive.Untracked(r.Context()), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "value": v})
}

// errBadBody marks request bodies that are not valid JSON.
var errBadBody = errors.New("server: invalid JSON body")

// decodeBody decodes an optional JSON body. An empty body decodes to nil.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (any, error) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadBody, err)
	}
	return v, nil
}

// writeOutcome answers a write. Failures that happened only while notifying
// subscribers do not undo the write, so they are reported with 200.
func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, result any, err error) {
	if err != nil && !notifyOnly(err) {
		s.writeError(w, r, err)
		return
	}

	out := writeResult{OK: true, Result: result}
	for _, se := range reactive.SubscriberErrors(err) {
		out.NotifyErrors = append(out.NotifyErrors, se.Error())
	}
	if len(out.NotifyErrors) > 0 {
		s.logger.WarnContext(r.Context(), "subscribers failed", "path", r.URL.Path, "count", len(out.NotifyErrors))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, reactive.ErrUnknownKey),
		errors.Is(err, store.ErrUnknownMutation),
		errors.Is(err, store.ErrUnknownAction),
		errors.Is(err, store.ErrUnknownGetter):
		return http.StatusNotFound
	case errors.Is(err, reactive.ErrTypeMismatch),
		errors.Is(err, store.ErrInvalidPayload),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// notifyOnly reports whether every leaf of err is a *reactive.SubscriberError.
func notifyOnly(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*reactive.SubscriberError); ok {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if !notifyOnly(inner) {
				return false
			}
		}
		return true
	}
	if inner := errors.Unwrap(err); inner != nil {
		return notifyOnly(inner)
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
