package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
	"github.com/straja-ai/placeholder/internal/redact"
)

const (
	msgNoJSON       = "No JSON data provided"
	msgNotList      = "text_json must be a list"
	msgNoMatch      = "No strong placeholder match found"
	msgNoMatchLong  = "No standalone company name placeholders detected above threshold"
	statusNoMatch   = 201
	msgBodyTooLarge = "Request body too large"
	msgIDInUse      = "Request ID already in use"
)

var (
	errNoJSON  = errors.New(msgNoJSON)
	errNotList = errors.New(msgNotList)
)

type detectRequest struct {
	candidates []placeholder.Candidate
	opts       placeholder.Options
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	requestID := requestIDFrom(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.svc.RejectInvalid(ctx, requestID, events.SourceHTTP, msgBodyTooLarge)
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		s.svc.RejectInvalid(ctx, requestID, events.SourceHTTP, msgNoJSON)
		writeError(w, http.StatusBadRequest, msgNoJSON)
		return
	}

	req, err := parseDetectRequest(body, s.svc.Defaults())
	if err != nil {
		s.svc.RejectInvalid(ctx, requestID, events.SourceHTTP, err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.candidates) > s.cfg.MaxCandidates {
		msg := fmt.Sprintf("text_json has %d items; the limit is %d", len(req.candidates), s.cfg.MaxCandidates)
		s.svc.RejectInvalid(ctx, requestID, events.SourceHTTP, msg)
		writeError(w, http.StatusRequestEntityTooLarge, msg)
		return
	}

	if !s.store.reserve(requestID, clientFrom(ctx).ID) {
		s.svc.RejectInvalid(ctx, requestID, events.SourceHTTP, msgIDInUse)
		writeError(w, http.StatusConflict, msgIDInUse)
		return
	}

	v, err := s.svc.Detect(ctx, detection.Request{
		RequestID:  requestID,
		Source:     events.SourceHTTP,
		Candidates: req.candidates,
		Options:    &req.opts,
	})
	if err != nil {
		s.store.release(requestID)
		writeError(w, http.StatusInternalServerError, "Internal server error: "+redact.String(err.Error()))
		return
	}
	s.store.complete(requestID, v)

	if v == nil {
		writeJSON(w, http.StatusOK, envelope{
			StatusCode: statusNoMatch,
			Error:      msgNoMatch,
			Message:    msgNoMatchLong,
		})
		return
	}
	writeData(w, v)
}

// parseDetectRequest decodes the body field by field so each malformed part
// gets its own message. Missing fields take their defaults: text_json is
// empty, an item's text is "" and its index is its position.
func parseDetectRequest(body []byte, defaults placeholder.Options) (detectRequest, error) {
	req := detectRequest{opts: defaults}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || len(top) == 0 {
		return req, errNoJSON
	}

	if raw, ok := top["text_json"]; ok {
		if isNull(raw) {
			return req, errNotList
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return req, errNotList
		}
		req.candidates = make([]placeholder.Candidate, 0, len(items))
		for i, item := range items {
			c, err := parseCandidate(i, item)
			if err != nil {
				return req, err
			}
			req.candidates = append(req.candidates, c)
		}
	}

	for name, dst := range map[string]*float64{
		"threshold":       &req.opts.Threshold,
		"semantic_weight": &req.opts.Weights.Semantic,
		"fuzzy_weight":    &req.opts.Weights.Fuzzy,
		"format_weight":   &req.opts.Weights.Format,
	} {
		raw, ok := top[name]
		if !ok || isNull(raw) {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return req, fmt.Errorf("%s must be a number", name)
		}
	}
	return req, nil
}

func parseCandidate(pos int, raw json.RawMessage) (placeholder.Candidate, error) {
	c := placeholder.Candidate{Index: pos}
	var fields map[string]json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &fields) != nil {
		return c, fmt.Errorf("text_json[%d] must be an object", pos)
	}
	if t, ok := fields["text"]; ok && !isNull(t) {
		if err := json.Unmarshal(t, &c.Text); err != nil {
			return c, fmt.Errorf("text_json[%d].text must be a string", pos)
		}
	}
	if idx, ok := fields["index"]; ok && !isNull(idx) {
		var f float64
		if err := json.Unmarshal(idx, &f); err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return c, fmt.Errorf("text_json[%d].index must be an integer", pos)
		}
		c.Index = int(f)
	}
	return c, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

type detectionStatus struct {
	RequestID string               `json:"request_id"`
	Outcome   events.Outcome       `json:"outcome"`
	Verdict   *placeholder.Verdict `json:"verdict"`
	CreatedAt string               `json:"created_at"`
}

func (s *Server) handleDetectionStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	id := r.PathValue("id")
	entry, ok := s.store.get(id)
	if !ok || entry.clientID != clientFrom(r.Context()).ID {
		writeError(w, http.StatusNotFound, "Detection not found")
		return
	}
	writeData(w, detectionStatus{
		RequestID: id,
		Outcome:   entry.outcome,
		Verdict:   entry.verdict,
		CreatedAt: entry.createdAt.Format(isoFormat),
	})
}
