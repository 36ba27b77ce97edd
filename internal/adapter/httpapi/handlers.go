package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/input"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

const (
	maxBodyBytes = 1 << 20
	ndjsonType   = "application/x-ndjson"
)

type handler struct {
	runner     input.StepRunner
	logger     output.LoggerPort
	runTimeout time.Duration
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	*entity.RunResult
	Error string `json:"error,omitempty"`
}

type outcomeRecord struct {
	RunID   string         `json:"run_id"`
	Outcome entity.Outcome `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	query, ok := h.readQuery(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.runContext(r.Context())
	defer cancel()

	result, err := h.runner.Execute(ctx, query)
	if result == nil {
		h.logger.Error("Run failed without a result", "error", err)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	resp := chatResponse{RunResult: result}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	query, ok := h.readQuery(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := h.runContext(r.Context())
	defer cancel()

	enc := newRecordEncoder(w, r.Header.Get("Accept"))
	w.Header().Set("Content-Type", enc.contentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	run := h.runner.Stream(ctx, query)
	log := h.logger.WithFields(map[string]any{
		"run_id":     run.ID(),
		"request_id": middleware.GetReqID(r.Context()),
	})

	for step := range run.Steps() {
		if err := enc.write(step); err != nil {
			log.Info("Client went away", "error", err)
			break
		}
		flusher.Flush()
	}

	closing := outcomeRecord{RunID: run.ID(), Outcome: run.Outcome()}
	if err := run.Err(); err != nil {
		closing.Error = err.Error()
	}
	if err := enc.write(closing); err != nil {
		log.Debug("Closing record not delivered", "error", err)
		return
	}
	flusher.Flush()
}

func (h *handler) readQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return "", false
	}
	return query, true
}

func (h *handler) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.runTimeout > 0 {
		return context.WithTimeout(parent, h.runTimeout)
	}
	return context.WithCancel(parent)
}

// recordEncoder frames one JSON record per write, as SSE events or NDJSON
// lines depending on what the client accepts.
type recordEncoder struct {
	w      io.Writer
	ndjson bool
}

func newRecordEncoder(w io.Writer, accept string) *recordEncoder {
	return &recordEncoder{w: w, ndjson: strings.Contains(accept, ndjsonType)}
}

func (e *recordEncoder) contentType() string {
	if e.ndjson {
		return ndjsonType
	}
	return "text/event-stream"
}

func (e *recordEncoder) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if e.ndjson {
		_, err = fmt.Fprintf(e.w, "%s\n", data)
	} else {
		_, err = fmt.Fprintf(e.w, "data: %s\n\n", data)
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
