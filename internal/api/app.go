package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kalambet/electroschematic/internal/appstate"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/pipeline"
	"github.com/kalambet/electroschematic/internal/schematic"
)

// maxUploadBody leaves room for multipart framing around the largest image.
const maxUploadBody = imagecodec.MaxImageSize + 1<<20

// Pipeline is the orchestrator surface the HTTP layer drives.
type Pipeline interface {
	Submit(ctx context.Context, up pipeline.Upload) (<-chan pipeline.Result, error)
	Reset()
	SelectHistory(id string) error
	ToggleHistory() error
	ClearHistory(ctx context.Context) error
	State() appstate.AppState
	Subscribe() (<-chan appstate.AppState, func())
}

type AppDeps struct {
	Pipeline       Pipeline
	Metrics        http.Handler // optional; if nil, /metrics is not mounted
	AllowedOrigins []string
}

// HistorySummary is the list form of a stored run, without image payloads.
type HistorySummary struct {
	ID         string   `json:"id"`
	Timestamp  int64    `json:"timestamp"`
	DeviceName string   `json:"deviceName"`
	Summary    string   `json:"summary"`
	Components []string `json:"components"`
}

func summarize(item schematic.HistoryItem) HistorySummary {
	return HistorySummary{
		ID:         item.ID,
		Timestamp:  item.Timestamp,
		DeviceName: item.Analysis.DeviceName,
		Summary:    item.Analysis.Summary,
		Components: item.Analysis.ComponentNames(),
	}
}

// HistoryDetail is a full stored run plus its share text.
type HistoryDetail struct {
	schematic.HistoryItem
	ShareText string `json:"shareText"`
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Get("/state", handleGetState(deps))
	r.Get("/events", handleEvents(deps))
	r.Post("/runs", handleStartRun(deps))
	r.Post("/reset", handleReset(deps))

	r.Get("/history", handleListHistory(deps))
	r.Delete("/history", handleClearHistory(deps))
	r.Post("/history/toggle", handleToggleHistory(deps))
	r.Get("/history/{id}", handleGetHistoryItem(deps))
	r.Post("/history/{id}/select", handleSelectHistory(deps))

	r.Get("/images/current/{kind}", handleCurrentImage(deps))
	r.Get("/images/{id}/{kind}", handleHistoryImage(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetState(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newStateView(deps.Pipeline.State()))
	}
}

func handleStartRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "multipart field \"file\" is required: %v", err)
			return
		}
		defer file.Close()

		// The run reads the upload after this handler returns, so buffer it.
		data, err := io.ReadAll(file)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "upload exceeds %d bytes", maxErr.Limit)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}

		up := pipeline.ReaderUpload(header.Filename, header.Header.Get("Content-Type"), bytes.NewReader(data))
		if _, err := deps.Pipeline.Submit(r.Context(), up); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				httpError(w, http.StatusConflict, "conflict", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "starting run: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, newStateView(deps.Pipeline.State()))
	}
}

func handleReset(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Pipeline.Reset()
		writeJSON(w, http.StatusOK, newStateView(deps.Pipeline.State()))
	}
}

func handleToggleHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Pipeline.ToggleHistory(); err != nil {
			pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newStateView(deps.Pipeline.State()))
	}
}

func handleSelectHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Pipeline.SelectHistory(chi.URLParam(r, "id")); err != nil {
			pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newStateView(deps.Pipeline.State()))
	}
}

func handleListHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := deps.Pipeline.State().History
		limit := parseIntParam(r, "limit", 0, 0)
		if limit > 0 && limit < len(history) {
			history = history[:limit]
		}

		out := make([]HistorySummary, 0, len(history))
		for _, item := range history {
			out = append(out, summarize(item))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetHistoryItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := deps.Pipeline.State().Find(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "history item not found")
			return
		}
		writeJSON(w, http.StatusOK, HistoryDetail{HistoryItem: item, ShareText: schematic.ShareText(item.Analysis)})
	}
}

func handleClearHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Pipeline.ClearHistory(r.Context()); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "clearing history: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCurrentImage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Pipeline.State()
		writeImage(w, chi.URLParam(r, "kind"), s.OriginalImage, s.GeneratedImage)
	}
}

func handleHistoryImage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := deps.Pipeline.State().Find(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "history item not found")
			return
		}
		writeImage(w, chi.URLParam(r, "kind"), item.OriginalImage, item.GeneratedImage)
	}
}

func writeImage(w http.ResponseWriter, kind, original, generated string) {
	var encoded string
	switch kind {
	case "original":
		encoded = original
	case "generated":
		encoded = generated
	default:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "image kind must be original or generated, got %q", kind)
		return
	}
	if encoded == "" {
		httpError(w, http.StatusNotFound, "not_found", "no %s image", kind)
		return
	}

	raw, err := imagecodec.Decode(encoded)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	}
	w.Header().Set("Content-Type", imagecodec.DetectMIME(raw))
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.Write(raw)
}

// pipelineError maps orchestrator errors onto status codes.
func pipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case errors.Is(err, pipeline.ErrUnknownItem):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
