package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/objinspect/inspection-service/config"
	"github.com/objinspect/inspection-service/detections"
	"github.com/objinspect/inspection-service/imagecheck"
	"github.com/objinspect/inspection-service/models"
	"github.com/objinspect/inspection-service/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *storage.Store
	invoker *Invoker
	pool    *EnginePool
	cache   *ReportCache
}

type inspectRequest struct {
	Body          string `json:"body"`
	Name          string `json:"name"`
	Normalisation string `json:"normalisation"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (a *app) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", a.handleIndex).Methods("GET")
	r.HandleFunc("/", a.handleUpload).Methods("POST")
	r.HandleFunc("/uploads/{filename}", a.handleUploadedFile).Methods("GET")
	r.HandleFunc("/api/inspect_image", a.handleInspectImage).Methods("POST")
	r.HandleFunc("/metrics", a.handleMetrics).Methods("GET")
	r.HandleFunc("/healthz", a.handleHealthz).Methods("GET")
	return a.requestLogger(r)
}

// requestLogger logs one line per request with id, status, and latency.
func (a *app) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		a.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("cost", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleIndex lists the stored images as a gallery page.
func (a *app) handleIndex(w http.ResponseWriter, _ *http.Request) {
	files, err := a.store.List(a.cfg.Upload.AllowedExtensions)
	if err != nil {
		a.logger.Error("list uploads", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := indexTemplate.Execute(w, struct{ Files []string }{files}); err != nil {
		a.logger.Error("render index", zap.Error(err))
	}
}

// handleUpload accepts a multipart image, validates it against its claimed
// extension, stores it, and overwrites the stored copy with the engine's
// annotated rendering.
func (a *app) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		a.sendError(w, "invalid_upload", MsgUploadRejected, http.StatusUnprocessableEntity)
		return
	}
	defer file.Close()

	filename := storage.SecureName(header.Filename)
	if filename == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := imagecheck.ValidateStream(filename, file, a.cfg.Upload.AllowedExtensions); err != nil {
		a.logger.Warn("upload rejected", zap.String("filename", filename), zap.Error(err))
		a.sendError(w, "invalid_image", MsgUploadRejected, http.StatusUnprocessableEntity)
		return
	}

	if _, err := a.store.Save(filename, file); err != nil {
		a.logger.Error("save upload", zap.String("filename", filename), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	timings := &models.ProcessingTimings{RequestID: uuid.NewString()}
	startTotal := time.Now()
	if err := a.invoker.RenderToFile(r.Context(), filename, timings); err != nil {
		a.renderEngineError(w, filename, err)
		return
	}
	timings.Total = time.Since(startTotal)
	a.logTimings(timings)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleUploadedFile serves a stored image byte for byte.
func (a *app) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	if name == "" || storage.SecureName(name) != name {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, a.store.Path(name))
}

// handleInspectImage is the inline JSON API: base64 body in, ordered
// per-object records out.
func (a *app) handleInspectImage(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		a.sendError(w, "not_json", MsgNotJSON, http.StatusUnsupportedMediaType)
		return
	}

	var req inspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.sendError(w, "not_json", MsgNotJSON, http.StatusUnsupportedMediaType)
		return
	}
	if req.Body == "" || req.Name == "" {
		a.sendError(w, "missing_fields", MsgNotJSON, http.StatusUnsupportedMediaType)
		return
	}

	raw, err := imagecheck.DecodePayload(req.Body, a.cfg.Payload.MinBytes, a.cfg.Payload.MaxBytes)
	if err != nil {
		a.logger.Warn("payload rejected", zap.String("name", req.Name), zap.Error(err))
		a.sendError(w, "invalid_payload", MsgPayloadRejected, http.StatusUnprocessableEntity)
		return
	}

	if err := imagecheck.ValidateBytes(req.Name, raw, a.cfg.Upload.AllowedExtensions); err != nil {
		a.logger.Warn("image rejected", zap.String("name", req.Name), zap.Error(err))
		a.sendError(w, "invalid_image", MsgImageRejected, http.StatusUnsupportedMediaType)
		return
	}

	mode := detections.AbsolutePixelBox
	if strings.EqualFold(req.Normalisation, "on") {
		mode = detections.NormalizedBox
	}

	cacheKey := a.cache.Key(raw, mode)
	if report, ok := a.cache.Get(r.Context(), cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(report)
		return
	}

	timings := &models.ProcessingTimings{RequestID: uuid.NewString()}
	startTotal := time.Now()

	decodeStart := time.Now()
	img, _, err := image.Decode(bytes.NewReader(raw))
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		a.logger.Error("image decode failed", zap.String("name", req.Name), zap.Error(err))
		a.sendError(w, "processing_error", MsgProcessingFailed, http.StatusInternalServerError)
		return
	}

	table, err := a.invoker.Table(r.Context(), img, mode, timings)
	if err != nil {
		a.renderEngineError(w, req.Name, err)
		return
	}

	records := detections.Normalize(table)
	report, err := json.Marshal(records)
	if err != nil {
		a.logger.Error("marshal report", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	timings.Total = time.Since(startTotal)
	a.logTimings(timings)
	a.cache.Set(r.Context(), cacheKey, report)

	w.Header().Set("Content-Type", "application/json")
	w.Write(report)
}

func (a *app) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics := a.pool.GetMetrics()
	response := map[string]interface{}{
		"pool_size":        a.cfg.Model.PoolSize,
		"engines_in_use":   metrics.InUse,
		"total_acquired":   metrics.TotalAcquired,
		"total_released":   metrics.TotalReleased,
		"acquire_failures": metrics.AcquireFailures,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (a *app) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// renderEngineError maps engine-side failures: busy pool is 503, anything
// else is a server-side processing failure. The request was valid either
// way, so no 4xx.
func (a *app) renderEngineError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, ErrNoEngineAvailable) {
		a.sendError(w, "engine_busy", MsgEngineBusy, http.StatusServiceUnavailable)
		return
	}
	a.logger.Error("engine processing failed", zap.String("name", name), zap.Error(err))
	a.sendError(w, "processing_error", MsgProcessingFailed, http.StatusInternalServerError)
}

func (a *app) sendError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func (a *app) logTimings(t *models.ProcessingTimings) {
	a.logger.Debug("processing times",
		zap.String("request_id", t.RequestID),
		zap.Duration("image_decode", t.ImageDecode),
		zap.Duration("resize", t.Resize),
		zap.Duration("preprocess", t.Preprocess),
		zap.Duration("inference", t.Inference),
		zap.Duration("postprocess", t.Postprocess),
		zap.Duration("render", t.Render),
		zap.Duration("total", t.Total),
	)
}
