package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	app "qc-scanner/internal/application"
	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/logger"
)

// maxBodyBytes ограничение на тело запроса со снимком
const maxBodyBytes = 32 << 20

type scanRequest struct {
	Image string `json:"image"`
}

type Handler struct {
	scans *app.ScanService
}

func New(scans *app.ScanService) *Handler {
	return &Handler{scans: scans}
}

// Routes регистрирует маршруты REST API
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/scan", h.Scan)
	mux.HandleFunc("/api/products", h.Products)
	mux.HandleFunc("/api/statistics", h.Statistics)
	return mux
}

// Scan POST /api/scan
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req scanRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	rec, err := h.scans.Scan(r.Context(), req.Image)
	if err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Products GET /api/products?limit=N
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.scans.History(r.Context(), limit)
	if err != nil {
		logger.WithError(err).Error("failed to load scan history")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*entity.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Statistics GET /api/statistics
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	stats, err := h.scans.Statistics(r.Context())
	if err != nil {
		logger.WithError(err).Error("failed to compute statistics")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeScanError(w http.ResponseWriter, err error) {
	var decodeErr *entity.DecodeError
	if errors.As(err, &decodeErr) {
		logger.WithFields(logrus.Fields{"reason": decodeErr.Reason}).Info("rejected undecodable image")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.WithError(err).Error("scan failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
