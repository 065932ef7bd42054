package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diagrammer/app/usecase"
	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/events"
	"diagrammer/internal/infrastructure/metrics"
	"diagrammer/internal/infrastructure/ratelimit"
)

const (
	maxBodyBytes = 64 << 10
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

type DiagramHandler struct {
	generator usecase.DiagramUsecase
	requests  usecase.RequestUsecase
	hub       *events.Hub
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	// метрики
	reqDuration *prometheus.HistogramVec
	reqCount    *prometheus.CounterVec
	errCount    *prometheus.CounterVec
}

func NewDiagramHandler(
	generator usecase.DiagramUsecase,
	requests usecase.RequestUsecase,
	hub *events.Hub,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) *DiagramHandler {

	reqDuration := registerCollector(prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	))

	reqCount := registerCollector(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	))

	errCount := registerCollector(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	))

	return &DiagramHandler{
		generator: generator,
		requests:  requests,
		hub:       hub,
		limiter:   limiter,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		reqDuration: reqDuration,
		reqCount:    reqCount,
		errCount:    errCount,
	}
}

func (h *DiagramHandler) RegisterRoutes(r *mux.Router) {
	r.Use(withRequestID)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/diagrams/generate", h.withMetrics("/api/diagrams/generate", h.withRateLimit(h.handleGenerate))).Methods(http.MethodPost)
	api.HandleFunc("/diagrams/history", h.withMetrics("/api/diagrams/history", h.handleHistory)).Methods(http.MethodGet)
	api.HandleFunc("/diagrams/events", h.withMetrics("/api/diagrams/events", h.handleEvents)).Methods(http.MethodGet)
	api.HandleFunc("/diagrams/{id:[0-9]+}", h.withMetrics("/api/diagrams/{id}", h.handleGetRequest)).Methods(http.MethodGet)
	api.HandleFunc("/diagrams/{id:[0-9]+}/image", h.withMetrics("/api/diagrams/{id}/image", h.handleGetImage)).Methods(http.MethodGet)
	api.HandleFunc("/health", h.withMetrics("/api/health", h.handleHealth)).Methods(http.MethodGet)

	// Prometheus
	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (h *DiagramHandler) log(r *http.Request) *slog.Logger {
	return h.logger.With("correlation_id", CorrelationID(r.Context()))
}

// POST /api/diagrams/generate
func (h *DiagramHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req entity.GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}

	resp, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.log(r).Error("generate diagram failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  err.Error(),
			"status": string(entity.RequestStatusFailed),
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/diagrams/history
func (h *DiagramHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.requests.History(r.Context())
	if err != nil {
		h.log(r).Error("list history failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func requestID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// GET /api/diagrams/{id}
func (h *DiagramHandler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid id"))
		return
	}
	req, err := h.requests.GetRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.log(r).Error("get request failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GET /api/diagrams/{id}/image
func (h *DiagramHandler) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid id"))
		return
	}
	png, err := h.requests.GetImage(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.log(r).Error("get image failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="diagram-%d.png"`, id))
	_, _ = w.Write(png)
}

// GET /api/diagrams/events
func (h *DiagramHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log(r).Warn("websocket upgrade failed", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	metrics.IncWSConnections()
	defer metrics.DecWSConnections()

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	// the read loop only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.log(r).Debug("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// GET /api/health
func (h *DiagramHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	if counts, err := h.requests.CountByStatus(r.Context()); err == nil {
		status["requests"] = counts
	} else {
		h.log(r).Warn("count requests failed", "err", err)
		status["ok"] = false
	}
	writeJSON(w, http.StatusOK, status)
}
