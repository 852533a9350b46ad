package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"forest-predictor/internal/forest"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	maxRequestBytes = 1 << 20
	streamReadWait  = 60 * time.Second
	streamWriteWait = 10 * time.Second
)

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	service  *Service
	server   *http.Server
	upgrader websocket.Upgrader
}

// ServerConfig configures a ModelServer. MetricsHandler, when set, is
// mounted at /metrics.
type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MetricsHandler http.Handler
}

// PredictionRequest represents the incoming prediction request
type PredictionRequest struct {
	Features  []float64 `json:"features"`
	RequestID string    `json:"request_id,omitempty"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Label     int       `json:"label"`
	Cached    bool      `json:"cached"`
	RequestID string    `json:"request_id,omitempty"`
	Latency   float64   `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamResponse is sent for every message received on /stream.
type StreamResponse struct {
	Label     int    `json:"label"`
	Cached    bool   `json:"cached"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewModelServer creates a new HTTP server for model serving
func NewModelServer(service *Service, config ServerConfig) *ModelServer {
	ms := &ModelServer{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	mux.HandleFunc("/stream", ms.handleStream)
	if config.MetricsHandler != nil {
		mux.Handle("/metrics", config.MetricsHandler)
	}

	readTimeout := config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	ms.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return ms
}

// Handler returns the server's routes.
func (ms *ModelServer) Handler() http.Handler {
	return ms.server.Handler
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req PredictionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	label, cached, err := ms.service.Predict(req.Features)
	if err != nil {
		if errors.Is(err, forest.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		http.Error(w, fmt.Sprintf("prediction failed: %v", err), http.StatusInternalServerError)
		return
	}

	resp := PredictionResponse{
		Label:     label,
		Cached:    cached,
		RequestID: req.RequestID,
		Latency:   float64(time.Since(start).Microseconds()) / 1000,
		Timestamp: time.Now(),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := ms.service.GetHealthStatus()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, health)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ms.service.Info())
}

// handleStream answers one prediction per websocket message. Rejected
// vectors are reported in the response and keep the connection open.
func (ms *ModelServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := ms.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("stream upgrade failed")
		return
	}
	defer conn.Close()

	if ms.service.metrics != nil {
		ms.service.metrics.StreamConnectionsAdd(1)
		defer ms.service.metrics.StreamConnectionsAdd(-1)
	}

	conn.SetReadLimit(maxRequestBytes)
	for {
		conn.SetReadDeadline(time.Now().Add(streamReadWait))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("stream closed")
			}
			return
		}

		var req PredictionRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			if err := writeStream(conn, StreamResponse{Error: fmt.Sprintf("invalid request: %v", err)}); err != nil {
				return
			}
			continue
		}

		resp := StreamResponse{RequestID: req.RequestID}
		label, cached, err := ms.service.Predict(req.Features)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Label = label
			resp.Cached = cached
		}

		if err := writeStream(conn, resp); err != nil {
			log.Debug().Err(err).Msg("stream write failed")
			return
		}
	}
}

func writeStream(conn *websocket.Conn, resp StreamResponse) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
