package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"forest-predictor/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	streamReadWait  = 60 * time.Second
	streamWriteWait = 10 * time.Second
	maxStreamBytes  = 512 * 1024
)

// Stream is a websocket connection to /stream. Requests on one Stream are
// serialized; open several streams for concurrent scoring.
type Stream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialStream connects to the /stream endpoint of the server at baseURL.
// http and https URLs are mapped to ws and wss.
func DialStream(ctx context.Context, baseURL string) (*Stream, error) {
	u, err := streamURL(baseURL)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("url", u).Msg("Establishing stream connection")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	conn.SetReadLimit(maxStreamBytes)

	return &Stream{conn: conn}, nil
}

func streamURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/stream"
	return u.String(), nil
}

// Send writes req and waits for its response. Rejected vectors come back
// with Error set and a nil error; the connection stays usable.
func (s *Stream) Send(ctx context.Context, req ml.PredictionRequest) (ml.StreamResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ml.StreamResponse{}, err
	}

	writeDeadline := time.Now().Add(streamWriteWait)
	readDeadline := time.Now().Add(streamReadWait)
	if d, ok := ctx.Deadline(); ok {
		writeDeadline = minTime(writeDeadline, d)
		readDeadline = minTime(readDeadline, d)
	}

	s.conn.SetWriteDeadline(writeDeadline)
	if err := s.conn.WriteJSON(req); err != nil {
		return ml.StreamResponse{}, fmt.Errorf("stream write: %w", err)
	}

	s.conn.SetReadDeadline(readDeadline)
	var resp ml.StreamResponse
	if err := s.conn.ReadJSON(&resp); err != nil {
		return ml.StreamResponse{}, fmt.Errorf("stream read: %w", err)
	}
	return resp, nil
}

// Predict returns the label for features, turning a rejected vector into
// an error.
func (s *Stream) Predict(ctx context.Context, features []float64) (int, error) {
	resp, err := s.Send(ctx, ml.PredictionRequest{Features: features})
	if err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, errors.New(resp.Error)
	}
	return resp.Label, nil
}

// Close sends a close frame and closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Debug().Err(err).Msg("stream close frame failed")
	}
	return s.conn.Close()
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
