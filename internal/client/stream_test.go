package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"forest-predictor/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoStreamServer answers each request with the number of features as
// the label, or an error for empty vectors.
func newEchoStreamServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req ml.PredictionRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := ml.StreamResponse{Label: len(req.Features), RequestID: req.RequestID}
			if len(req.Features) == 0 {
				resp.Error = "invalid argument: empty vector"
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"http://localhost:8090", "ws://localhost:8090/stream", false},
		{"https://example.com/api/", "wss://example.com/api/stream", false},
		{"ws://host:1", "ws://host:1/stream", false},
		{"ftp://host", "", true},
	}
	for _, tt := range tests {
		got, err := streamURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestStream_Predict(t *testing.T) {
	srv := newEchoStreamServer(t)

	s, err := DialStream(context.Background(), srv.URL)
	require.NoError(t, err)
	defer s.Close()

	label, err := s.Predict(context.Background(), []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, label)

	resp, err := s.Send(context.Background(), ml.PredictionRequest{Features: []float64{1}, RequestID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", resp.RequestID)
	assert.Equal(t, 1, resp.Label)

	_, err = s.Predict(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty vector")

	// The stream survives a rejected vector.
	label, err = s.Predict(context.Background(), []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, label)
}

func TestStream_CancelledContext(t *testing.T) {
	srv := newEchoStreamServer(t)

	s, err := DialStream(context.Background(), srv.URL)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Predict(ctx, []float64{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialStream_Errors(t *testing.T) {
	_, err := DialStream(context.Background(), "ftp://localhost")
	assert.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err = DialStream(context.Background(), srv.URL)
	assert.Error(t, err)
}
