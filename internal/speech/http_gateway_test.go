package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribePostsOrderedChunks(t *testing.T) {
	var got transcribeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transcribe", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(transcribeResponse{Text: "hello world", Confidence: 0.87})
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL)
	result, err := g.Transcribe(context.Background(), [][]byte{[]byte("one"), []byte("two")})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	assert.InDelta(t, 0.87, result.Confidence, 1e-9)

	require.Len(t, got.Chunks, 2)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("one")), got.Chunks[0])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("two")), got.Chunks[1])
}

func TestTranscribeRejectsEmptyWindow(t *testing.T) {
	g := NewHTTPGateway("http://unused")
	_, err := g.Transcribe(context.Background(), nil)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, ErrCodeInvalidInput, gwErr.Code)
}

func TestSynthesizeReturnsAudioRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/synthesize", r.URL.Path)
		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "warm", req.Voice)
		json.NewEncoder(w).Encode(synthesizeResponse{AudioRef: "audio/abc123"})
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL)
	ref, err := g.Synthesize(context.Background(), "Welcome", "warm")
	require.NoError(t, err)
	assert.Equal(t, "audio/abc123", ref)
}

func TestGatewaySurfacesUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL)
	_, err := g.Synthesize(context.Background(), "Welcome", "")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, ErrCodeServiceDown, gwErr.Code)
}

func TestGatewayHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewHTTPGateway(server.URL)
	_, err := g.Transcribe(ctx, [][]byte{[]byte("a")})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, ErrCodeTimeout, gwErr.Code)
}
