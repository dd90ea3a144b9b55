package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPGateway talks to the speech provider's REST API. Transcription and
// synthesis live behind the same base URL in our deployment.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type transcribeRequest struct {
	Chunks []string `json:"chunks"`
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type synthesizeResponse struct {
	AudioRef string `json:"audioRef"`
}

func (g *HTTPGateway) Transcribe(ctx context.Context, chunks [][]byte) (*Transcription, error) {
	if len(chunks) == 0 {
		return nil, &GatewayError{Provider: "speech", Code: ErrCodeInvalidInput, Message: "no audio to transcribe"}
	}

	req := transcribeRequest{Chunks: make([]string, 0, len(chunks))}
	for _, c := range chunks {
		req.Chunks = append(req.Chunks, base64.StdEncoding.EncodeToString(c))
	}

	var resp transcribeResponse
	if err := g.post(ctx, "/v1/transcribe", req, &resp); err != nil {
		return nil, err
	}
	return &Transcription{Text: resp.Text, Confidence: resp.Confidence}, nil
}

func (g *HTTPGateway) Synthesize(ctx context.Context, text, voice string) (string, error) {
	if text == "" {
		return "", &GatewayError{Provider: "speech", Code: ErrCodeInvalidInput, Message: "no text to synthesize"}
	}

	var resp synthesizeResponse
	if err := g.post(ctx, "/v1/synthesize", synthesizeRequest{Text: text, Voice: voice}, &resp); err != nil {
		return "", err
	}
	return resp.AudioRef, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &GatewayError{Provider: "speech", Code: ErrCodeInvalidInput, Message: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &GatewayError{Provider: "speech", Code: ErrCodeInvalidInput, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		code := ErrCodeServiceDown
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			code = ErrCodeTimeout
		}
		return &GatewayError{Provider: "speech", Code: code, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &GatewayError{
			Provider: "speech",
			Code:     ErrCodeServiceDown,
			Message:  fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, path),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{Provider: "speech", Code: ErrCodeServiceDown, Message: "failed to decode response", Err: err}
	}
	return nil
}
