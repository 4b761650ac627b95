package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/eternnoir/mediascribe/pkg/apperror"
)

// TranscriptionAPIResponse is the JSON body returned by the remote
// transcription endpoint.
type TranscriptionAPIResponse struct {
	Text       string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TranscriptionClient issues multipart POSTs to the remote transcription
// endpoint.
type TranscriptionClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
	language   string
	retryDelay time.Duration
}

// NewTranscriptionClient constructs a TranscriptionClient.
func NewTranscriptionClient(apiURL, apiKey, model, language string, timeout, retryDelay time.Duration) *TranscriptionClient {
	return &TranscriptionClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		language:   language,
		retryDelay: retryDelay,
	}
}

// Transcribe issues a single multipart POST with fields file/model/
// response_format=json/optional language. On HTTP 429 it returns a
// rate-limit classified error carrying the resolved retry delay; any
// other non-2xx status is a retryable remote-API error.
func (c *TranscriptionClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (*TranscriptionAPIResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindRemoteAPI, "transcribe", fmt.Errorf("create form file: %w", err))
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, apperror.Wrap(apperror.KindRemoteAPI, "transcribe", fmt.Errorf("copy audio: %w", err))
	}
	_ = writer.WriteField("model", c.model)
	_ = writer.WriteField("response_format", "json")
	if c.language != "" {
		_ = writer.WriteField("language", c.language)
	}
	if err := writer.Close(); err != nil {
		return nil, apperror.Wrap(apperror.KindRemoteAPI, "transcribe", fmt.Errorf("close multipart writer: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindRemoteAPI, "transcribe", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindRemoteAPI, "transcribe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := c.retryDelay
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		return nil, apperror.WrapRetryAfter("transcribe", fmt.Errorf("rate limited by remote API"), wait)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, apperror.Wrap(apperror.KindRemoteAPI, "transcribe", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result TranscriptionAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperror.Wrap(apperror.KindRemoteAPI, "transcribe", fmt.Errorf("decode response: %w", err))
	}

	return &result, nil
}
