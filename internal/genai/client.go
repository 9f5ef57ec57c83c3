// Package genai is the HTTP client for the remote generative model. The model
// is an opaque collaborator with latency, quota and safety-rejection failure
// modes; upstream error text is surfaced verbatim in errors so the caller can
// classify it, and must never reach a client unmapped.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
}

// SetBaseURL points the client at a different endpoint (tests, proxies).
func (c *Client) SetBaseURL(url string) { c.baseURL = url }

type inlineData struct {
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// fetchImage downloads the source image and wraps it for inline transport.
func (c *Client) fetchImage(ctx context.Context, imageURL string) (*inlineData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source image fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read source image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}, nil
}

func (c *Client) generateContent(ctx context.Context, model string, reqBody generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return nil, fmt.Errorf("model returned status %d with unparseable body", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		if genResp.Error != nil {
			return nil, fmt.Errorf("model returned status %d (%s): %s",
				resp.StatusCode, genResp.Error.Status, genResp.Error.Message)
		}
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}
	return &genResp, nil
}

// AnalyzeImage extracts a descriptive feature summary from the source image.
func (c *Client) AnalyzeImage(ctx context.Context, model, instruction, imageURL string) (string, error) {
	img, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return "", err
	}
	resp, err := c.generateContent(ctx, model, generateRequest{
		Contents: []content{{Parts: []part{{Text: instruction}, {InlineData: img}}}},
	})
	if err != nil {
		return "", err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", fmt.Errorf("analysis returned no text")
}

// GenerateImage synthesizes an image from the prompt and the source image.
// Text parts may precede the image part, so every part is scanned for inline
// data; an empty result usually means the safety filter rejected the request.
func (c *Client) GenerateImage(ctx context.Context, model, prompt, sourceImageURL string) ([]byte, error) {
	img, err := c.fetchImage(ctx, sourceImageURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.generateContent(ctx, model, generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}, {InlineData: img}}}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	})
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode generated image: %w", err)
				}
				return data, nil
			}
		}
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" && resp.Candidates[0].FinishReason != "STOP" {
		return nil, fmt.Errorf("generation blocked: finish reason %s", resp.Candidates[0].FinishReason)
	}
	return nil, fmt.Errorf("generation result was empty, likely blocked by the safety filter")
}
