package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestServer serves a fake source image at /photo.png and a scripted model
// response at the generateContent path.
func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/photo.png" {
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key")
	c.SetBaseURL(srv.URL)
	return srv, c
}

func TestAnalyzeImage(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("expected instruction and image parts, got %+v", req.Contents)
		}
		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content      content `json:"content"`
				FinishReason string  `json:"finishReason"`
			}{{Content: content{Parts: []part{{Text: "a fluffy white dog"}}}}},
		})
	})

	got, err := c.AnalyzeImage(context.Background(), "gemini-2.0-flash", "describe", srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if got != "a fluffy white dog" {
		t.Fatalf("unexpected description: %q", got)
	}
}

func TestGenerateImage_ScansPartsForInlineData(t *testing.T) {
	imageBytes := []byte("generated-image")
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// A leading text part must not confuse the scan.
		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content      content `json:"content"`
				FinishReason string  `json:"finishReason"`
			}{{Content: content{Parts: []part{
				{Text: "here is your image"},
				{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(imageBytes)}},
			}}}},
		})
	})

	got, err := c.GenerateImage(context.Background(), "gemini-2.5-flash-image", "a sticker", srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(got) != string(imageBytes) {
		t.Fatalf("unexpected image bytes: %q", got)
	}
}

func TestGenerateImage_EmptyResultIsBlocked(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{})
	})

	_, err := c.GenerateImage(context.Background(), "gemini-2.5-flash-image", "a sticker", srv.URL+"/photo.png")
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("empty result should surface as blocked, got %v", err)
	}
}

func TestGenerateImage_UpstreamErrorTextSurfaces(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := c.GenerateImage(context.Background(), "gemini-2.5-flash-image", "a sticker", srv.URL+"/photo.png")
	if err == nil || !strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		t.Fatalf("upstream status must be visible to the classifier, got %v", err)
	}
}

func TestFetchImage_Non200Fails(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.AnalyzeImage(context.Background(), "gemini-2.0-flash", "describe", srv.URL+"/missing.png")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("missing source image must error, got %v", err)
	}
}
