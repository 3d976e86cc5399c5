package stability

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/assets"
	"github.com/brandcraft/brandcraft/internal/provider"
)

func TestGenerateImage_Mock(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "stable-diffusion-xl-1024-v1-0") {
			t.Errorf("unexpected engine in path %s", r.URL.Path)
		}
		var req generationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Samples != 1 || req.Width != 1024 || req.Height != 1024 {
			t.Errorf("unexpected generation parameters %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generationResponse{
			Artifacts: []artifact{{Base64: base64.StdEncoding.EncodeToString(png)}},
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	store, err := assets.NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL}, store, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	img, err := c.GenerateImage(context.Background(), "minimalist fox logo")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if !strings.HasPrefix(img.Ref, "/static/logo_") || !strings.HasSuffix(img.Ref, ".png") {
		t.Errorf("unexpected asset ref %q", img.Ref)
	}
	if img.Usage.TotalTokens != 0 {
		t.Errorf("stability reports no usage, got %+v", img.Usage)
	}

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(img.Ref, "/static/")))
	if err != nil {
		t.Fatalf("reading saved asset: %v", err)
	}
	if string(data) != string(png) {
		t.Error("saved asset does not match the decoded artifact")
	}
}

func TestGenerateImage_NoArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generationResponse{})
	}))
	defer server.Close()

	store, err := assets.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL}, store, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.GenerateImage(context.Background(), "logo")
	if !errors.Is(err, provider.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerateImage_SingleAttempt(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store, err := assets.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL}, store, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.GenerateImage(context.Background(), "logo"); err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("image generation must not retry internally, got %d attempts", attempts)
	}
}
