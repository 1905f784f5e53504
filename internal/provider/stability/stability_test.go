package stability

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/manash/stability-skill/internal/provider"
	"github.com/manash/stability-skill/pkg/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *provider.Config
		wantErr error
	}{
		{
			name:    "valid config",
			cfg:     &provider.Config{APIKey: "test-key"},
			wantErr: nil,
		},
		{
			name:    "empty API key",
			cfg:     &provider.Config{APIKey: ""},
			wantErr: provider.ErrAPIKeyRequired,
		},
		{
			name:    "custom base URL",
			cfg:     &provider.Config{APIKey: "test-key", BaseURL: "https://custom.stability.ai"},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v, want nil", err)
			}
			if p == nil {
				t.Fatal("New() returned nil provider")
			}
		})
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	p, err := New(&provider.Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if p.baseURL != "https://api.stability.ai/v1" {
		t.Errorf("New() baseURL = %v, want https://api.stability.ai/v1", p.baseURL)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	p, err := New(&provider.Config{APIKey: "test-key", BaseURL: "https://custom.api.com/v1/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if p.baseURL != "https://custom.api.com/v1" {
		t.Errorf("New() baseURL = %v, want https://custom.api.com/v1", p.baseURL)
	}
}

func TestProvider_Name(t *testing.T) {
	p, _ := New(&provider.Config{APIKey: "test"})
	if p.Name() != "stability" {
		t.Errorf("Name() = %v, want stability", p.Name())
	}
}

func artifactsBody(t *testing.T, artifacts ...artifact) []byte {
	t.Helper()
	data, err := json.Marshal(apiResponse{Artifacts: artifacts})
	if err != nil {
		t.Fatalf("marshal artifacts: %v", err)
	}
	return data
}

func TestProvider_Generate_Success(t *testing.T) {
	pngData := []byte("\x89PNG fake image")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/generation/stable-diffusion-xl-1024-v1-0/text-to-image" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("wrong authorization header")
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("wrong accept header")
		}

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.TextPrompts) != 1 || req.TextPrompts[0].Text != "a cat wearing a hat" {
			t.Errorf("text_prompts = %+v, want single query prompt", req.TextPrompts)
		}
		if req.Width != 1216 || req.Height != 832 {
			t.Errorf("size = %dx%d, want 1216x832", req.Width, req.Height)
		}
		if req.StylePreset != "anime" {
			t.Errorf("style_preset = %q, want anime", req.StylePreset)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(artifactsBody(t, artifact{
			Base64:       base64.StdEncoding.EncodeToString(pngData),
			Seed:         42,
			FinishReason: "SUCCESS",
		}))
	}))
	defer server.Close()

	p, err := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := models.NewRequest("a cat wearing a hat")
	req.StylePreset = "anime"

	resp, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	img, err := resp.First()
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if string(img.Data) != string(pngData) {
		t.Errorf("image data = %q, want %q", img.Data, pngData)
	}
	if img.Seed != 42 {
		t.Errorf("Seed = %d, want 42", img.Seed)
	}
}

func TestProvider_Generate_OmitsEmptyStylePreset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if _, ok := raw["style_preset"]; ok {
			t.Error("style_preset should be omitted when empty")
		}
		w.Write(artifactsBody(t, artifact{Base64: base64.StdEncoding.EncodeToString([]byte("x"))}))
	}))
	defer server.Close()

	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL})
	if _, err := p.Generate(context.Background(), models.NewRequest("a dog")); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestProvider_Generate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "api error body",
			status:  http.StatusUnauthorized,
			body:    `{"id":"abc","name":"unauthorized","message":"missing authorization header"}`,
			wantErr: provider.ErrGenerationFailed,
			wantMsg: "missing authorization header",
		},
		{
			name:    "non json error body",
			status:  http.StatusBadGateway,
			body:    `upstream exploded`,
			wantErr: provider.ErrGenerationFailed,
			wantMsg: "upstream exploded",
		},
		{
			name:    "empty error body",
			status:  http.StatusTooManyRequests,
			body:    ``,
			wantErr: provider.ErrGenerationFailed,
			wantMsg: "Too Many Requests",
		},
		{
			name:    "invalid json",
			status:  http.StatusOK,
			body:    `{not json`,
			wantErr: provider.ErrMalformedResponse,
		},
		{
			name:    "no artifacts",
			status:  http.StatusOK,
			body:    `{"artifacts":[]}`,
			wantErr: provider.ErrMalformedResponse,
		},
		{
			name:    "bad base64",
			status:  http.StatusOK,
			body:    `{"artifacts":[{"base64":"!!!","finishReason":"SUCCESS"}]}`,
			wantErr: provider.ErrMalformedResponse,
		},
		{
			name:    "content filtered",
			status:  http.StatusOK,
			body:    `{"artifacts":[{"base64":"eA==","finishReason":"CONTENT_FILTERED"}]}`,
			wantErr: provider.ErrContentFiltered,
		},
		{
			name:    "error finish reason",
			status:  http.StatusOK,
			body:    `{"artifacts":[{"base64":"eA==","finishReason":"ERROR"}]}`,
			wantErr: provider.ErrGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL})
			_, err := p.Generate(context.Background(), models.NewRequest("a cat"))
			if err == nil {
				t.Fatal("Generate() error = nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Generate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Generate() error = %v, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestProvider_Generate_StatusErrorFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"name":"insufficient_balance","message":"out of credits"}`)
	}))
	defer server.Close()

	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := p.Generate(context.Background(), models.NewRequest("a cat"))

	var se *provider.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Generate() error = %v, want *provider.StatusError", err)
	}
	if se.StatusCode != http.StatusPaymentRequired || se.Name != "insufficient_balance" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestProvider_Generate_InvalidRequest(t *testing.T) {
	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})

	_, err := p.Generate(context.Background(), models.NewRequest(""))
	if !errors.Is(err, models.ErrEmptyPrompt) {
		t.Errorf("Generate() error = %v, want ErrEmptyPrompt", err)
	}
}

func TestProvider_Generate_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, models.NewRequest("a cat"))
	if !errors.Is(err, provider.ErrGenerationFailed) {
		t.Errorf("Generate() error = %v, want ErrGenerationFailed", err)
	}
}
