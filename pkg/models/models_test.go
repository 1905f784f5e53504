package models

import (
	"errors"
	"testing"
)

func TestEngineFor(t *testing.T) {
	tests := []struct {
		model   string
		want    Engine
		wantErr error
	}{
		{"sdxl_v1.0", EngineSDXL10, nil},
		{"sd_v1.6", EngineSD16, nil},
		{"sd_beta", EngineSDBeta, nil},
		{"dall-e-3", "", ErrUnknownModel},
		{"", "", ErrUnknownModel},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := EngineFor(tt.model)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("EngineFor(%q) error = %v, want %v", tt.model, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EngineFor(%q) error = %v", tt.model, err)
			}
			if got != tt.want {
				t.Errorf("EngineFor(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestModelNames(t *testing.T) {
	names := ModelNames()
	want := []string{"sd_beta", "sd_v1.6", "sdxl_v1.0"}
	if len(names) != len(want) {
		t.Fatalf("ModelNames() returned %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ModelNames()[%d] = %v, want %v", i, names[i], want[i])
		}
	}
}

func TestNewRequest(t *testing.T) {
	req := NewRequest("a cat")

	if req.Prompt != "a cat" {
		t.Errorf("NewRequest().Prompt = %v, want a cat", req.Prompt)
	}
	if req.Width != 1216 || req.Height != 832 {
		t.Errorf("NewRequest() size = %dx%d, want 1216x832", req.Width, req.Height)
	}
	if req.Samples != 1 {
		t.Errorf("NewRequest().Samples = %v, want 1", req.Samples)
	}
	if req.Engine != EngineSDXL10 {
		t.Errorf("NewRequest().Engine = %v, want %v", req.Engine, EngineSDXL10)
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr error
	}{
		{
			name: "default request",
			req:  NewRequest("test"),
		},
		{
			name:    "empty prompt",
			req:     NewRequest(""),
			wantErr: ErrEmptyPrompt,
		},
		{
			name:    "zero samples",
			req:     &Request{Prompt: "test", Engine: EngineSDXL10, Width: 1216, Height: 832},
			wantErr: ErrInvalidSamples,
		},
		{
			name:    "unsupported sdxl size",
			req:     &Request{Prompt: "test", Engine: EngineSDXL10, Width: 512, Height: 512, Samples: 1},
			wantErr: ErrInvalidSize,
		},
		{
			name: "sd 1.6 accepts any size",
			req:  &Request{Prompt: "test", Engine: EngineSD16, Width: 512, Height: 512, Samples: 1},
		},
		{
			name:    "unknown engine",
			req:     &Request{Prompt: "test", Engine: "nope", Width: 1216, Height: 832, Samples: 1},
			wantErr: ErrUnknownModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponse_First(t *testing.T) {
	var nilResp *Response
	if _, err := nilResp.First(); !errors.Is(err, ErrNoImageReturned) {
		t.Errorf("nil First() error = %v, want ErrNoImageReturned", err)
	}

	empty := &Response{Images: []GeneratedImage{{}}}
	if _, err := empty.First(); !errors.Is(err, ErrNoImageReturned) {
		t.Errorf("empty First() error = %v, want ErrNoImageReturned", err)
	}

	resp := &Response{Images: []GeneratedImage{{Data: []byte("png"), Seed: 7}}}
	img, err := resp.First()
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if img.Seed != 7 {
		t.Errorf("First().Seed = %v, want 7", img.Seed)
	}
}

func TestStylePresets(t *testing.T) {
	found := false
	for _, p := range StylePresets() {
		if p == DefaultStylePreset {
			found = true
		}
	}
	if !found {
		t.Errorf("StylePresets() does not contain default %q", DefaultStylePreset)
	}
}
