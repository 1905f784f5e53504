package models

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
	ErrInvalidSize     = errors.New("invalid size for engine")
	ErrUnknownModel    = errors.New("unknown model")
	ErrInvalidSamples  = errors.New("samples must be at least 1")
	ErrNoImageReturned = errors.New("no image returned")
)

const (
	// ImageWidth and ImageHeight are the fixed target resolution of every draw.
	ImageWidth  = 1216
	ImageHeight = 832

	DefaultModel       = "sdxl_v1.0"
	DefaultStylePreset = "photographic"
)

type Engine string

const (
	EngineSDXL10 Engine = "stable-diffusion-xl-1024-v1-0"
	EngineSD16   Engine = "stable-diffusion-v1-6"
	EngineSDBeta Engine = "stable-diffusion-xl-beta-v2-2-2"
)

func (e Engine) String() string {
	return string(e)
}

// engines maps the short model names accepted in settings to provider engine ids.
var engines = map[string]Engine{
	"sdxl_v1.0": EngineSDXL10,
	"sd_v1.6":   EngineSD16,
	"sd_beta":   EngineSDBeta,
}

func EngineFor(model string) (Engine, error) {
	e, ok := engines[model]
	if !ok {
		return "", fmt.Errorf("%w: %q not in %v", ErrUnknownModel, model, ModelNames())
	}
	return e, nil
}

func ModelNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StylePresets lists the presets the provider documents. Settings values are passed
// through verbatim, this list only feeds help output.
func StylePresets() []string {
	return []string{
		"3d-model", "analog-film", "anime", "cinematic", "comic-book", "digital-art",
		"enhance", "fantasy-art", "isometric", "line-art", "low-poly", "modeling-compound",
		"neon-punk", "origami", "photographic", "pixel-art", "tile-texture",
	}
}

type Request struct {
	Prompt      string
	Engine      Engine
	Width       int
	Height      int
	StylePreset string
	Samples     int
}

func NewRequest(prompt string) *Request {
	return &Request{
		Prompt:  prompt,
		Engine:  EngineSDXL10,
		Width:   ImageWidth,
		Height:  ImageHeight,
		Samples: 1,
	}
}

func (r *Request) Size() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r *Request) Validate() error {
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if r.Samples < 1 {
		return ErrInvalidSamples
	}
	caps, ok := engineSizes[r.Engine]
	if !ok {
		return fmt.Errorf("%w: engine %q", ErrUnknownModel, r.Engine)
	}
	if caps != nil && !slices.Contains(caps, r.Size()) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidSize, r.Size(), caps)
	}
	return nil
}

// engineSizes holds the dimension allow-list per engine; nil means any multiple of 64.
var engineSizes = map[Engine][]string{
	EngineSDXL10: {"1024x1024", "1152x896", "896x1152", "1216x832", "832x1216", "1344x768", "768x1344", "1536x640", "640x1536"},
	EngineSD16:   nil,
	EngineSDBeta: nil,
}

type Response struct {
	Images []GeneratedImage
}

type GeneratedImage struct {
	Data         []byte
	Seed         uint32
	FinishReason string
}

// First returns the first image or ErrNoImageReturned.
func (r *Response) First() (*GeneratedImage, error) {
	if r == nil || len(r.Images) == 0 || len(r.Images[0].Data) == 0 {
		return nil, ErrNoImageReturned
	}
	return &r.Images[0], nil
}
