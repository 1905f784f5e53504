package stability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/sirupsen/logrus"

	"github.com/manash/stability-skill/internal/provider"
	"github.com/manash/stability-skill/pkg/models"
)

const (
	defaultBaseURL = "https://api.stability.ai/v1"
	providerName   = "stability"

	finishSuccess         = "SUCCESS"
	finishContentFiltered = "CONTENT_FILTERED"
)

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
}

type apiRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Samples     int          `json:"samples,omitempty"`
	StylePreset string       `json:"style_preset,omitempty"`
}

type apiResponse struct {
	Artifacts []artifact `json:"artifacts"`
}

type artifact struct {
	Base64       string `json:"base64"`
	Seed         uint32 `json:"seed"`
	FinishReason string `json:"finishReason"`
}

type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	verbose    bool
	log        logrus.FieldLogger
}

func New(cfg *provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		verbose: cfg.Verbose,
		log:     cfg.Log().WithField("provider", providerName),
	}, nil
}

// NewProvider adapts New to provider.Constructor.
func NewProvider(cfg *provider.Config) (provider.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(p.buildAPIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/generation/%s/text-to-image", p.baseURL, req.Engine)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	p.logRequest(url, req)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %v", provider.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", provider.ErrGenerationFailed, err)
	}

	p.logResponse(resp.StatusCode, len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, body)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
	}

	return buildResponse(apiResp)
}

func (p *Provider) buildAPIRequest(req *models.Request) *apiRequest {
	return &apiRequest{
		TextPrompts: []textPrompt{{Text: req.Prompt, Weight: 1}},
		Width:       req.Width,
		Height:      req.Height,
		Samples:     req.Samples,
		StylePreset: req.StylePreset,
	}
}

func buildResponse(apiResp apiResponse) (*models.Response, error) {
	if len(apiResp.Artifacts) == 0 {
		return nil, fmt.Errorf("%w: no artifacts", provider.ErrMalformedResponse)
	}

	response := &models.Response{
		Images: make([]models.GeneratedImage, 0, len(apiResp.Artifacts)),
	}

	for i, a := range apiResp.Artifacts {
		if a.FinishReason == finishContentFiltered {
			return nil, fmt.Errorf("%w: artifact %d", provider.ErrContentFiltered, i)
		}
		if a.FinishReason != "" && a.FinishReason != finishSuccess {
			return nil, fmt.Errorf("%w: artifact %d finished with %s", provider.ErrGenerationFailed, i, a.FinishReason)
		}

		decoded, err := base64.StdEncoding.DecodeString(a.Base64)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode artifact %d: %v", provider.ErrMalformedResponse, i, err)
		}
		if len(decoded) == 0 {
			return nil, fmt.Errorf("%w: artifact %d is empty", provider.ErrMalformedResponse, i)
		}

		response.Images = append(response.Images, models.GeneratedImage{
			Data:         decoded,
			Seed:         a.Seed,
			FinishReason: a.FinishReason,
		})
	}

	return response, nil
}

// parseError reads {"id","name","message"} error bodies; anything else is reported raw.
func parseError(status int, body []byte) error {
	se := &provider.StatusError{StatusCode: status}

	if msg, err := jsonparser.GetString(body, "message"); err == nil {
		se.Message = msg
		se.Name, _ = jsonparser.GetString(body, "name")
		return se
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	if raw == "" {
		raw = http.StatusText(status)
	}
	se.Message = raw
	return se
}

func (p *Provider) logRequest(url string, req *models.Request) {
	if !p.verbose {
		return
	}
	p.log.WithFields(logrus.Fields{
		"url":          url,
		"size":         req.Size(),
		"style_preset": req.StylePreset,
		"prompt":       req.Prompt,
	}).Debug("sending text-to-image request")
}

func (p *Provider) logResponse(statusCode, size int) {
	if !p.verbose {
		return
	}
	p.log.WithFields(logrus.Fields{
		"status": statusCode,
		"bytes":  size,
	}).Debug("received text-to-image response")
}
