package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	modelMultimodal  = "gemini-2.5-flash-image"
	modelTextToImage = "imagen-4.0-generate-001"
)

// ErrNoImage reports that the service answered without an image payload when
// one was expected.
var ErrNoImage = errors.New("the service returned no image")

// GenerationError wraps any transport, authentication or service-side
// failure from the generation call so callers never see a raw transport
// error.
type GenerationError struct {
	err error
}

func (e *GenerationError) Error() string {
	return "image generation failed: " + e.err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.err
}

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// Generate performs exactly one outbound request and normalizes the result
// into a single image. Failures are either ErrNoImage or a *GenerationError
// carrying the underlying message; no retries, no streaming.
func (c *Client) Generate(ctx context.Context, req Request) (Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Image{}, &GenerationError{err: errors.New("prompt is empty")}
	}

	var (
		img Image
		err error
	)
	if req.Face != nil {
		img, err = c.generateWithFace(ctx, req)
	} else {
		img, err = c.generateFromText(ctx, req)
	}

	if err != nil {
		if errors.Is(err, ErrNoImage) {
			return Image{}, err
		}
		return Image{}, &GenerationError{err: err}
	}
	return img, nil
}

// generateWithFace sends a multimodal generateContent request: the reference
// photo as inline data plus the instruction text, expecting an image-bearing
// response.
func (c *Client) generateWithFace(ctx context.Context, req Request) (Image, error) {
	payload := generateContentRequest{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{InlineData: &blob{Data: req.Face.DataBase64, MimeType: req.Face.MimeType}},
					{Text: req.Prompt},
				},
			},
		},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}
	if req.AspectRatio != "" {
		payload.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: req.AspectRatio}
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, modelMultimodal)
	raw, err := c.post(ctx, url, payload)
	if err != nil && payload.GenerationConfig.ImageConfig != nil && isUnknownFieldError(err, "imageConfig") {
		payload.GenerationConfig.ImageConfig = nil
		raw, err = c.post(ctx, url, payload)
	}
	if err != nil {
		return Image{}, err
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Image{}, fmt.Errorf("decode response: %w", err)
	}

	if len(decoded.Candidates) > 0 {
		for _, p := range decoded.Candidates[0].Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				mimeType := p.InlineData.MimeType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return Image{DataBase64: p.InlineData.Data, MimeType: mimeType}, nil
			}
		}
	}
	return Image{}, ErrNoImage
}

// generateFromText sends a text-to-image predict request asking for exactly
// one output image at the requested aspect ratio.
func (c *Client) generateFromText(ctx context.Context, req Request) (Image, error) {
	payload := predictRequest{
		Instances: []predictInstance{{Prompt: req.Prompt}},
		Parameters: predictParameters{
			SampleCount:    1,
			AspectRatio:    req.AspectRatio,
			OutputMimeType: "image/png",
		},
	}

	url := fmt.Sprintf("%s/%s/models/%s:predict", c.baseURL, c.apiVersion, modelTextToImage)
	raw, err := c.post(ctx, url, payload)
	if err != nil {
		return Image{}, err
	}

	var decoded predictResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Image{}, fmt.Errorf("decode response: %w", err)
	}

	for _, p := range decoded.Predictions {
		if p.BytesBase64Encoded == "" {
			continue
		}
		mimeType := p.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		return Image{DataBase64: p.BytesBase64Encoded, MimeType: mimeType}, nil
	}
	return Image{}, ErrNoImage
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	if c.httpClient == nil {
		return nil, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("gemini API %s: %s", httpResp.Status, strings.TrimSpace(string(rawBody)))
	}
	return rawBody, nil
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount    int    `json:"sampleCount"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
	OutputMimeType string `json:"outputMimeType,omitempty"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}
