package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"math/rand"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/genai"

	_ "image/jpeg"
	_ "image/png"

	"github.com/guojun21/banana-slides/internal/config"
	"github.com/guojun21/banana-slides/internal/generation"
)

// layoutCaptionPrompt asks the model for a compact structural
// description of an existing slide, used when a renovation should keep
// the original layout.
const layoutCaptionPrompt = `Describe the structural layout of this slide in one short paragraph:
where the title sits, how content blocks are arranged, and any
charts, tables or images with their approximate positions. Do not
describe the textual content itself.`

// Generator implements generation.TextGenerator,
// generation.ImageGenerator and generation.LayoutCaptioner using
// Google's Gemini API.
type Generator struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client
}

// NewGenerator creates a new Generator with the provided dependencies.
// It validates the configuration and initializes the API client.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.TextModel == "" {
		return nil, fmt.Errorf("%w: text model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ImageModel == "" {
		return nil, fmt.Errorf("%w: image model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger: logger.With(slog.String("component", "gemini_generator")),
		config: cfg,
		client: client,
	}, nil
}

// Interface conformance
var (
	_ generation.TextGenerator   = (*Generator)(nil)
	_ generation.ImageGenerator  = (*Generator)(nil)
	_ generation.LayoutCaptioner = (*Generator)(nil)
)

// GenerateText implements generation.TextGenerator.GenerateText
func (g *Generator) GenerateText(ctx context.Context, prompt string, opts generation.TextOptions) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	genConfig := &genai.GenerateContentConfig{}
	if budget := g.thinkingBudget(opts.ThinkingBudget); budget > 0 {
		genConfig.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(budget),
		}
	}

	resp, err := g.callWithRetry(ctx, g.config.TextModel, genai.Text(prompt), genConfig)
	if err != nil {
		return "", err
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: response carried no text", generation.ErrEmptyOutput)
	}
	return text, nil
}

// GenerateImage implements generation.ImageGenerator.GenerateImage
// Reference images are attached before the prompt so the model treats
// them as the material to edit or imitate.
func (g *Generator) GenerateImage(ctx context.Context, req generation.ImageRequest) (image.Image, error) {
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}

	parts := make([]*genai.Part, 0, len(req.RefImagePaths)+1)
	for _, path := range req.RefImagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference image %s: %w", path, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeTypeOf(path)))
	}
	parts = append(parts, genai.NewPartFromText(renderPrompt(req)))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if budget := g.thinkingBudget(req.ThinkingBudget); budget > 0 {
		genConfig.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(budget),
		}
	}

	resp, err := g.callWithRetry(ctx, g.config.ImageModel, contents, genConfig)
	if err != nil {
		return nil, err
	}

	blob := responseImage(resp)
	if blob == nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrEmptyOutput, ErrNoImageInResponse)
	}

	img, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode generated image: %v",
			generation.ErrInvalidResponse, err)
	}
	return img, nil
}

// CaptionLayout implements generation.LayoutCaptioner.CaptionLayout
func (g *Generator) CaptionLayout(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeTypeOf(imagePath)),
		genai.NewPartFromText(layoutCaptionPrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.callWithRetry(ctx, g.config.TextModel, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", err
	}

	caption := responseText(resp)
	if caption == "" {
		return "", fmt.Errorf("%w: caption response carried no text", generation.ErrEmptyOutput)
	}
	return caption, nil
}

// thinkingBudget resolves the reasoning-token cap for one call: the
// per-request value when set, otherwise the configured default.
func (g *Generator) thinkingBudget(requested int32) int32 {
	if requested > 0 {
		return requested
	}
	return g.config.ThinkingBudget
}

// callWithRetry makes a Gemini API call with exponential backoff.
// Transient failures are retried up to config.MaxRetries times with
// jittered delays; permanent errors (safety blocks, malformed
// responses, client-side API failures) return immediately.
func (g *Generator) callWithRetry(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.DebugContext(ctx, "making Gemini API call",
			"model", model,
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		resp, err := g.client.Models.GenerateContent(ctx, model, contents, genConfig)
		transient := err != nil && !isPermanentAPIError(err)
		if err == nil {
			err = validateResponse(resp)
		}
		if err == nil {
			return resp, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"model", model,
			"attempt", attemptNum,
			"error", err)

		if errors.Is(err, generation.ErrContentBlocked) || errors.Is(err, generation.ErrInvalidResponse) {
			return nil, err
		}
		if !transient {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		delay := backoffDelay(baseDelaySeconds, attempt, rng.Float64())
		g.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay", delay.String())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// isPermanentAPIError reports whether an API error cannot succeed on
// retry: bad requests, auth failures, and unknown models keep failing,
// while rate limits and server errors stay retryable.
func isPermanentAPIError(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// backoffDelay computes one retry delay:
// base * 2^attempt * (0.5 + jitter/2), jitter in [0,1).
func backoffDelay(baseSeconds, attempt int, jitter float64) time.Duration {
	backoff := float64(baseSeconds) * math.Pow(2, float64(attempt))
	factor := 0.5 + jitter*0.5
	return time.Duration(backoff * factor * float64(time.Second))
}

// validateResponse classifies structural problems in a response.
func validateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	var buf bytes.Buffer
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			buf.WriteString(part.Text)
		}
	}
	return buf.String()
}

// responseImage returns the first inline image of the first candidate.
func responseImage(resp *genai.GenerateContentResponse) *genai.Blob {
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

// renderPrompt folds the rendering constraints into the prompt text.
func renderPrompt(req generation.ImageRequest) string {
	prompt := req.Prompt
	if req.AspectRatio != "" {
		prompt += fmt.Sprintf("\n\nAspect ratio: %s.", req.AspectRatio)
	}
	if req.Resolution != "" {
		prompt += fmt.Sprintf(" Target resolution: %s.", req.Resolution)
	}
	return prompt
}

// mimeTypeOf guesses the MIME type from the file extension, defaulting
// to PNG.
func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/png"
}
