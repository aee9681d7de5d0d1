package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/envutil"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

// Client is the completion and embedding surface the rest of the backend depends on.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// GenerateJSON asks for a structured completion and decodes it. A reply that is
	// not a JSON object is an error, never an empty result.
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	EmbedModel  string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float32
}

// ConfigFromEnv reads OPENAI_* variables.
func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		APIKey:      envutil.String("OPENAI_API_KEY", "", log),
		BaseURL:     strings.TrimRight(envutil.String("OPENAI_BASE_URL", "", log), "/"),
		Model:       envutil.String("OPENAI_MODEL", goopenai.GPT4oMini, log),
		EmbedModel:  envutil.String("OPENAI_EMBED_MODEL", string(goopenai.SmallEmbedding3), log),
		Timeout:     envutil.Duration("OPENAI_TIMEOUT_SECONDS", 60*time.Second, log),
		MaxRetries:  envutil.Int("OPENAI_MAX_RETRIES", 3, log),
		Temperature: float32(envutil.Float("OPENAI_TEMPERATURE", 0.1, log)),
	}
}

type client struct {
	log         *logger.Logger
	metrics     *observability.Metrics
	api         *goopenai.Client
	model       string
	embedModel  string
	maxRetries  int
	temperature float32
	baseBackoff time.Duration
}

func NewClient(log *logger.Logger, metrics *observability.Metrics, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		apiCfg.BaseURL = base
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.GPT4oMini
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = string(goopenai.SmallEmbedding3)
	}
	return &client{
		log:         log.With("service", "OpenAIClient"),
		metrics:     metrics,
		api:         goopenai.NewClientWithConfig(apiCfg),
		model:       model,
		embedModel:  embedModel,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Temperature,
		baseBackoff: time.Second,
	}, nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i, s := range inputs {
		s = strings.TrimSpace(s)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp goopenai.EmbeddingResponse
	err := c.withRetry(ctx, "embed", func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
			Input: clean,
			Model: goopenai.EmbeddingModel(c.embedModel),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("openai embed: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
	}
	if schema != nil {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: jsonSchema(schema),
			},
		}
	} else {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var resp goopenai.ChatCompletionResponse
	err := c.withRetry(ctx, "generate_json", func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai %s: empty completion", schemaName)
	}
	return DecodeObject(resp.Choices[0].Message.Content)
}

// DecodeObject parses a completion body as a JSON object, tolerating a fenced code block.
func DecodeObject(content string) (map[string]any, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, fmt.Errorf("openai: empty JSON body")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("openai: malformed JSON body: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("openai: JSON body is not an object")
	}
	return out, nil
}

func (c *client) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
	start := time.Now()
	backoff := c.baseBackoff
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			break
		}
		err = call(ctx)
		if err == nil || !IsRetryable(err) || attempt == c.maxRetries {
			break
		}
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
		c.log.Warn("openai call failed, retrying", "op", op, "attempt", attempt+1, "sleep", sleep.String(), "error", err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = c.maxRetries
		case <-time.After(sleep):
		}
		if backoff < 8*time.Second {
			backoff *= 2
		}
	}
	c.metrics.ObserveLLM(op, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("openai %s: %w", op, err)
	}
	return nil
}

// IsRetryable reports whether err is a rate limit or server-side failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// transport failures carry no status
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

type jsonSchema map[string]any

func (s jsonSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}
