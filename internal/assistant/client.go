// Package assistant calls a tenant's hosted retrieval-augmented assistant.
// The assistant already indexes the tenant's uploaded contracts; callers send a
// single user message and receive the model's textual reply.
package assistant

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
	"time"

	"golang.org/x/time/rate"

	"github.com/JaimeStill/ratesheet/pkg/formatting"
)

// DefaultTimeout bounds a call when the caller passes no timeout.
const DefaultTimeout = 5 * time.Minute

const maxErrorBody = 700

var (
	// ErrMissingAPIKey is reported when no API key is configured.
	ErrMissingAPIKey = errors.New("assistant api key not configured")
	// ErrEmptyContent is reported when a 2xx response carries no reply text.
	ErrEmptyContent = errors.New("no content in response")
)

// Config holds the connection settings for the assistant service.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	APIVersion        string
	RequestsPerSecond float64
	Burst             int
	MaxResponseSize   int64
	HTTPClient        *http.Client
}

// Client sends chat requests to the assistant service.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	apiVersion string
	maxBody    int64
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a Client. A zero RequestsPerSecond disables throttling.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		apiVersion: cfg.APIVersion,
		maxBody:    cfg.MaxResponseSize,
		http:       cfg.HTTPClient,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		logger:     logger.With("system", "assistant"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
}

type messageContent struct {
	Content string `json:"content"`
}

type chatResponse struct {
	Message *messageContent `json:"message"`
	Choices []struct {
		Message messageContent `json:"message"`
	} `json:"choices"`
	Content string `json:"content"`
	Usage   struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (r chatResponse) text() string {
	if r.Message != nil && r.Message.Content != "" {
		return r.Message.Content
	}
	if len(r.Choices) > 0 && r.Choices[0].Message.Content != "" {
		return r.Choices[0].Message.Content
	}
	return r.Content
}

// Query sends prompt to the assistant identified by ref and waits at most
// timeout for a reply. An empty ref yields KindUnconfigured without a call.
func (c *Client) Query(ctx context.Context, ref, prompt, section string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	res := Result{Section: section}

	if strings.TrimSpace(ref) == "" {
		res.Kind = KindUnconfigured
		return res
	}
	if c.apiKey == "" {
		res.Kind = KindTransport
		res.Err = ErrMissingAPIKey
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res = c.do(callCtx, ref, prompt, res)

	if res.Kind != KindOK && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		res = Result{Kind: KindTimeout, Section: section, Timeout: timeout, Err: context.DeadlineExceeded}
	}

	c.logger.Info(
		"assistant query",
		"section", section,
		"kind", res.Kind,
		"status", res.StatusCode,
		"bytes", len(res.Content),
		"tokens", res.TokensUsed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return res
}

func (c *Client) do(ctx context.Context, ref, prompt string, res Result) Result {
	if err := c.limiter.Wait(ctx); err != nil {
		res.Kind = KindTransport
		res.Err = fmt.Errorf("rate limit wait: %w", err)
		return res
	}

	payload, err := json.Marshal(chatRequest{
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Model:    c.model,
		Stream:   false,
	})
	if err != nil {
		res.Kind = KindTransport
		res.Err = fmt.Errorf("marshal request: %w", err)
		return res
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/"+ref,
		bytes.NewReader(payload),
	)
	if err != nil {
		res.Kind = KindTransport
		res.Err = fmt.Errorf("create request: %w", err)
		return res
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.apiVersion != "" {
		req.Header.Set("X-Pinecone-API-Version", c.apiVersion)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		res.Kind = KindTransport
		res.Err = fmt.Errorf("send request: %w", err)
		return res
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		res.Kind = KindMalformed
		res.StatusCode = resp.StatusCode
		res.Err = err
		return res
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		res.Kind = KindHTTPError
		res.StatusCode = resp.StatusCode
		res.Body = msg
		res.Err = fmt.Errorf("assistant status %d", resp.StatusCode)
		return res
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		res.Kind = KindMalformed
		res.StatusCode = resp.StatusCode
		res.Err = fmt.Errorf("decode response: %w", err)
		return res
	}

	content := decoded.text()
	if content == "" {
		res.Kind = KindMalformed
		res.StatusCode = resp.StatusCode
		res.Err = ErrEmptyContent
		return res
	}

	res.Kind = KindOK
	res.StatusCode = resp.StatusCode
	res.Content = content
	res.TokensUsed = decoded.Usage.TotalTokens
	return res
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("response exceeds %s", formatting.FormatBytes(c.maxBody, 0))
	}
	return body, nil
}
