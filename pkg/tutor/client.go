package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ercanvas/pkg/buildinfo"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/httputil"
	"github.com/matzehuels/ercanvas/pkg/observability"
)

// Defaults for [NewClient].
const (
	DefaultEndpoint       = "https://generativelanguage.googleapis.com"
	DefaultFastModel      = "gemini-3-flash-preview"
	DefaultReasoningModel = "gemini-3-pro-preview"
	DefaultAttempts       = 3
	DefaultRetryDelay     = time.Second
)

// Client is a [Service] backed by the Gemini generateContent API.
// Scenario, SQL and hint requests use the fast model; evaluations use the
// reasoning model. A Client is safe for concurrent use.
type Client struct {
	http           *http.Client
	endpoint       string
	apiKey         string
	fastModel      string
	reasoningModel string
	language       string
	attempts       int
	delay          time.Duration
	logger         *log.Logger
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithEndpoint sets the API base URL.
func WithEndpoint(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.endpoint = strings.TrimRight(u, "/")
		}
	}
}

// WithModels sets the fast and reasoning model names. Empty names keep the
// defaults.
func WithModels(fast, reasoning string) ClientOption {
	return func(c *Client) {
		if fast != "" {
			c.fastModel = fast
		}
		if reasoning != "" {
			c.reasoningModel = reasoning
		}
	}
}

// WithLanguage sets the language generated text is written in.
func WithLanguage(lang string) ClientOption {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// WithRetry sets how many times transient failures are attempted and the
// initial backoff.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		if delay > 0 {
			c.delay = delay
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Gemini client authenticated with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		http:           httputil.NewHTTPClient(0),
		endpoint:       DefaultEndpoint,
		apiKey:         apiKey,
		fastModel:      DefaultFastModel,
		reasoningModel: DefaultReasoningModel,
		language:       DefaultLanguage,
		attempts:       DefaultAttempts,
		delay:          DefaultRetryDelay,
		logger:         log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateScenario writes a new case study.
func (c *Client) GenerateScenario(ctx context.Context, d Difficulty) (string, error) {
	if _, err := ParseDifficulty(string(d)); err != nil {
		return "", err
	}
	return c.generate(ctx, OpScenario, c.fastModel, scenarioPrompt(d, c.language), nil)
}

// EvaluateModel grades m against its case study. A model without entities
// is rejected before any request is made.
func (c *Client) EvaluateModel(ctx context.Context, m diagram.Model) (Evaluation, error) {
	if err := requireEntities(m); err != nil {
		return Evaluation{}, err
	}
	text, err := c.generate(ctx, OpEvaluate, c.reasoningModel, evaluatePrompt(m, c.language), evaluationSchema)
	if err != nil {
		return Evaluation{}, err
	}
	return parseEvaluation(text)
}

// GenerateSQL drafts DDL for m in dialect d.
func (c *Client) GenerateSQL(ctx context.Context, m diagram.Model, d Dialect) (string, error) {
	if err := requireEntities(m); err != nil {
		return "", err
	}
	if d == "" {
		d = MySQL
	}
	text, err := c.generate(ctx, OpSQL, c.fastModel, sqlPrompt(m, d, c.language), nil)
	if stderrors.Is(err, errEmptyText) {
		return sqlFallback(d), nil
	}
	if err != nil {
		return "", err
	}
	return stripFences(text), nil
}

// GuidedHint returns a short nudge towards the next modeling step. An empty
// reply yields [FallbackHint].
func (c *Client) GuidedHint(ctx context.Context, m diagram.Model) (string, error) {
	text, err := c.generate(ctx, OpHint, c.fastModel, hintPrompt(m, c.language), nil)
	if stderrors.Is(err, errEmptyText) {
		return FallbackHint, nil
	}
	return text, err
}

// =============================================================================
// Wire format
// =============================================================================

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
	ResponseSchema   any    `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// text concatenates the parts of the first candidate.
func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) generate(ctx context.Context, op, model, prompt string, schema any) (text string, err error) {
	start := time.Now()
	observability.Tutor().OnRequestStart(ctx, op)
	defer func() {
		observability.Tutor().OnRequestComplete(ctx, op, time.Since(start), err)
		if err != nil {
			c.logger.Warn("tutor request failed", "op", op, "model", model, "err", err)
		} else {
			c.logger.Debug("tutor request", "op", op, "model", model, "duration", time.Since(start).Round(time.Millisecond))
		}
	}()

	if c.apiKey == "" {
		return "", errors.New(errors.ErrCodeUnauthorized, "no Gemini API key configured")
	}

	if err := errors.ValidateURL(c.endpoint); err != nil {
		return "", err
	}

	body := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
	if schema != nil {
		body.GenerationConfig = &generationConfig{ResponseMIMEType: "application/json", ResponseSchema: schema}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encode request")
	}

	var resp generateResponse
	policy := httputil.Policy{
		Attempts: c.attempts,
		Delay:    c.delay,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			c.logger.Debug("retrying tutor request", "op", op, "attempt", attempt, "wait", wait, "err", err)
		},
	}
	err = httputil.Retry(ctx, policy, func() error {
		return c.post(ctx, model, payload, &resp)
	})
	if err != nil {
		return "", classify(ctx, err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", errors.New(errors.ErrCodeBadResponse, "request blocked: %s", resp.PromptFeedback.BlockReason)
	}
	text = resp.text()
	if text == "" {
		return "", errors.Wrap(errors.ErrCodeBadResponse, errEmptyText, "empty response from %s", model)
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, model string, payload []byte, out *generateResponse) error {
	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "POST %s", model)}
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrCodeBadResponse, err, "decode response")
	}
	return nil
}

// classify maps transport failures onto error codes.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCodeTimeout, err, "request cancelled")
	}
	var se *httputil.StatusError
	if stderrors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests:
			return errors.Wrap(errors.ErrCodeQuotaExceeded,
				&errors.QuotaExceededError{RetryAfter: se.RetryAfter, Message: se.Body}, "text service quota exceeded")
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return errors.Wrap(errors.ErrCodeUnauthorized, se, "text service rejected credentials")
		case se.Code >= 500:
			return errors.Wrap(errors.ErrCodeNetwork, se, "text service unavailable")
		default:
			return errors.Wrap(errors.ErrCodeBadResponse, se, "text service rejected request")
		}
	}
	if errors.GetCode(err) != "" {
		return err
	}
	return errors.Wrap(errors.ErrCodeNetwork, err, "text service request failed")
}

// parseEvaluation decodes the structured evaluation text. Scores outside
// 0..100 are clamped.
func parseEvaluation(text string) (Evaluation, error) {
	var ev struct {
		Score    *float64 `json:"score"`
		Feedback string   `json:"feedback"`
		Details  Details  `json:"details"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &ev); err != nil {
		return Evaluation{}, errors.Wrap(errors.ErrCodeBadResponse, err, "evaluation is not valid JSON")
	}
	if ev.Score == nil {
		return Evaluation{}, errors.New(errors.ErrCodeBadResponse, "evaluation has no score")
	}
	score := int(*ev.Score + 0.5)
	return Evaluation{
		Score:    min(max(score, 0), 100),
		Feedback: ev.Feedback,
		Details:  ev.Details,
	}, nil
}

var _ Service = (*Client)(nil)

// errEmptyText marks a reply without any text.
var errEmptyText = stderrors.New("empty text")
