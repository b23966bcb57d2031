// Package analysis sends selected packets to the Claude messages API for an
// on-demand security review. The Analyzer makes one call per packet; the
// Dispatcher fans submissions out and keeps only the newest request's result.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/sensor.watch/internal/httputil"
	"github.com/banshee-data/sensor.watch/internal/telemetry"
)

const (
	// DefaultEndpoint is the Claude messages API URL.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"

	// DefaultModel and DefaultMaxTokens match the review depth the packet
	// dashboard was tuned for.
	DefaultModel     = "claude-3-sonnet-20240229"
	DefaultMaxTokens = 1000

	apiVersion = "2023-06-01"
)

// AnalysisError reports a failed analysis attempt: transport trouble, a
// non-200 status, or a response without usable content.
type AnalysisError struct {
	Op  string
	Err error
}

func (e *AnalysisError) Error() string { return fmt.Sprintf("analysis %s: %v", e.Op, e.Err) }
func (e *AnalysisError) Unwrap() error { return e.Err }

// Prompt renders the security-review request for one packet: the packet as
// an indented key/value document followed by the three questions the review
// answers.
func Prompt(rec telemetry.PacketRecord) (string, error) {
	doc, err := json.MarshalIndent(rec.Dict(), "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`Analyze this network packet for potential security concerns:
%s

Please provide:
1. A security assessment
2. Any suspicious patterns or anomalies
3. Recommended actions if concerns are found`, doc), nil
}

// Config carries the Analyzer's endpoint settings. Zero values fall back to
// the package defaults; only APIKey has no default.
type Config struct {
	Client    httputil.HTTPClient
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
}

// Analyzer is a client for the Claude messages endpoint.
type Analyzer struct {
	client    httputil.HTTPClient
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
}

// NewAnalyzer builds an Analyzer, filling unset Config fields with defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.Client == nil {
		cfg.Client = httputil.NewStandardClient(nil)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Analyzer{
		client:    cfg.Client,
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Analyze reviews one packet and returns the first content block's text. All
// failure shapes come back as an *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, rec telemetry.PacketRecord) (string, error) {
	prompt, err := Prompt(rec)
	if err != nil {
		return "", &AnalysisError{Op: "prompt", Err: err}
	}

	payload, err := json.Marshal(messageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", &AnalysisError{Op: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &AnalysisError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &AnalysisError{Op: "call", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &AnalysisError{Op: "call", Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var decoded messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &AnalysisError{Op: "decode response", Err: err}
	}
	if len(decoded.Content) == 0 || decoded.Content[0].Text == "" {
		return "", &AnalysisError{Op: "decode response", Err: errors.New("response carried no content")}
	}
	return decoded.Content[0].Text, nil
}
