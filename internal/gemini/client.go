package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finbot-dev/finbot/internal/extract"
	"github.com/finbot-dev/finbot/internal/model"
)

// DefaultEndpoint is the public Generative Language API base URL.
const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrNoTransaction means the model read the utterance as something other than a transaction.
var ErrNoTransaction = errors.New("utterance is not a transaction")

// Options configures a Client.
type Options struct {
	APIKey        string
	Model         string
	Endpoint      string
	Retries       int
	RetryDelay    time.Duration
	MinConfidence int // 0-100; lower answers are treated as no transaction
	HTTPClient    *http.Client
}

// Client talks to the Gemini generateContent API.
type Client struct {
	opts Options
	http *http.Client
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// transactionJSON is the shape the extraction prompt asks the model to answer with.
type transactionJSON struct {
	Type        string          `json:"type"`
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Confidence  int             `json:"confidence"`
}

// Extract implements extract.Backend.
func (c *Client) Extract(ctx context.Context, utterance string, vocabulary []string) (extract.AIResult, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: extractionPrompt(utterance, vocabulary, time.Now())}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			Temperature:      0.1,
			MaxOutputTokens:  300,
		},
	}

	text, err := c.generate(ctx, req)
	if err != nil {
		return extract.AIResult{}, err
	}

	var tj transactionJSON
	if err := json.Unmarshal([]byte(text), &tj); err != nil {
		return extract.AIResult{}, fmt.Errorf("decoding model answer: %w", err)
	}
	if tj.Type == "none" || tj.Confidence < c.opts.MinConfidence {
		return extract.AIResult{}, ErrNoTransaction
	}

	res := extract.AIResult{
		Amount:      strings.Trim(string(tj.Amount), "\" "),
		Category:    tj.Category,
		Date:        tj.Date,
		Description: tj.Description,
	}
	switch tj.Type {
	case "income":
		res.Kind = model.KindIncome
	case "expense":
		res.Kind = model.KindExpense
	}
	return res, nil
}

// Ask answers a free-form personal finance question.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: questionPrompt(question)}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 500,
		},
	}
	return c.generate(ctx, req)
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.opts.RetryDelay):
			}
		}
		text, err := c.post(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("gemini failed after %d attempts: %w", c.opts.Retries+1, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.opts.Endpoint, "/"), c.opts.Model, url.QueryEscape(c.opts.APIKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini response has no candidates")
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}
