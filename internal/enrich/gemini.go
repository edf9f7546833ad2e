package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/galois26/event-ingester/internal/config"
	"github.com/galois26/event-ingester/internal/model"
	"github.com/galois26/event-ingester/internal/util"
)

// Gemini classifies events with the Gemini generateContent API.
type Gemini struct {
	cfg   config.EnrichConfig
	httpc *http.Client
}

// NewGemini builds a client from cfg. A nil httpc gets a client with cfg.Timeout.
func NewGemini(cfg config.EnrichConfig, httpc *http.Client) *Gemini {
	if httpc == nil {
		to := cfg.Timeout
		if to == 0 {
			to = 60 * time.Second
		}
		httpc = util.NewHTTPClient(to)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gemini{cfg: cfg, httpc: httpc}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Classify sends all items in a single request.
func (g *Gemini) Classify(ctx context.Context, items []model.EnrichInput) ([]model.Classification, error) {
	if g.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if len(items) == 0 {
		return []model.Classification{}, nil
	}

	prompt, err := buildPrompt(items)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      g.cfg.Temperature,
			MaxOutputTokens:  g.cfg.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	var text string
	err = util.Retry(ctx, "gemini", g.cfg.MaxRetries, g.cfg.Backoff, 8*time.Second, func() error {
		t, err := g.generate(ctx, endpoint, body)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	classes, err := Decode(text)
	if err != nil {
		return nil, err
	}
	if len(classes) != len(items) {
		log.Printf("[gemini] got %d classifications for %d events", len(classes), len(items))
	}
	return classes, nil
}

// generate performs one request. Rate limits, 5xx and transport errors are
// retryable; any other failure is permanent.
func (g *Gemini) generate(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", util.Permanent(fmt.Errorf("create gemini request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("gemini request failed: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", util.Permanent(fmt.Errorf("gemini API error %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", util.Permanent(fmt.Errorf("decode gemini response: %w", err))
	}
	if gr.Error != nil {
		return "", util.Permanent(fmt.Errorf("gemini API error: %s", gr.Error.Message))
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", util.Permanent(ErrEmptyResponse)
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func buildPrompt(items []model.EnrichInput) (string, error) {
	list, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal enrich items: %w", err)
	}
	return fmt.Sprintf(`You classify electronic music events from a listings page. Each input has the raw "title" from the listing, which may mix the party brand or series with the artist lineup, plus its venue, area and genres.

For every input, in the same order, return an object with exactly these fields:
- "name": the brand, series or headliner the event is known by (never empty)
- "artists": the remaining lineup as a comma separated string, or "" if none
- "type": one of "pool", "outdoor", "night", "festival", "cruise"

Respond with ONLY a JSON array of exactly %d objects, no other text.

Inputs:
%s`, len(items), list), nil
}
