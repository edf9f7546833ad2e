package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galois26/event-ingester/internal/config"
	"github.com/galois26/event-ingester/internal/model"
)

func testConfig(baseURL string) config.EnrichConfig {
	return config.EnrichConfig{
		BaseURL:         baseURL + "/",
		Model:           "test-model",
		APIKey:          " secret ",
		MaxRetries:      3,
		Backoff:         time.Millisecond,
		Temperature:     0.2,
		MaxOutputTokens: 1024,
	}
}

func replyWith(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(b)
}

var items = []model.EnrichInput{
	{Title: "Bass Church Dom Dolla", Venue: "Toe Jam Backlot", Area: "Miami", Genres: []string{"tech house", "bass"}},
	{Title: "Sunset Cruise", Venue: "Pier 5", Area: "Bayside", Genres: []string{}},
}

func TestGeminiClassify(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(replyWith("```json\n" +
			`[{"name":"Bass Church","artists":"Dom Dolla","type":"night"},{"name":"Sunset Cruise","artists":"","type":"cruise"}]` +
			"\n```")))
	}))
	defer srv.Close()

	g := NewGemini(testConfig(srv.URL), srv.Client())
	classes, err := g.Classify(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, "/models/test-model:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	require.Len(t, gotBody.Contents, 1)
	prompt := gotBody.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Toe Jam Backlot")
	assert.Contains(t, prompt, "exactly 2 objects")
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMIMEType)

	require.Len(t, classes, 2)
	assert.Equal(t, model.Classification{Name: "Bass Church", Artists: "Dom Dolla", Type: model.TypeNight}, classes[0])
	assert.Equal(t, model.TypeCruise, classes[1].Type)
}

func TestGeminiNotConfigured(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.APIKey = "   "
	_, err := NewGemini(cfg, nil).Classify(context.Background(), items)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeminiEmptyBatchSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	classes, err := NewGemini(testConfig(srv.URL), srv.Client()).Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, classes)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGeminiRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(replyWith(`[{"name":"A","artists":"","type":"pool"}]`)))
	}))
	defer srv.Close()

	classes, err := NewGemini(testConfig(srv.URL), srv.Client()).Classify(context.Background(), items[:1])
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, model.TypePool, classes[0].Type)
}

func TestGeminiGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGemini(testConfig(srv.URL), srv.Client()).Classify(context.Background(), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeminiClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := NewGemini(testConfig(srv.URL), srv.Client()).Classify(context.Background(), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiReplyShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		wantLen int
	}{
		{name: "no candidates", body: `{"candidates":[]}`, wantErr: true},
		{name: "api error payload", body: `{"error":{"message":"quota","code":429}}`, wantErr: true},
		{name: "prose reply", body: replyWith("I think these are parties."), wantErr: true},
		{name: "object reply", body: replyWith(`{"name":"A"}`), wantErr: true},
		{name: "short array is not an error", body: replyWith(`[{"name":"A","artists":"","type":"night"}]`), wantLen: 1},
		{name: "not json at all", body: `<html>gateway</html>`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			classes, err := NewGemini(testConfig(srv.URL), srv.Client()).Classify(context.Background(), items)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, classes, tc.wantLen)
		})
	}
}

func TestBuildPromptListsEveryItem(t *testing.T) {
	prompt, err := buildPrompt(items)
	require.NoError(t, err)
	for _, it := range items {
		assert.True(t, strings.Contains(prompt, it.Title), it.Title)
	}
	for _, typ := range []string{"pool", "outdoor", "night", "festival", "cruise"} {
		assert.Contains(t, prompt, `"`+typ+`"`)
	}
}

func TestGeminiDefaultsToSingleAttempt(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "secret")
	t.Setenv(config.EnvSourceURL, "")

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg, err := config.Parse([]byte(`
source:
  url: https://listings.example/events
window:
  start: "2026-03-20"
  end: "2026-03-29"
enrich:
  base_url: ` + srv.URL + `
`))
	require.NoError(t, err)

	_, err = NewGemini(cfg.Enrich, srv.Client()).Classify(context.Background(), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), calls.Load())
}
