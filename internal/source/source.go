package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/galois26/event-ingester/internal/config"
	"github.com/galois26/event-ingester/internal/util"
)

// maxPageBytes caps how much of the listing page is read.
const maxPageBytes = 16 << 20

// Source returns the raw listing document.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (string, error)
}

type httpSource struct {
	cfg    config.SourceConfig
	client *http.Client
}

// NewHTTPSource fetches cfg.URL with a plain GET.
func NewHTTPSource(cfg config.SourceConfig) Source {
	to := cfg.Timeout
	if to == 0 {
		to = 15 * time.Second
	}
	return &httpSource{cfg: cfg, client: util.NewHTTPClient(to)}
}

func (s *httpSource) Name() string { return "listing" }

// Fetch returns the page body. Any non-2xx status is an error.
func (s *httpSource) Fetch(ctx context.Context) (string, error) {
	var page string
	err := util.Retry(ctx, "source", s.cfg.MaxRetries, defaultDur(s.cfg.Backoff, 500*time.Millisecond), 5*time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
		if err != nil {
			return util.Permanent(err)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		if ua := s.cfg.UserAgent; ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%s %d: %s", s.Name(), resp.StatusCode, bodyHead(b, 200))
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return err
		}
		// Error pages from CDNs and APIs come back 200 as JSON or images.
		if mt := mimetype.Detect(b); !strings.HasPrefix(mt.String(), "text/") {
			return util.Permanent(fmt.Errorf("%s: unexpected content %s", s.Name(), mt.String()))
		}
		page = string(b)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", strings.TrimSpace(s.cfg.URL), err)
	}
	log.Printf("[source] fetched %d bytes from %s", len(page), s.cfg.URL)
	return page, nil
}
