// Package pipeline runs the fetch, parse, enrich, merge and publish cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/galois26/event-ingester/internal/enrich"
	"github.com/galois26/event-ingester/internal/listing"
	"github.com/galois26/event-ingester/internal/metrics"
	"github.com/galois26/event-ingester/internal/model"
	"github.com/galois26/event-ingester/internal/postprocess"
	"github.com/galois26/event-ingester/internal/source"
)

var (
	ErrEmptyListing  = errors.New("pipeline: listing produced no events")
	ErrCycleInFlight = errors.New("pipeline: previous cycle still running")
)

// Publisher persists a finished artifact, replacing the previous one.
type Publisher interface {
	Save(a model.Artifact) error
}

type Options struct {
	Window      model.Window
	ChunkSize   int           // events per enrichment call, <= 0 sends the whole batch
	MinInterval time.Duration // minimum spacing between enrichment calls
	Verbose     bool
}

// Pipeline owns the only writer of the published artifact. Cycles never overlap.
type Pipeline struct {
	src      source.Source
	enricher enrich.Enricher
	pub      Publisher
	metrics  *metrics.Metrics
	opts     Options
	limiter  *rate.Limiter

	now     func() time.Time
	newID   func() string
	running atomic.Bool
}

func New(src source.Source, enricher enrich.Enricher, pub Publisher, m *metrics.Metrics, opts Options) *Pipeline {
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Pipeline{
		src:      src,
		enricher: enricher,
		pub:      pub,
		metrics:  m,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Refresh runs one cycle and returns the number of events published. On any
// error nothing is written and the previous artifact stays authoritative.
// A call made while another cycle is running returns ErrCycleInFlight at once.
func (p *Pipeline) Refresh(ctx context.Context) (int, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.metrics.ObserveCycle(metrics.ResultSkipped, 0)
		return 0, ErrCycleInFlight
	}
	defer p.running.Store(false)

	start := p.now()
	id := p.newID()
	n, result, err := p.cycle(ctx, id, start)
	p.metrics.ObserveCycle(result, p.now().Sub(start))
	if err != nil {
		log.Printf("[pipeline] cycle %s aborted (%s): %v", id, result, err)
		return 0, err
	}
	log.Printf("[pipeline] cycle %s published %d events in %s", id, n, p.now().Sub(start).Truncate(time.Millisecond))
	return n, nil
}

func (p *Pipeline) cycle(ctx context.Context, id string, start time.Time) (int, string, error) {
	page, err := p.src.Fetch(ctx)
	if err != nil {
		return 0, metrics.ResultFetchError, err
	}
	p.step(id, "fetch", start)

	raw := listing.Parse(page, p.opts.Window)
	if len(raw) == 0 {
		return 0, metrics.ResultEmpty, ErrEmptyListing
	}
	p.step(id, fmt.Sprintf("parse (%d rows)", len(raw)), start)

	classes, err := p.classify(ctx, raw)
	if err != nil {
		return 0, metrics.ResultEnrichError, err
	}
	p.step(id, "enrich", start)

	events := postprocess.Merge(raw, classes)
	a := model.Artifact{
		UpdatedAt: p.now().UTC(),
		CycleID:   id,
		Count:     len(events),
		Events:    events,
	}
	if err := p.pub.Save(a); err != nil {
		return 0, metrics.ResultStoreError, err
	}
	p.metrics.Published(a.Count, a.UpdatedAt)
	return a.Count, metrics.ResultOK, nil
}

// classify enriches raw in sequential chunks. Every chunk result is aligned to
// its chunk length so indices stay positional across chunks. One failed chunk
// fails the whole batch.
func (p *Pipeline) classify(ctx context.Context, raw []model.RawEvent) ([]model.Classification, error) {
	size := p.opts.ChunkSize
	if size <= 0 || size > len(raw) {
		size = len(raw)
	}
	out := make([]model.Classification, 0, len(raw))
	for lo := 0; lo < len(raw); lo += size {
		hi := min(lo+size, len(raw))
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		inputs := make([]model.EnrichInput, 0, hi-lo)
		for _, r := range raw[lo:hi] {
			inputs = append(inputs, r.Input())
		}
		got, err := p.enricher.Classify(ctx, inputs)
		p.metrics.Chunk(err == nil)
		if err != nil {
			return nil, fmt.Errorf("enrich events %d-%d of %d: %w", lo+1, hi, len(raw), err)
		}
		if len(got) != len(inputs) {
			log.Printf("[pipeline] enrich events %d-%d: %d results for %d inputs", lo+1, hi, len(got), len(inputs))
		}
		out = append(out, align(got, len(inputs))...)
	}
	return out, nil
}

func align(c []model.Classification, n int) []model.Classification {
	out := make([]model.Classification, n)
	copy(out, c)
	return out
}

func (p *Pipeline) step(id, what string, start time.Time) {
	if p.opts.Verbose {
		log.Printf("[pipeline] cycle %s: %s done at +%s", id, what, p.now().Sub(start).Truncate(time.Millisecond))
	}
}

// Run fires a cycle immediately and then every interval until ctx is done.
// Cycle errors are logged by Refresh and never stop the loop. A tick that
// arrives while a cycle runs is held by the ticker and fires right after it.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) {
	_, _ = p.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[pipeline] stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			_, _ = p.Refresh(ctx)
		}
	}
}
