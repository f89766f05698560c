// Package pipeline drives searches, pagination and thumbnail fetches. Work
// is executed by a worker pool while all state visible to callers is only
// ever mutated by the consumer calling Tick.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlexGustafsson/metube/internal/config"
	"github.com/AlexGustafsson/metube/internal/metrics"
	"github.com/AlexGustafsson/metube/internal/thumbnail"
	"github.com/AlexGustafsson/metube/internal/transport"
	"github.com/AlexGustafsson/metube/internal/workqueue"
	"github.com/AlexGustafsson/metube/internal/youtube"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrSearchInProgress = errors.New("search in progress")
	ErrNoMorePages      = errors.New("no more pages")
	ErrNotStarted       = errors.New("pipeline not started")
	ErrClosed           = errors.New("pipeline closed")
	ErrSearchPanicked   = errors.New("search panicked")
)

type Mode int

const (
	// ModeNew replaces all results.
	ModeNew Mode = iota
	// ModeAppending appends the next page to the results.
	ModeAppending
)

func (m Mode) String() string {
	switch m {
	case ModeNew:
		return "new"
	case ModeAppending:
		return "appending"
	default:
		return "unknown"
	}
}

// Result is a result in the results list. Thumbnail is set once the
// thumbnail has been decoded and is cleared if it is evicted from the cache.
type Result struct {
	youtube.Result
	Thumbnail thumbnail.Texture
}

type Status struct {
	SearchInProgress    bool
	LastSearchSucceeded bool
	// Offline is set when a search fails to reach YouTube. It stays set until
	// a later fetch succeeds.
	Offline     bool
	ResultCount int
}

type Options struct {
	// Sender sends requests. Defaults to a transport client configured from
	// the config.
	Sender  youtube.Sender
	Decoder thumbnail.Decoder
	// Now returns the current time. Defaults to time.Now.
	Now     func() time.Time
	Metrics *metrics.Metrics
}

// completion is the outcome of a search job.
type completion struct {
	id    uuid.UUID
	mode  Mode
	page  *youtube.Page
	err   error
	taken time.Duration
}

// Pipeline holds the state of the active query. Except for Status, its
// methods must be called from a single goroutine.
type Pipeline struct {
	client     *youtube.SearchClient
	pool       *workqueue.Pool
	thumbnails *thumbnail.Queue
	cache      *thumbnail.Cache
	decoder    thumbnail.Decoder
	limiter    *rate.Limiter
	metrics    *metrics.Metrics

	started bool
	closed  bool

	// searching is set while a search job is outstanding. It is cleared by the
	// consumer once the job's outcome has been merged.
	searching atomic.Bool

	// inbox is written by workers and drained by Tick.
	inboxMutex        sync.Mutex
	completions       []completion
	failedThumbnails  []string
	fetchedThumbnails atomic.Bool

	// Owned by the consumer.
	query         youtube.Query
	searchID      uuid.UUID
	continuation  string
	results       []*Result
	pending       map[string]struct{}
	evicted       map[string]struct{}
	lastSucceeded atomic.Bool
	offline       atomic.Bool
	resultCount   atomic.Int64
}

func New(cfg *config.Config, options *Options) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if options == nil {
		options = &Options{}
	}

	m := options.Metrics
	if m == nil {
		m = metrics.New()
	}

	now := options.Now
	if now == nil {
		now = time.Now
	}

	sender := options.Sender
	if sender == nil {
		transportConfig := cfg.Transport
		if transportConfig == nil {
			transportConfig = config.DefaultConfig().Transport
		}

		client, err := transport.NewClient(&transport.Options{
			MaxBodyBytes:      transportConfig.MaxBodyBytes,
			ResolverCacheSize: transportConfig.ResolverCacheSize,
			IOTimeout:         transportConfig.IOTimeout,
			Metrics:           m,
		})
		if err != nil {
			return nil, err
		}
		sender = client
	}

	thumbnailConfig := cfg.Thumbnail
	if thumbnailConfig == nil {
		thumbnailConfig = config.DefaultConfig().Thumbnail
	}

	decoder := options.Decoder
	if decoder == nil {
		decoder = &thumbnail.ImageDecoder{MaxWidth: thumbnailConfig.MaxWidth}
	}

	limit := rate.Inf
	if thumbnailConfig.RateLimit > 0 {
		limit = rate.Limit(thumbnailConfig.RateLimit)
	}

	return &Pipeline{
		client: youtube.NewSearchClient(sender, &youtube.SearchClientOptions{
			Host:                 cfg.YouTube.Host,
			UserAgent:            cfg.YouTube.UserAgent,
			ClientVersion:        cfg.YouTube.ClientVersion,
			VideoThumbnailHost:   cfg.YouTube.VideoThumbnailHost,
			ChannelThumbnailHost: cfg.YouTube.ChannelThumbnailHost,
		}),
		pool:       workqueue.New(cfg.Workers, m),
		thumbnails: thumbnail.NewQueue(),
		cache: thumbnail.NewCache(&thumbnail.CacheOptions{
			TTL:     thumbnailConfig.TTL,
			Now:     now,
			Metrics: m,
		}),
		decoder: decoder,
		limiter: rate.NewLimiter(limit, max(thumbnailConfig.Burst, 1)),
		metrics: m,

		completions:      make([]completion, 0),
		failedThumbnails: make([]string, 0),

		results: make([]*Result, 0),
		pending: make(map[string]struct{}),
		evicted: make(map[string]struct{}),
	}, nil
}

// Start starts the workers. Jobs run with ctx, cancelling it aborts
// outstanding fetches.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.closed {
		return ErrClosed
	}
	if err := p.pool.Start(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Search starts a new search, discarding all current results. Only one
// search may be outstanding at a time.
func (p *Pipeline) Search(query youtube.Query) error {
	if err := p.ready(); err != nil {
		return err
	}

	if !p.searching.CompareAndSwap(false, true) {
		return ErrSearchInProgress
	}

	p.query = query
	p.searchID = uuid.New()
	p.continuation = ""
	p.results = make([]*Result, 0)
	p.evicted = make(map[string]struct{})
	p.resultCount.Store(0)

	id := p.searchID
	slog.Debug("Starting search", slog.String("search", id.String()), slog.String("query", query.Text), slog.String("sort", query.Sort.String()), slog.String("media", query.Media.String()))

	return p.enqueueSearch(func(ctx context.Context) (*youtube.Page, error) {
		return p.client.Search(ctx, query)
	}, id, ModeNew)
}

// LoadMore requests the next page of the active query. The page is appended
// to the current results.
func (p *Pipeline) LoadMore() error {
	if err := p.ready(); err != nil {
		return err
	}

	if p.continuation == "" {
		return ErrNoMorePages
	}

	if !p.searching.CompareAndSwap(false, true) {
		return ErrSearchInProgress
	}

	token := p.continuation
	allowShorts := p.query.AllowShorts
	id := p.searchID
	slog.Debug("Loading more results", slog.String("search", id.String()))

	return p.enqueueSearch(func(ctx context.Context) (*youtube.Page, error) {
		return p.client.Continue(ctx, token, allowShorts)
	}, id, ModeAppending)
}

func (p *Pipeline) enqueueSearch(fetch func(ctx context.Context) (*youtube.Page, error), id uuid.UUID, mode Mode) error {
	ok := p.pool.Enqueue(workqueue.NewJob("search", func(ctx context.Context) {
		start := time.Now()
		var page *youtube.Page
		var err error

		// The outcome is always posted so that the search is marked finished
		defer func() {
			if recovered := recover(); recovered != nil {
				page = nil
				err = fmt.Errorf("%w: %v", ErrSearchPanicked, recovered)
			}

			p.inboxMutex.Lock()
			p.completions = append(p.completions, completion{id: id, mode: mode, page: page, err: err, taken: time.Since(start)})
			p.inboxMutex.Unlock()
		}()

		page, err = fetch(ctx)
	}))
	if !ok {
		p.searching.Store(false)
		return ErrClosed
	}
	return nil
}

// Tick merges finished searches into the results, attaches decoded
// thumbnails and evicts at most one expired thumbnail.
func (p *Pipeline) Tick() {
	if p.closed {
		return
	}

	p.inboxMutex.Lock()
	completions := p.completions
	failed := p.failedThumbnails
	p.completions = make([]completion, 0)
	p.failedThumbnails = make([]string, 0)
	p.inboxMutex.Unlock()

	for _, outcome := range completions {
		p.merge(outcome)
	}

	for _, id := range failed {
		delete(p.pending, id)
	}

	if p.fetchedThumbnails.Swap(false) {
		p.offline.Store(false)
	}

	for _, fetched := range p.thumbnails.Drain() {
		p.ingest(fetched.ID, fetched.Data)
	}

	if id, ok := p.cache.EvictOne(); ok {
		p.attach(id, nil)
		p.evicted[id] = struct{}{}
	}
}

func (p *Pipeline) merge(outcome completion) {
	defer p.searching.Store(false)

	logger := slog.With(slog.String("search", outcome.id.String()), slog.String("mode", outcome.mode.String()))

	if outcome.err != nil {
		logger.Error("Search failed", slog.Any("error", outcome.err))
		p.metrics.Searches.WithLabelValues(outcome.mode.String(), "failure").Inc()
		p.lastSucceeded.Store(false)
		if isOffline(outcome.err) {
			p.offline.Store(true)
		}
		return
	}

	p.metrics.Searches.WithLabelValues(outcome.mode.String(), "success").Inc()
	p.lastSucceeded.Store(true)
	p.offline.Store(false)
	p.continuation = outcome.page.Continuation

	for _, result := range outcome.page.Results {
		entry := &Result{Result: result}
		p.results = append(p.results, entry)
		p.metrics.Results.Inc()
		p.requestThumbnail(entry)
	}
	p.resultCount.Store(int64(len(p.results)))

	logger.Debug("Merged search results", slog.Int("results", len(outcome.page.Results)), slog.Int("dropped", outcome.page.Dropped), slog.Bool("more", outcome.page.Continuation != ""), slog.Duration("took", outcome.taken))
}

// requestThumbnail attaches a cached thumbnail or enqueues a fetch. At most
// one fetch per id is outstanding.
func (p *Pipeline) requestThumbnail(result *Result) {
	if result.ThumbnailPath == "" {
		return
	}
	delete(p.evicted, result.ID)

	if texture, ok := p.cache.Lookup(result.ID); ok {
		result.Thumbnail = texture
		return
	}

	if _, ok := p.pending[result.ID]; ok {
		return
	}
	p.pending[result.ID] = struct{}{}

	target := result.Result
	ok := p.pool.Enqueue(workqueue.NewJob("thumbnail", func(ctx context.Context) {
		if err := p.limiter.Wait(ctx); err != nil {
			p.failThumbnail(target.ID)
			return
		}

		data, err := p.client.Thumbnail(ctx, target)
		if err != nil {
			slog.Debug("Failed to fetch thumbnail", slog.String("id", target.ID), slog.Any("error", err))
			p.failThumbnail(target.ID)
			return
		}

		p.fetchedThumbnails.Store(true)
		p.thumbnails.Push(thumbnail.Thumbnail{ID: target.ID, Data: data})
	}))
	if !ok {
		delete(p.pending, result.ID)
	}
}

func (p *Pipeline) failThumbnail(id string) {
	p.inboxMutex.Lock()
	defer p.inboxMutex.Unlock()
	p.failedThumbnails = append(p.failedThumbnails, id)
}

func (p *Pipeline) ingest(id string, data []byte) {
	delete(p.pending, id)

	texture, err := p.decoder.Decode(data)
	if err != nil {
		slog.Warn("Failed to decode thumbnail", slog.String("id", id), slog.Any("error", err))
		return
	}

	// Any previous texture of id is released by the cache
	p.cache.Store(id, texture)
	p.attach(id, texture)
}

// attach sets the thumbnail of all results with the given id.
func (p *Pipeline) attach(id string, texture thumbnail.Texture) {
	for _, result := range p.results {
		if result.ID == id {
			result.Thumbnail = texture
		}
	}
}

// Touch marks the thumbnail of id as in use, restarting its timer. A
// thumbnail that was evicted while its result is still listed is fetched
// again.
func (p *Pipeline) Touch(id string) {
	if p.closed || p.cache.Touch(id) {
		return
	}

	if _, ok := p.evicted[id]; !ok {
		return
	}

	for _, result := range p.results {
		if result.ID == id {
			p.requestThumbnail(result)
			return
		}
	}
}

// Results returns a snapshot of the results list.
func (p *Pipeline) Results() []Result {
	results := make([]Result, len(p.results))
	for i, result := range p.results {
		results[i] = *result
	}
	return results
}

// Query returns the active query.
func (p *Pipeline) Query() youtube.Query {
	return p.query
}

// HasMore reports whether there are more pages of the active query.
func (p *Pipeline) HasMore() bool {
	return p.continuation != ""
}

// Status returns the state of the pipeline. It is safe to call from any
// goroutine.
func (p *Pipeline) Status() Status {
	return Status{
		SearchInProgress:    p.searching.Load(),
		LastSearchSucceeded: p.lastSucceeded.Load(),
		Offline:             p.offline.Load(),
		ResultCount:         int(p.resultCount.Load()),
	}
}

// Close stops the workers, waiting for running jobs, and releases all
// thumbnails. Queued jobs are dropped.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true

	p.pool.Stop()
	p.cache.Close()
	for _, result := range p.results {
		result.Thumbnail = nil
	}
	p.thumbnails.Drain()
}

func (p *Pipeline) ready() error {
	if p.closed {
		return ErrClosed
	}
	if !p.started {
		return ErrNotStarted
	}
	return nil
}

// isOffline reports whether err means YouTube could not be reached at all.
func isOffline(err error) bool {
	return errors.Is(err, transport.ErrResolveFailed) ||
		errors.Is(err, transport.ErrConnectFailed) ||
		errors.Is(err, transport.ErrTLSHandshakeFailed)
}
