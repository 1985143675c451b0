package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"face-gallery/internal/bitmap"
	"face-gallery/internal/database"
	"face-gallery/internal/detector"
	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
	"face-gallery/internal/source"
)

// Defaults used when a Config field is zero.
const (
	DefaultPageSize        = 20
	DefaultConcurrentLimit = 3
	DefaultMaxWidth        = 720
	DefaultMaxHeight       = 1280
	DefaultThumbnailSize   = 200
)

// Per-image outcomes, also used as metric labels. OutcomeTransformError
// covers annotate and thumbnail failures.
const (
	OutcomeSkipped        = "skipped"
	OutcomeSaved          = "saved"
	OutcomeNoFaces        = "no_faces"
	OutcomeDecodeError    = "decode_error"
	OutcomeDetectError    = "detect_error"
	OutcomeTransformError = "transform_error"
	OutcomeSaveError      = "save_error"
	OutcomeCancelled      = "cancelled"
)

var logger = logging.For("pipeline")

// Enumerator pages through candidate images.
type Enumerator interface {
	List(ctx context.Context, pageSize, offset int) ([]source.CandidateImage, error)
}

// Decoder turns a candidate location into an owned pool buffer.
type Decoder interface {
	Decode(ctx context.Context, location string, maxWidth, maxHeight int) (*bitmap.Buffer, error)
}

// Annotator draws face outlines and scales thumbnails.
type Annotator interface {
	Annotate(src *bitmap.Buffer, faces []detector.Face) (*bitmap.Buffer, error)
	Thumbnail(src *bitmap.Buffer, size int) (*bitmap.Buffer, error)
}

// ThumbnailStore writes a thumbnail and returns its durable location.
type ThumbnailStore interface {
	Save(id int64, buf *bitmap.Buffer) (string, error)
}

// MediaStore is the part of database.Store the pipeline writes through.
type MediaStore interface {
	ExistingMediaIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	BatchInsertMedia(ctx context.Context, records []database.MediaRecord) error
}

// Throttle pauses new transforms under memory pressure. WaitIfPaused
// returns false when processing should not resume.
type Throttle interface {
	WaitIfPaused(ctx context.Context) bool
}

// Config holds the tunables of a batch run.
type Config struct {
	PageSize        int
	ConcurrentLimit int
	MaxWidth        int
	MaxHeight       int
	ThumbnailSize   int
	// KeepFaceless persists images without faces instead of dropping them.
	KeepFaceless bool
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.ConcurrentLimit <= 0 {
		c.ConcurrentLimit = DefaultConcurrentLimit
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = DefaultMaxHeight
	}
	if c.ThumbnailSize <= 0 {
		c.ThumbnailSize = DefaultThumbnailSize
	}
	return c
}

// Deps are the collaborators of a Processor. Throttle may be nil.
type Deps struct {
	Pool       *bitmap.Pool
	Source     Enumerator
	Decoder    Decoder
	Detector   detector.Detector
	Annotator  Annotator
	Thumbnails ThumbnailStore
	Store      MediaStore
	Throttle   Throttle
}

// Outcome summarizes a batch run.
type Outcome struct {
	Pages          int           `json:"pages"`
	TotalProcessed int           `json:"totalProcessed"`
	TotalSaved     int           `json:"totalSaved"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

// Event reports the final outcome of one candidate during a run.
type Event struct {
	Page        int
	CandidateID int64
	Outcome     string
	Totals      Outcome
}

// Processor runs batches: it pages through the source, skips candidates
// that already have a media record, transforms the rest under a bounded
// concurrency gate and persists each page with a single batch insert.
type Processor struct {
	cfg  Config
	deps Deps

	running atomic.Bool

	mu    sync.Mutex
	state State

	eventMu    sync.Mutex
	totals     Outcome
	onProgress func(Event)

	progressMu sync.Mutex
}

// New creates a processor.
func New(cfg Config, deps Deps) *Processor {
	return &Processor{cfg: cfg.withDefaults(), deps: deps}
}

// Config returns the effective configuration.
func (p *Processor) Config() Config { return p.cfg }

// SetProgress registers a callback receiving one Event per candidate.
// Calls are serialized. The callback runs without internal locks held, so it
// may call SetProgress or any other Processor method.
func (p *Processor) SetProgress(fn func(Event)) {
	p.eventMu.Lock()
	p.onProgress = fn
	p.eventMu.Unlock()
}

// State returns the current orchestration state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Processor) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	logger.Debug("State -> %s", s)
}

// Running reports whether a run is in progress.
func (p *Processor) Running() bool {
	return p.running.Load()
}

// RunBatch processes pages until the source returns an empty page. It is
// safe to call repeatedly: candidates persisted by earlier runs are skipped.
// Per-image failures are logged and counted; only source, dedup and batch
// insert failures end the run with an error.
func (p *Processor) RunBatch(ctx context.Context) (Outcome, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Outcome{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	metrics.PipelineRunning.Set(1)
	defer metrics.PipelineRunning.Set(0)

	start := time.Now()
	p.eventMu.Lock()
	p.totals = Outcome{}
	p.eventMu.Unlock()

	logger.Info("Batch run started (page size %d, concurrency %d)", p.cfg.PageSize, p.cfg.ConcurrentLimit)

	err := p.run(ctx)

	outcome := p.snapshot()
	outcome.Duration = time.Since(start)

	final := StateDone
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		final = StateCancelled
	default:
		final = StateFailed
	}
	p.setState(final)

	metrics.PipelineRunsTotal.WithLabelValues(final.String()).Inc()
	metrics.PipelineLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.PipelineLastRunDuration.Set(outcome.Duration.Seconds())

	if err != nil {
		logger.Error("Batch run %s after %d pages: %v", final, outcome.Pages, err)
		return outcome, err
	}
	logger.Info("Batch run done: %d pages, %d processed, %d saved, %d skipped in %v",
		outcome.Pages, outcome.TotalProcessed, outcome.TotalSaved, outcome.Skipped, outcome.Duration)
	return outcome, nil
}

func (p *Processor) run(ctx context.Context) error {
	offset := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.setState(StateFetchingPage)
		candidates, err := p.deps.Source.List(ctx, p.cfg.PageSize, offset)
		if err != nil {
			return p.orchestrationError(ctx, StateFetchingPage, err)
		}
		if len(candidates) == 0 {
			return nil
		}
		offset += len(candidates)
		metrics.PipelinePagesTotal.Inc()

		p.setState(StateDeduping)
		toProcess, err := p.dedup(ctx, page, candidates)
		if err != nil {
			return p.orchestrationError(ctx, StateDeduping, err)
		}

		p.setState(StateProcessing)
		results := p.process(ctx, page, toProcess)

		p.setState(StatePersisting)
		if err := p.persist(ctx, page, results); err != nil {
			return err
		}

		p.eventMu.Lock()
		p.totals.Pages = page
		p.eventMu.Unlock()
	}
}

func (p *Processor) orchestrationError(ctx context.Context, state State, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &OrchestrationError{State: state, Err: err}
}

// dedup removes candidates that already have a media record, using one
// lookup for the whole page.
func (p *Processor) dedup(ctx context.Context, page int, candidates []source.CandidateImage) ([]source.CandidateImage, error) {
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	existing, err := p.deps.Store.ExistingMediaIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	toProcess := make([]source.CandidateImage, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := existing[c.ID]; ok {
			p.emit(page, c.ID, OutcomeSkipped)
			continue
		}
		toProcess = append(toProcess, c)
	}
	logger.Debug("Page %d: %d candidates, %d already processed", page, len(candidates), len(candidates)-len(toProcess))
	return toProcess, nil
}

// transformed is the result of one candidate's transform chain. thumb is
// owned by the page until persist releases it.
type transformed struct {
	candidate source.CandidateImage
	thumb     *bitmap.Buffer
}

// process runs every candidate's transform chain, at most ConcurrentLimit
// at a time, and waits for all of them.
func (p *Processor) process(ctx context.Context, page int, candidates []source.CandidateImage) []transformed {
	results := make([]transformed, len(candidates))
	sem := semaphore.NewWeighted(int64(p.cfg.ConcurrentLimit))
	var wg sync.WaitGroup

	for i, c := range candidates {
		if p.deps.Throttle != nil && !p.deps.Throttle.WaitIfPaused(ctx) {
			p.emit(page, c.ID, OutcomeCancelled)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			p.emit(page, c.ID, OutcomeCancelled)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			metrics.PipelineTransformsInFlight.Inc()
			defer metrics.PipelineTransformsInFlight.Dec()

			thumb, outcome := p.transform(ctx, c)
			if thumb == nil {
				p.emit(page, c.ID, outcome)
				return
			}
			results[i] = transformed{candidate: c, thumb: thumb}
		}()
	}
	wg.Wait()

	return results
}

// transform runs decode, detect, annotate and thumbnail for one candidate.
// It returns the thumbnail on success; every other buffer it acquired has
// been released by the time it returns.
func (p *Processor) transform(ctx context.Context, c source.CandidateImage) (*bitmap.Buffer, string) {
	pool := p.deps.Pool

	decoded, err := p.deps.Decoder.Decode(ctx, c.Location, p.cfg.MaxWidth, p.cfg.MaxHeight)
	if err != nil {
		if ctx.Err() != nil {
			return nil, OutcomeCancelled
		}
		logger.Warn("Candidate %d (%s): decode failed: %v", c.ID, c.Location, err)
		return nil, OutcomeDecodeError
	}
	defer pool.Release(decoded)

	detectStart := time.Now()
	faces, err := p.deps.Detector.Detect(ctx, decoded)
	metrics.PipelineStageDuration.WithLabelValues("detect").Observe(time.Since(detectStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, OutcomeCancelled
		}
		logger.Warn("Candidate %d (%s): detection failed: %v", c.ID, c.Location, err)
		return nil, OutcomeDetectError
	}

	if len(faces) == 0 && !p.cfg.KeepFaceless {
		logger.Debug("Candidate %d: no faces", c.ID)
		return nil, OutcomeNoFaces
	}

	annotated, err := p.deps.Annotator.Annotate(decoded, faces)
	if err != nil {
		logger.Warn("Candidate %d: annotate failed: %v", c.ID, err)
		return nil, OutcomeTransformError
	}
	if annotated != decoded {
		defer pool.Release(annotated)
	}

	thumb, err := p.deps.Annotator.Thumbnail(annotated, p.cfg.ThumbnailSize)
	if err != nil {
		logger.Warn("Candidate %d: thumbnail failed: %v", c.ID, err)
		return nil, OutcomeTransformError
	}

	logger.Debug("Candidate %d: %d faces", c.ID, len(faces))
	return thumb, ""
}

// persist saves the page's thumbnails and inserts one media record per
// saved thumbnail in a single batch. All thumbnails are released, including
// when ctx is cancelled, in which case nothing is written.
func (p *Processor) persist(ctx context.Context, page int, results []transformed) error {
	records := make([]database.MediaRecord, 0, len(results))
	var ids []int64
	now := time.Now()

	for _, r := range results {
		if r.thumb == nil {
			continue
		}
		if ctx.Err() != nil {
			p.deps.Pool.Release(r.thumb)
			p.emit(page, r.candidate.ID, OutcomeCancelled)
			continue
		}

		location, err := p.deps.Thumbnails.Save(r.candidate.ID, r.thumb)
		p.deps.Pool.Release(r.thumb)
		if err != nil {
			logger.Warn("Candidate %d: %v", r.candidate.ID, err)
			p.emit(page, r.candidate.ID, OutcomeSaveError)
			continue
		}

		records = append(records, database.MediaRecord{
			ID:                r.candidate.ID,
			SourceLocation:    r.candidate.Location,
			ThumbnailLocation: location,
			CreatedAt:         now,
		})
		ids = append(ids, r.candidate.ID)
	}

	if err := ctx.Err(); err != nil {
		for _, id := range ids {
			p.emit(page, id, OutcomeCancelled)
		}
		return err
	}

	if len(records) > 0 {
		if err := p.deps.Store.BatchInsertMedia(ctx, records); err != nil {
			for _, id := range ids {
				p.emit(page, id, OutcomeSaveError)
			}
			return &PersistenceError{Op: "batch insert media", Err: err}
		}
	}

	for _, id := range ids {
		p.emit(page, id, OutcomeSaved)
	}
	logger.Info("Page %d persisted: %d records", page, len(records))
	return nil
}

// emit records the final outcome of a candidate.
func (p *Processor) emit(page int, id int64, outcome string) {
	metrics.PipelineImagesTotal.WithLabelValues(outcome).Inc()

	p.eventMu.Lock()
	switch outcome {
	case OutcomeSkipped:
		p.totals.Skipped++
	case OutcomeCancelled:
	default:
		p.totals.TotalProcessed++
		switch outcome {
		case OutcomeSaved:
			p.totals.TotalSaved++
		case OutcomeNoFaces:
		default:
			p.totals.Failed++
		}
	}

	fn, totals := p.onProgress, p.totals
	p.eventMu.Unlock()

	if fn != nil {
		p.progressMu.Lock()
		defer p.progressMu.Unlock()
		fn(Event{Page: page, CandidateID: id, Outcome: outcome, Totals: totals})
	}
}

func (p *Processor) snapshot() Outcome {
	p.eventMu.Lock()
	defer p.eventMu.Unlock()
	return p.totals
}
