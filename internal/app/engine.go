package app

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/walletmatch/internal/adapters/mq/queue"
	"github.com/okian/walletmatch/internal/adapters/mq/worker"
	"github.com/okian/walletmatch/internal/adapters/repository"
	"github.com/okian/walletmatch/internal/domain/dedupe"
	"github.com/okian/walletmatch/internal/domain/model"
	"github.com/okian/walletmatch/internal/domain/scoring"
	"github.com/okian/walletmatch/pkg/logger"
	"github.com/okian/walletmatch/pkg/metrics"
)

// Engine defaults.
const (
	DefaultAnchorCap = 1000
	defaultQueueSize = 1024
	maxCapacityHint  = 1 << 20
	progressSteps    = 10
)

// Stats summarizes one inference run.
type Stats struct {
	Profiles int
	Anchors  int
	Scored   int
	Skipped  int
	Elapsed  time.Duration
}

// Result is the ranked score table of a run and its statistics.
type Result struct {
	Table repository.Store
	Stats Stats
}

// Engine enumerates profile pairs and scores each unordered pair once.
//
// For anchor id1 (the first AnchorCap identifiers in dataset order) and
// every other identifier id2, the pair key is id1_id2. The pair is skipped
// when the ledger already holds id1_id2 or id2_id1. The reverse check is
// only sound because Match(a, b) == Match(b, a): whichever direction is
// scored first stands for both. A matcher that is not symmetric would need
// both directions scored.
type Engine struct {
	matcher     scoring.Scorer
	anchorCap   int
	workerCount int
	queueSize   int
	logger      logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMatcher sets the pair scorer.
func WithMatcher(m scoring.Scorer) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithAnchorCap sets how many identifiers act as anchors. Zero or negative
// makes every identifier an anchor.
func WithAnchorCap(n int) EngineOption {
	return func(e *Engine) {
		e.anchorCap = n
	}
}

// WithWorkerCount sets the number of row workers. One scores rows inline.
func WithWorkerCount(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workerCount = n
		}
	}
}

// WithQueueSize bounds the row queue used by the workers.
func WithQueueSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine with the default matcher and anchor cap.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		matcher:     scoring.NewMatcher(),
		anchorCap:   DefaultAnchorCap,
		workerCount: 1,
		queueSize:   defaultQueueSize,
		logger:      logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the state owned by one Run call.
type run struct {
	ds          *model.Dataset
	anchors     []string
	anchorIndex map[string]int
	ledger      dedupe.Deduper
	table       *repository.TreapStore
	stats       Stats

	log           logger.Logger
	start         time.Time
	rowsDone      int
	progressEvery int
}

// Run scores ds and returns the complete ranked table. A cancelled context
// stops the run between rows and yields no table.
func (e *Engine) Run(ctx context.Context, ds *model.Dataset) (*Result, error) {
	start := time.Now()

	anchors := ds.Anchors(e.anchorCap)
	hint := min(len(anchors)*max(ds.Len()-1, 0), maxCapacityHint)
	r := &run{
		ds:          ds,
		anchors:     anchors,
		anchorIndex: make(map[string]int, len(anchors)),
		ledger:      dedupe.NewInMemoryDeduper(hint),
		table:       repository.NewTreapStore(repository.WithCapacityHint(hint)),
		stats:       Stats{Profiles: ds.Len(), Anchors: len(anchors)},

		log:           e.logger,
		start:         start,
		progressEvery: max(len(anchors)/progressSteps, 1),
	}
	for i, id := range anchors {
		r.anchorIndex[id] = i
	}

	metrics.UpdateProfilesLoaded(ds.Len())
	metrics.UpdateAnchors(len(anchors))
	e.logger.Info(ctx, "inference started",
		logger.Int("profiles", ds.Len()),
		logger.Int("anchors", len(anchors)),
		logger.Int("workers", e.workerCount),
	)

	var err error
	if e.workerCount > 1 && len(anchors) > 1 {
		err = e.runParallel(ctx, r)
	} else {
		err = e.runSequential(ctx, r)
	}
	if err != nil {
		metrics.RecordErrorByComponent("engine", "run")
		return nil, err
	}

	r.stats.Elapsed = time.Since(start)
	metrics.UpdateInferenceDuration(r.stats.Elapsed.Seconds())
	metrics.UpdateScoreTableSize(r.stats.Scored)
	e.logger.Info(ctx, "inference finished",
		logger.Int("scored", r.stats.Scored),
		logger.Int("skipped", r.stats.Skipped),
		logger.Int64("ledger_keys", r.ledger.Size()),
		logger.Duration("elapsed", r.stats.Elapsed),
	)
	return &Result{Table: r.table, Stats: r.stats}, nil
}

// runSequential is the reference enumeration: the ledger is consulted for
// every pair before it is scored.
func (e *Engine) runSequential(ctx context.Context, r *run) error {
	for _, id1 := range r.anchors {
		if err := ctx.Err(); err != nil {
			return err
		}
		rowStart := time.Now()
		p1 := r.ds.Profiles[id1]

		skipped := 0
		for _, id2 := range r.ds.IDs {
			if id2 == id1 {
				continue
			}
			k1, k2 := model.PairKey(id1, id2), model.PairKey(id2, id1)
			if r.ledger.SeenAny(ctx, k1, k2) {
				skipped++
				continue
			}
			r.ledger.SeenAndRecord(ctx, k1)

			rec := model.ScoreRecord{Anchor: id1, Peer: id2, Score: e.matcher.Match(p1, r.ds.Profiles[id2])}
			if err := r.insert(ctx, rec); err != nil {
				return err
			}
		}
		r.finishRow(ctx, skipped, rowStart)
	}
	return nil
}

// runParallel scores rows on a worker pool and commits them in anchor
// order. A worker leaves out peers that are earlier anchors: the sequential
// run always skips those pairs, since the earlier row recorded them or
// found them recorded. The commit repeats the ledger check for everything
// else, so the table equals the sequential one, pair keys that collide
// across different pairs included.
func (e *Engine) runParallel(ctx context.Context, r *run) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(e.queueSize))
	pool := worker.NewPool(e.workerCount, q, &rowScorer{run: r, matcher: e.matcher})
	pool.Start(runCtx)
	e.logger.Debug(ctx, "worker pool started",
		logger.Int("workers", pool.Size()),
		logger.Int("queue_capacity", q.Capacity()),
	)

	go func() {
		defer func() { _ = q.Close() }()
		for i, id := range r.anchors {
			if err := q.Enqueue(runCtx, model.RowJob{Index: i, AnchorID: id}); err != nil {
				return
			}
		}
	}()

	var firstErr error
	pending := make(map[int]model.Row)
	next := 0
	for res := range pool.Results() {
		if firstErr != nil {
			continue
		}
		if res.Err != nil {
			firstErr = res.Err
			cancel()
			continue
		}
		pending[res.Row.Index] = res.Row
		for {
			row, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := e.commit(ctx, r, row); err != nil {
				firstErr = err
				cancel()
				break
			}
			next++
		}
	}

	// Every worker has returned once Results is closed. Shutdown unblocks the
	// producer's queue and joins the workers.
	cancel()
	if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if next != len(r.anchors) {
		return errors.Errorf("inference incomplete: %d of %d rows committed", next, len(r.anchors))
	}
	return nil
}

func (e *Engine) commit(ctx context.Context, r *run, row model.Row) error {
	rowStart := time.Now()
	skipped := row.Skipped
	for _, rec := range row.Records {
		k1 := rec.Key()
		if r.ledger.SeenAny(ctx, k1, rec.ReverseKey()) {
			skipped++
			continue
		}
		r.ledger.SeenAndRecord(ctx, k1)
		if err := r.insert(ctx, rec); err != nil {
			return err
		}
	}
	r.finishRow(ctx, skipped, rowStart)
	return nil
}

func (r *run) insert(ctx context.Context, rec model.ScoreRecord) error {
	if err := r.table.Insert(ctx, rec); err != nil {
		return errors.Wrap(err, "score table")
	}
	r.stats.Scored++
	metrics.RecordPairScored(rec.Score)
	return nil
}

// finishRow accounts for a committed row and logs progress roughly every
// tenth of the anchors. The last row is covered by "inference finished".
func (r *run) finishRow(ctx context.Context, skipped int, start time.Time) {
	r.stats.Skipped += skipped
	r.rowsDone++
	metrics.RecordPairsSkipped(skipped)
	metrics.RecordRowCompleted(float64(time.Since(start).Microseconds()) / 1000)

	if r.rowsDone%r.progressEvery != 0 || r.rowsDone >= len(r.anchors) {
		return
	}
	r.log.Info(ctx, "inference progress",
		logger.Int("rows_done", r.rowsDone),
		logger.Int("rows_total", len(r.anchors)),
		logger.Int("pairs_scored", r.stats.Scored),
		logger.Int("pairs_skipped", r.stats.Skipped),
		logger.Duration("elapsed", time.Since(r.start)),
	)
}

// rowScorer scores one anchor row against every peer for the worker pool.
// It only reads the dataset.
type rowScorer struct {
	run     *run
	matcher scoring.Scorer
}

func (s *rowScorer) ScoreRow(ctx context.Context, job model.RowJob) (model.Row, error) {
	if err := ctx.Err(); err != nil {
		return model.Row{}, err
	}
	r := s.run
	p1, ok := r.ds.Profiles[job.AnchorID]
	if !ok {
		return model.Row{}, errors.Errorf("unknown anchor %q", job.AnchorID)
	}

	row := model.Row{Index: job.Index, Records: make([]model.ScoreRecord, 0, r.ds.Len()-1)}
	for _, id2 := range r.ds.IDs {
		if id2 == job.AnchorID {
			continue
		}
		if idx, isAnchor := r.anchorIndex[id2]; isAnchor && idx < job.Index {
			row.Skipped++
			continue
		}
		row.Records = append(row.Records, model.ScoreRecord{
			Anchor: job.AnchorID,
			Peer:   id2,
			Score:  s.matcher.Match(p1, r.ds.Profiles[id2]),
		})
	}
	return row, nil
}
