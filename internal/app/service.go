// Package app wires the loader, the inference engine and the score file
// into one batch run.
package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/okian/walletmatch/internal/adapters/dataset"
	"github.com/okian/walletmatch/internal/adapters/repository"
	"github.com/okian/walletmatch/internal/adapters/scorefile"
	"github.com/okian/walletmatch/internal/config"
	"github.com/okian/walletmatch/internal/domain/model"
	"github.com/okian/walletmatch/internal/domain/scoring"
	"github.com/okian/walletmatch/pkg/logger"
	"github.com/okian/walletmatch/pkg/metrics"
)

// Summary describes a finished run.
type Summary struct {
	RunID      string
	OutputPath string
	Stats      Stats
	Top        []repository.Entry
}

// explainer is implemented by scorers that can itemize a score.
type explainer interface {
	Breakdown(p1, p2 *model.Profile) scoring.Breakdown
}

// Service runs load -> score -> write for one input document.
type Service struct {
	loader      *dataset.Loader
	engine      *Engine
	outputPath  string
	metricsFile string
	topN        int
	runID       string
	logger      logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEngine sets the inference engine.
func WithEngine(e *Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithLoader sets the dataset loader.
func WithLoader(l *dataset.Loader) Option {
	return func(s *Service) {
		if l != nil {
			s.loader = l
		}
	}
}

// WithOutputPath sets where the score file is written.
func WithOutputPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.outputPath = path
		}
	}
}

// WithMetricsFile sets a textfile to receive the run metrics.
func WithMetricsFile(path string) Option {
	return func(s *Service) {
		s.metricsFile = path
	}
}

// WithTopN sets how many best pairs are logged after the run.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.topN = n
		}
	}
}

// WithRunID sets the run identifier used in logs.
func WithRunID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		outputPath: scorefile.DefaultPath,
		topN:       10,
		runID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger = s.logger.With(logger.String("run_id", s.runID))
	if s.loader == nil {
		s.loader = dataset.NewLoader()
	}
	if s.engine == nil {
		s.engine = NewEngine()
	}
	return s
}

// NewFromConfig builds a Service from process configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Service, error) {
	weights, err := scoring.DefaultWeights().With(cfg.Weights)
	if err != nil {
		return nil, errors.Wrap(err, "weights")
	}
	matcher, err := scoring.NewWeightedMatcher(weights)
	if err != nil {
		return nil, errors.Wrap(err, "weights")
	}

	engine := NewEngine(
		WithMatcher(matcher),
		WithAnchorCap(cfg.AnchorCap),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
	)

	base := []Option{
		WithEngine(engine),
		WithTopN(cfg.LogTopN),
		WithMetricsFile(cfg.MetricsFile),
	}
	return New(append(base, opts...)...), nil
}

// RunID returns the run identifier.
func (s *Service) RunID() string {
	return s.runID
}

// Run loads inputPath, scores every pair and writes the ranked table.
// Nothing is written unless every step before the write succeeded.
func (s *Service) Run(ctx context.Context, inputPath string) (*Summary, error) {
	ds, err := s.loader.Load(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Run(ctx, ds)
	if err != nil {
		return nil, errors.Wrap(err, "inference")
	}

	if err := scorefile.Write(ctx, s.outputPath, res.Table.Ordered(ctx)); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:      s.runID,
		OutputPath: s.outputPath,
		Stats:      res.Stats,
	}
	if s.topN > 0 {
		if summary.Top, err = res.Table.TopN(ctx, s.topN); err != nil {
			return nil, errors.Wrap(err, "top matches")
		}
	}

	s.logger.Info(ctx, "score file written",
		logger.String("path", s.outputPath),
		logger.Int("pairs", res.Table.Count(ctx)),
		logger.Int("profiles", res.Stats.Profiles),
		logger.Int("anchors", res.Stats.Anchors),
		logger.Int("skipped", res.Stats.Skipped),
		logger.Duration("elapsed", res.Stats.Elapsed),
	)
	ex, explains := s.engine.matcher.(explainer)
	for _, e := range summary.Top {
		s.logger.Info(ctx, "top match",
			logger.Int("rank", e.Rank),
			logger.String("pair", e.Key),
			logger.Float64("score", e.Score),
		)
		if explains {
			b := ex.Breakdown(ds.Profiles[e.Anchor], ds.Profiles[e.Peer])
			s.logger.Debug(ctx, "top match breakdown", breakdownFields(e, b)...)
		}
	}

	if s.metricsFile != "" {
		// The score file is already in place; a metrics failure only warns.
		if err := metrics.WriteTextfile(s.metricsFile); err != nil {
			s.logger.Warn(ctx, "metrics export failed", logger.Error(err))
		}
	}
	return summary, nil
}

func breakdownFields(e repository.Entry, b scoring.Breakdown) []logger.Field {
	fields := make([]logger.Field, 0, len(scoring.Features())+3)
	fields = append(fields,
		logger.String("pair", e.Key),
		logger.String("anchor", e.Anchor),
		logger.String("peer", e.Peer),
	)
	for _, f := range scoring.Features() {
		fields = append(fields, logger.Float64(f.String(), b.Get(f)))
	}
	return fields
}
