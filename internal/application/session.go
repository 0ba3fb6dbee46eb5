package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptoquote/internal/coins"
	"github.com/sawpanic/cryptoquote/internal/directory"
	"github.com/sawpanic/cryptoquote/internal/history"
	"github.com/sawpanic/cryptoquote/internal/interfaces/console"
	"github.com/sawpanic/cryptoquote/internal/metrics"
	"github.com/sawpanic/cryptoquote/internal/quote"
)

// SessionConfig holds the tunables of one run.
type SessionConfig struct {
	Cutoff      float64
	MemoSize    int
	Concurrency int
	MetricsFile string // written at the end of Run when set
}

// Session runs one price lookup: load the coin list, read names, resolve,
// fetch, print and record.
type Session struct {
	console  *console.Console
	loader   *directory.Loader
	prices   quote.PriceSource
	recorder history.Recorder
	metrics  *metrics.Collector
	config   SessionConfig

	runID  string
	logger zerolog.Logger
}

func NewSession(con *console.Console, loader *directory.Loader, prices quote.PriceSource,
	recorder history.Recorder, collector *metrics.Collector, config SessionConfig) *Session {
	if recorder == nil {
		recorder = history.NewNoopRecorder()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	runID := uuid.NewString()
	return &Session{
		console:  con,
		loader:   loader,
		prices:   prices,
		recorder: recorder,
		metrics:  collector,
		config:   config,
		runID:    runID,
		logger:   log.With().Str("run_id", runID).Logger(),
	}
}

// RunID identifies this session in logs and history rows.
func (s *Session) RunID() string { return s.runID }

// Run executes the session. names, when non-nil, replaces the interactive
// prompt. A declined or exhausted coin list fetch ends the run without an
// error, as does end of input at the names prompt.
func (s *Session) Run(ctx context.Context, names []string) error {
	start := time.Now()
	defer s.writeMetrics()

	s.console.Welcome()

	res, err := s.loader.Load(ctx)
	switch {
	case errors.Is(err, directory.ErrDeclined):
		s.logger.Debug().Msg("Coin list retry declined")
		return nil
	case errors.Is(err, directory.ErrAttemptsExhausted):
		s.logger.Warn().Err(err).Msg("Giving up on the coin list")
		return nil
	case err != nil:
		return fmt.Errorf("load coin list: %w", err)
	}
	s.metrics.DirectoryLoaded(res)
	s.logger.Debug().
		Str("origin", string(res.Origin)).
		Int("coins_count", len(res.Directory)).
		Msg("Coin list ready")

	resolver, err := coins.NewResolver(res.Directory,
		coins.WithCutoff(s.config.Cutoff),
		coins.WithMemoSize(s.config.MemoSize))
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	if names == nil {
		names, err = s.console.ReadNames(ctx)
		if errors.Is(err, io.EOF) {
			s.logger.Debug().Msg("No input, ending session")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read names: %w", err)
		}
	}

	s.console.FetchingPrices()
	batch := quote.NewBatch(resolver, quote.NewFetcher(s.prices), s.config.Concurrency, s.metrics)
	quotes := batch.Run(ctx, names)

	if err := s.console.Report(quotes); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if err := s.recorder.Record(ctx, s.runID, quotes); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record quote history")
	}

	s.logger.Info().
		Int("quotes_count", len(quotes)).
		Dur("duration", time.Since(start)).
		Msg("Session complete")
	return nil
}

func (s *Session) writeMetrics() {
	if s.config.MetricsFile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.config.MetricsFile); err != nil {
		s.logger.Warn().Err(err).Str("path", s.config.MetricsFile).Msg("Failed to write metrics textfile")
	}
}
