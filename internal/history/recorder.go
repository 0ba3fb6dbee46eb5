package history

import (
	"context"

	"github.com/sawpanic/cryptoquote/internal/quote"
)

// Recorder stores the quotes of a run.
type Recorder interface {
	Record(ctx context.Context, runID string, quotes []quote.Quote) error
	Close() error
}

// NoopRecorder discards quotes. It is used when history is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (NoopRecorder) Record(context.Context, string, []quote.Quote) error { return nil }
func (NoopRecorder) Close() error                                        { return nil }
