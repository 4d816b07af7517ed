package screener

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/logger"
	"github.com/rewired-gh/volspike/internal/models"
)

// Journal records completed screening runs.
type Journal interface {
	RecordScreening(ctx context.Context, run models.ScreeningRun) error
}

// Runner screens an exchange, writes its candidate file and journals the run.
type Runner struct {
	Screener    *Screener
	OutputDir   string
	Window      int
	CVThreshold float64
	Journal     Journal
}

// Run screens exchange as of asOf. The candidate file is only written on success.
// Journal failures are logged and do not fail the run.
func (r *Runner) Run(ctx context.Context, exchange models.Exchange, asOf string) ([]models.Candidate, error) {
	candidates, err := r.Screener.Screen(ctx, exchange, asOf, r.Window, r.CVThreshold)
	if err != nil {
		return nil, err
	}

	path := CandidatePath(r.OutputDir, exchange)
	if err := WriteCandidates(path, candidates); err != nil {
		return nil, fmt.Errorf("failed to write candidates: %w", err)
	}
	logger.Info("Wrote %d %s candidates to %s", len(candidates), exchange, path)

	if r.Journal != nil {
		asOfKey := asOf
		if day, err := calendar.ParseDate(asOf); err == nil {
			asOfKey = calendar.FormatROC(day, "")
		}
		run := models.ScreeningRun{
			ID:          uuid.NewString(),
			Exchange:    exchange,
			AsOf:        asOfKey,
			Window:      r.Window,
			CVThreshold: r.CVThreshold,
			CreatedAt:   time.Now(),
			Candidates:  candidates,
		}
		if err := r.Journal.RecordScreening(ctx, run); err != nil {
			logger.Warn("Failed to journal screening run: %v", err)
		}
	}
	return candidates, nil
}
