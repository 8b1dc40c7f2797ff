// Package relevance scores how relevant each comment is to the task
// specification by sampling an external, non-deterministic oracle and
// averaging the surviving samples.
package relevance

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/monitoring"
)

// Tier selects the oracle model capacity by conversation size.
type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// Token-volume thresholds for tier selection. Tokens are approximated at
// four characters each, which is close enough for capacity routing.
const (
	mediumTierTokens = 8_000
	largeTierTokens  = 32_000
)

// SelectTier picks the model tier from the total token volume of the
// specification plus all candidate comments.
func SelectTier(specification string, comments []string) Tier {
	chars := len(specification)
	for _, c := range comments {
		chars += len(c)
	}

	tokens := chars / 4
	switch {
	case tokens >= largeTierTokens:
		return TierLarge
	case tokens >= mediumTierTokens:
		return TierMedium
	default:
		return TierSmall
	}
}

// Oracle is the external relevance classifier. It must return one score
// per input comment, in input order; anything else is a malformed sample.
type Oracle interface {
	ScoreRelevance(ctx context.Context, tier Tier, specification string, comments []string) ([]float64, error)
}

// Sampler damps oracle non-determinism: width parallel identical requests
// per batch, averaged column-wise, repeated over a number of outer batches
// and averaged again at fixed precision.
type Sampler struct {
	oracle    Oracle
	width     int
	batches   int
	precision int
	logger    *monitoring.Logger
}

// NewSampler creates a sampler. Width and batches must be at least 1.
func NewSampler(oracle Oracle, width, batches, precision int, logger *monitoring.Logger) *Sampler {
	if width < 1 {
		width = 1
	}
	if batches < 1 {
		batches = 1
	}
	return &Sampler{
		oracle:    oracle,
		width:     width,
		batches:   batches,
		precision: precision,
		logger:    logger,
	}
}

// Sample returns one relevance score in [0,1] per input comment, in input
// order. A single failed oracle call never aborts a batch; a batch with
// zero valid samples fails the whole comment set, and the caller degrades
// that set rather than aborting the run.
func (s *Sampler) Sample(ctx context.Context, specification string, comments []string) ([]money.Dec, error) {
	if len(comments) == 0 {
		return nil, nil
	}

	tier := SelectTier(specification, comments)
	batchAverages := make([][]float64, 0, s.batches)

	for batch := 0; batch < s.batches; batch++ {
		start := time.Now()
		valid := s.sampleBatch(ctx, tier, specification, comments)
		s.logger.OracleLogger(string(tier), batch, s.width, len(valid), time.Since(start))

		if len(valid) == 0 {
			return nil, errors.NewPartialDataError("relevance oracle",
				fmt.Errorf("batch %d produced no valid sample for %d comments", batch, len(comments)))
		}

		batchAverages = append(batchAverages, columnAverage(valid, len(comments), s.precision))
	}

	// Outer average over the per-batch averages.
	final := columnAverage(batchAverages, len(comments), s.precision)

	scores := make([]money.Dec, len(comments))
	for i, v := range final {
		scores[i] = money.FromFloat(v, s.precision)
	}
	return scores, nil
}

// sampleBatch issues width identical oracle calls and keeps the responses
// that pass the positional length check. Each call writes into its own
// pre-sized slot, so no locking is needed.
func (s *Sampler) sampleBatch(ctx context.Context, tier Tier, specification string, comments []string) [][]float64 {
	samples := make([][]float64, s.width)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.width; i++ {
		slot := i
		g.Go(func() error {
			scores, err := s.oracle.ScoreRelevance(gctx, tier, specification, comments)
			if err != nil {
				s.logger.DegradedLogger("relevance oracle", err.Error())
				return nil
			}

			// Responses are matched positionally, so a length mismatch
			// makes the whole sample unusable.
			if len(scores) != len(comments) {
				s.logger.DegradedLogger("relevance oracle",
					fmt.Sprintf("sample length %d does not match %d comments", len(scores), len(comments)))
				return nil
			}

			for _, v := range scores {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					s.logger.DegradedLogger("relevance oracle", "sample contains non-finite score")
					return nil
				}
			}

			samples[slot] = scores
			return nil
		})
	}
	_ = g.Wait()

	valid := make([][]float64, 0, s.width)
	for _, sample := range samples {
		if sample != nil {
			valid = append(valid, sample)
		}
	}
	return valid
}

// columnAverage averages rows column-wise, clamps into [0,1] and rounds to
// the configured precision.
func columnAverage(rows [][]float64, width, precision int) []float64 {
	averages := make([]float64, width)
	for col := 0; col < width; col++ {
		sum := 0.0
		for _, row := range rows {
			sum += row[col]
		}
		avg := sum / float64(len(rows))
		if avg < 0 {
			avg = 0
		}
		if avg > 1 {
			avg = 1
		}
		averages[col] = roundTo(avg, precision)
	}
	return averages
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}
