package relevance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/monitoring"
)

// scriptedOracle returns pre-scripted responses in call order, regardless
// of which goroutine asks first.
type scriptedOracle struct {
	mu        sync.Mutex
	responses [][]float64
	errs      []error
	calls     int
}

func (o *scriptedOracle) ScoreRelevance(_ context.Context, _ Tier, _ string, _ []string) ([]float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	i := o.calls
	o.calls++

	if i < len(o.errs) && o.errs[i] != nil {
		return nil, o.errs[i]
	}
	if i < len(o.responses) {
		return o.responses[i], nil
	}
	return nil, errors.New("no scripted response")
}

func TestSampleAveragesAndDiscardsWrongLength(t *testing.T) {
	// Width 3 for 2 comments: two valid samples and one of the wrong
	// length, which must never be averaged in.
	oracle := &scriptedOracle{
		responses: [][]float64{
			{0.8, 0.4},
			{0.8, 0.1},
			{0.8, 0.1, 0.2}, // wrong length, discarded
		},
	}

	s := NewSampler(oracle, 3, 1, 2, monitoring.NewLogger())
	scores, err := s.Sample(context.Background(), "spec", []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Equal(t, 0, scores[0].Cmp(money.MustParse("0.8")))
	assert.Equal(t, 0, scores[1].Cmp(money.MustParse("0.25")))
}

func TestSampleSingleErrorDoesNotAbortBatch(t *testing.T) {
	oracle := &scriptedOracle{
		responses: [][]float64{
			nil,
			{0.6},
			{0.4},
		},
		errs: []error{errors.New("oracle timeout"), nil, nil},
	}

	s := NewSampler(oracle, 3, 1, 2, monitoring.NewLogger())
	scores, err := s.Sample(context.Background(), "spec", []string{"only"})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 0, scores[0].Cmp(money.MustParse("0.5")))
}

func TestSampleAllMalformedIsExplicitFailure(t *testing.T) {
	oracle := &scriptedOracle{
		responses: [][]float64{
			{0.1, 0.2, 0.3}, // all wrong length for one comment
			{},
			nil,
		},
		errs: []error{nil, nil, errors.New("boom")},
	}

	s := NewSampler(oracle, 3, 1, 2, monitoring.NewLogger())
	scores, err := s.Sample(context.Background(), "spec", []string{"only"})
	require.Error(t, err)
	assert.Nil(t, scores)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryPartialData))
}

func TestSampleOuterBatchesAverageAgain(t *testing.T) {
	// Two outer batches of width 1: 0.9 then 0.6 average to 0.75.
	oracle := &scriptedOracle{
		responses: [][]float64{
			{0.9},
			{0.6},
		},
	}

	s := NewSampler(oracle, 1, 2, 2, monitoring.NewLogger())
	scores, err := s.Sample(context.Background(), "spec", []string{"only"})
	require.NoError(t, err)
	assert.Equal(t, 0, scores[0].Cmp(money.MustParse("0.75")))
}

func TestSampleClampsOutOfRange(t *testing.T) {
	oracle := &scriptedOracle{
		responses: [][]float64{{1.7, -0.3}},
	}

	s := NewSampler(oracle, 1, 1, 2, monitoring.NewLogger())
	scores, err := s.Sample(context.Background(), "spec", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, scores[0].Cmp(money.FromInt(1)))
	assert.True(t, scores[1].IsZero())
}

func TestSampleEmptyInput(t *testing.T) {
	s := NewSampler(&scriptedOracle{}, 3, 2, 2, monitoring.NewLogger())
	scores, err := s.Sample(context.Background(), "spec", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestSelectTier(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		comments []string
		want     Tier
	}{
		{
			name: "small conversation",
			spec: "short spec",
			want: TierSmall,
		},
		{
			name:     "medium conversation",
			spec:     strings.Repeat("w", 40_000),
			comments: []string{"a comment"},
			want:     TierMedium,
		},
		{
			name:     "large conversation",
			spec:     strings.Repeat("w", 100_000),
			comments: []string{strings.Repeat("c", 40_000)},
			want:     TierLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectTier(tt.spec, tt.comments))
		})
	}
}
