package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/rubric"
	"github.com/taskforge/rewards/internal/types"
)

func testRubric(formatMultiplier, wordValue string) rubric.Rubric {
	return rubric.Rubric{
		FormatMultiplier: money.MustParse(formatMultiplier),
		WordValue:        money.MustParse(wordValue),
		ElementValues:    rubric.DefaultElementValues(),
		Disabled:         rubric.DefaultDisabled(),
	}
}

func TestScoreCommentFormatExample(t *testing.T) {
	// One header, two code spans, three list items with values
	// {h1: 1, code: 1, li: 0} and multiplier 2 scores (1×1 + 1×2)×2 = 6.
	r := rubric.Rubric{
		FormatMultiplier: money.FromInt(2),
		WordValue:        money.Zero(),
		ElementValues: map[rubric.ElementTag]money.Dec{
			rubric.TagH1:         money.FromInt(1),
			rubric.TagCodeInline: money.FromInt(1),
			rubric.TagListItem:   money.Zero(),
		},
	}

	c := types.Comment{ID: 1, Body: "# Fix plan\n\nuse `foo()` then `bar()`\n\n- step one\n- step two\n- step three"}
	score := ScoreComment(r, c)

	assert.Equal(t, 0, score.FormatScore.Cmp(money.FromInt(6)))
	assert.Equal(t, 1, score.FormatBreakdown[rubric.TagH1].Count)
	assert.Equal(t, 2, score.FormatBreakdown[rubric.TagCodeInline].Count)
	assert.Equal(t, 3, score.FormatBreakdown[rubric.TagListItem].Count)
	assert.True(t, score.FormatBreakdown[rubric.TagListItem].Score.IsZero())
}

func TestScoreCommentWordCount(t *testing.T) {
	r := testRubric("0", "0.1")

	c := types.Comment{ID: 2, Body: "five plain words right here"}
	score := ScoreComment(r, c)

	assert.Equal(t, 0, score.WordScore.Cmp(money.MustParse("0.5")))
	assert.Equal(t, 0, score.WordBreakdown["five"].Cmp(money.MustParse("0.1")))
	assert.Len(t, score.WordBreakdown, 5)
}

func TestScoreCommentCodeOnly(t *testing.T) {
	// A code-fenced-only comment has zero word score but still scores the
	// code block structurally.
	r := testRubric("1", "0.1")

	c := types.Comment{ID: 3, Body: "```\nfunc lots of words inside code\n```"}
	score := ScoreComment(r, c)

	assert.True(t, score.WordScore.IsZero())
	assert.Equal(t, 0, score.FormatScore.Cmp(money.FromInt(1)))
}

func TestScoreCommentEmpty(t *testing.T) {
	r := testRubric("1", "0.1")
	score := ScoreComment(r, types.Comment{ID: 4, Body: ""})

	assert.True(t, score.FormatScore.IsZero())
	assert.True(t, score.WordScore.IsZero())
}

func TestScoreCommentDisabledElementsExcludeText(t *testing.T) {
	r := testRubric("1", "0.1")

	// Blockquotes are disabled by default: no format value and the quoted
	// words must not be counted.
	c := types.Comment{ID: 5, Body: "> ten quoted words that must never ever be counted here\n\ntwo words"}
	score := ScoreComment(r, c)

	assert.Equal(t, 0, score.WordScore.Cmp(money.MustParse("0.2")))
	_, quoted := score.FormatBreakdown[rubric.TagBlockquote]
	assert.False(t, quoted)
}

func TestScoreCommentAllZeroRubric(t *testing.T) {
	// The assignee-comment default: chatting as the assignee is worthless
	// alongside the fixed completion payout.
	r := testRubric("0", "0")

	c := types.Comment{ID: 6, Body: "# Header\n\nlots of [markdown](x) `content` here\n\n- item"}
	score := ScoreComment(r, c)

	assert.True(t, score.Total().IsZero())
}

func TestTotalAppliesRelevance(t *testing.T) {
	r := testRubric("0", "0.1")

	score := ScoreComment(r, types.Comment{ID: 7, Body: "ten words of text to score against the oracle output"})
	require.Equal(t, 0, score.WordScore.Cmp(money.FromInt(1)))

	// Fresh scores default to relevance 1.
	assert.Equal(t, 0, score.Total().Cmp(money.FromInt(1)))

	score.Relevance = money.MustParse("0.25")
	assert.Equal(t, 0, score.Total().Cmp(money.MustParse("0.25")))

	// A degraded comment set is zeroed outright.
	score.Relevance = money.Zero()
	assert.True(t, score.Total().IsZero())
}

func TestScoreCommentsAndSum(t *testing.T) {
	r := testRubric("0", "0.5")

	comments := []types.Comment{
		{ID: 1, Body: "two words"},
		{ID: 2, Body: "three more words"},
	}

	scores := ScoreComments(r, comments)
	require.Len(t, scores, 2)
	assert.Equal(t, int64(1), scores[0].CommentID)

	// 2×0.5 + 3×0.5 = 2.5, exactly.
	assert.Equal(t, 0, SumTotals(scores).Cmp(money.MustParse("2.5")))
}
