// Package scoring computes the format and word-volume components of a
// comment's score against a contribution-class rubric.
package scoring

import (
	"regexp"
	"strings"

	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/rubric"
	"github.com/taskforge/rewards/internal/types"
)

var wordRe = regexp.MustCompile(`[A-Za-z0-9']+`)

// ElementStat is the per-element-type audit entry for one comment.
type ElementStat struct {
	Count int       `json:"count"`
	Score money.Dec `json:"score"`
	Words int       `json:"words"`
}

// CommentScore is the full scoring result for one comment. Relevance is
// filled in later by the relevance sampler; format and word components are
// computed here.
type CommentScore struct {
	CommentID       int64                             `json:"comment_id"`
	FormatScore     money.Dec                         `json:"format_score"`
	WordScore       money.Dec                         `json:"word_score"`
	Relevance       money.Dec                         `json:"relevance"`
	FormatBreakdown map[rubric.ElementTag]ElementStat `json:"format_breakdown"`
	WordBreakdown   map[string]money.Dec              `json:"word_breakdown"`
}

// Total returns the comment's combined score: (format + word) × relevance.
// ScoreComment initializes relevance to 1; the relevance sampler overwrites
// it for sampled comment sets, and a set whose sampling failed outright is
// degraded to 0, zeroing its contribution.
func (cs CommentScore) Total() money.Dec {
	return cs.FormatScore.Add(cs.WordScore).Mul(cs.Relevance)
}

// wordEligible reports whether an element's text participates in word
// counting. Code never does: pasted code is rewarded structurally, not by
// volume. Disabled elements are excluded by the caller.
func wordEligible(tag rubric.ElementTag) bool {
	switch tag {
	case rubric.TagCodeBlock, rubric.TagCodeInline, rubric.TagLineBreak:
		return false
	default:
		return true
	}
}

// ScoreComment scores a single comment body against a rubric.
func ScoreComment(r rubric.Rubric, c types.Comment) CommentScore {
	elements := Tokenize(c.Body)

	score := CommentScore{
		CommentID:       c.ID,
		FormatScore:     money.Zero(),
		WordScore:       money.Zero(),
		Relevance:       money.FromInt(1),
		FormatBreakdown: make(map[rubric.ElementTag]ElementStat),
		WordBreakdown:   make(map[string]money.Dec),
	}

	totalWords := 0
	for _, el := range elements {
		if r.IsDisabled(el.Tag) {
			// No format contribution, and the text is excluded from word
			// counting so quoted/boilerplate content is not incentivized.
			continue
		}

		stat := score.FormatBreakdown[el.Tag]
		stat.Count++

		value := r.ElementValue(el.Tag)
		if !value.IsZero() {
			contribution := value.Mul(r.FormatMultiplier)
			stat.Score = stat.Score.Add(contribution)
			score.FormatScore = score.FormatScore.Add(contribution)
		}

		if wordEligible(el.Tag) && el.Text != "" {
			words := wordRe.FindAllString(el.Text, -1)
			stat.Words += len(words)
			totalWords += len(words)

			for _, w := range words {
				key := strings.ToLower(w)
				score.WordBreakdown[key] = score.WordBreakdown[key].Add(r.WordValue)
			}
		}

		score.FormatBreakdown[el.Tag] = stat
	}

	score.WordScore = r.WordValue.Mul(money.FromInt(int64(totalWords)))
	return score
}

// ScoreComments scores every comment of one participant within one class,
// in input order.
func ScoreComments(r rubric.Rubric, comments []types.Comment) []CommentScore {
	scores := make([]CommentScore, 0, len(comments))
	for _, c := range comments {
		scores = append(scores, ScoreComment(r, c))
	}
	return scores
}

// SumTotals compiles the per-participant running total across comments.
func SumTotals(scores []CommentScore) money.Dec {
	total := money.Zero()
	for _, s := range scores {
		total = total.Add(s.Total())
	}
	return total
}
