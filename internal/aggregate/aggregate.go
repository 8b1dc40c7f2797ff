// Package aggregate folds per-comment and per-task scores into one total
// per participant, preserving the per-source detail the settlement comment
// itemizes.
package aggregate

import (
	"sort"

	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/roles"
	"github.com/taskforge/rewards/internal/types"
)

// ScoreDetail is one scored contribution: a comment, the task
// specification, or the fixed task-completion share.
type ScoreDetail struct {
	View      roles.View  `json:"view"`
	Role      roles.Role  `json:"role"`
	Class     roles.Class `json:"class"`
	Score     money.Dec   `json:"score"`
	CommentID int64       `json:"comment_id,omitempty"` // 0 when the source is the task itself
}

// UserTotal is a participant's aggregate across every contribution class
// and both views. Total is the exact sum of the detail scores; nothing is
// rounded before currency conversion.
type UserTotal struct {
	Participant types.Participant `json:"participant"`
	Total       money.Dec         `json:"total"`
	Details     []ScoreDetail     `json:"details"`
}

// TaskRewardShare returns the fixed completion share of each detail list:
// the sum of AssigneeTask details only.
func (ut UserTotal) TaskRewardShare() money.Dec {
	share := money.Zero()
	for _, d := range ut.Details {
		if d.Class == roles.ClassAssigneeTask {
			share = share.Add(d.Score)
		}
	}
	return share
}

// CommentShare returns the non-completion portion of the total.
func (ut UserTotal) CommentShare() money.Dec {
	return ut.Total.Sub(ut.TaskRewardShare())
}

// Aggregator folds score details by participant id.
type Aggregator struct {
	totals map[int64]*UserTotal
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{totals: make(map[int64]*UserTotal)}
}

// Add folds one detail into the participant's total.
func (a *Aggregator) Add(p types.Participant, detail ScoreDetail) {
	ut, ok := a.totals[p.ID]
	if !ok {
		ut = &UserTotal{Participant: p, Total: money.Zero()}
		a.totals[p.ID] = ut
	}
	ut.Details = append(ut.Details, detail)
	ut.Total = ut.Total.Add(detail.Score)
}

// Totals returns every participant's aggregate, ordered by participant id
// for deterministic downstream output.
func (a *Aggregator) Totals() []UserTotal {
	out := make([]UserTotal, 0, len(a.totals))
	for _, ut := range a.totals {
		out = append(out, *ut)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Participant.ID < out[j].Participant.ID })
	return out
}

// TotalFor returns the aggregate for one participant, if present.
func (a *Aggregator) TotalFor(id int64) (UserTotal, bool) {
	ut, ok := a.totals[id]
	if !ok {
		return UserTotal{}, false
	}
	return *ut, true
}

// SplitTaskReward divides the task price evenly across assignees. The
// division is exact on rationals; nothing is lost to rounding here.
func SplitTaskReward(price money.Dec, assignees []types.Participant) map[int64]money.Dec {
	shares := make(map[int64]money.Dec, len(assignees))
	if len(assignees) == 0 {
		return shares
	}

	share := price.DivInt(int64(len(assignees)))
	for _, a := range assignees {
		shares[a.ID] = share
	}
	return shares
}
