// Package pipeline orchestrates one settlement run: precondition checks,
// role classification, scoring, relevance sampling, aggregation,
// settlement and the posted receipt.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskforge/rewards/internal/aggregate"
	"github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/receipt"
	"github.com/taskforge/rewards/internal/roles"
	"github.com/taskforge/rewards/internal/rubric"
	"github.com/taskforge/rewards/internal/scoring"
	"github.com/taskforge/rewards/internal/settlement"
	"github.com/taskforge/rewards/internal/types"
)

// Tracker is the issue-tracker surface the pipeline needs.
type Tracker interface {
	Task(ctx context.Context, repo string, number int) (types.Task, error)
	TaskComments(ctx context.Context, repo string, number int) ([]types.Comment, error)
	LinkedReviews(ctx context.Context, repo string, number int) ([]types.Review, error)
	ReviewComments(ctx context.Context, repo string, number int) ([]types.Comment, error)
	Activity(ctx context.Context, repo string, number int) (map[int64]types.ActivityFlags, error)
	PostComment(ctx context.Context, repo string, number int, body string) (int64, error)
}

// CollaboratorSource fetches the repository membership roster, usually
// through the roster cache.
type CollaboratorSource interface {
	Collaborators(ctx context.Context, repo string) ([]types.Participant, error)
}

// RelevanceSampler scores how relevant each comment is to the task
// specification, one score in [0,1] per comment.
type RelevanceSampler interface {
	Sample(ctx context.Context, specification string, comments []string) ([]money.Dec, error)
}

// Settler converts aggregated totals into signed reward records.
type Settler interface {
	Build(ctx context.Context, in settlement.Input) (*settlement.Settlement, error)
}

// Marker is the idempotency fast path. The embedded receipt in the task
// thread remains authoritative; the marker only short-circuits
// redelivered webhooks.
type Marker interface {
	IsSettled(ctx context.Context, repo string, taskNumber int) bool
	MarkSettled(ctx context.Context, repo string, taskNumber int, permitIDs []string)
}

// Result is the outcome of one run.
type Result struct {
	RunID          string
	AlreadySettled bool
	Settlement     *settlement.Settlement
	CommentID      int64
}

// Pipeline wires the stages together. One instance serves all runs.
type Pipeline struct {
	tracker       Tracker
	collaborators CollaboratorSource
	sampler       RelevanceSampler
	settler       Settler
	marker        Marker
	rubrics       rubric.Table
	receiptCaller string
	logger        *monitoring.Logger
}

// New creates a pipeline.
func New(tracker Tracker, collaborators CollaboratorSource, sampler RelevanceSampler, settler Settler, marker Marker, rubrics rubric.Table, receiptCaller string, logger *monitoring.Logger) *Pipeline {
	return &Pipeline{
		tracker:       tracker,
		collaborators: collaborators,
		sampler:       sampler,
		settler:       settler,
		marker:        marker,
		rubrics:       rubrics,
		receiptCaller: receiptCaller,
		logger:        logger,
	}
}

// receiptPayload is the JSON body embedded in the settlement receipt.
type receiptPayload struct {
	RunID     string          `json:"run_id"`
	Repo      string          `json:"repo"`
	TaskID    int64           `json:"task_id"`
	Number    int             `json:"number"`
	Currency  string          `json:"currency"`
	Total     string          `json:"total"`
	Rewards   []receiptReward `json:"rewards"`
	SettledAt time.Time       `json:"settled_at"`
}

type receiptReward struct {
	Handle   string `json:"handle"`
	Amount   string `json:"amount"`
	PermitID string `json:"permit_id,omitempty"`
}

// Run settles one closed task. Precondition failures abort before any
// side effect; partial-data failures degrade the affected portion and
// continue. The posted settlement comment carrying the receipt is the
// final action, so a crash before it leaves the run safely repeatable.
func (p *Pipeline) Run(ctx context.Context, repo string, taskNumber int) (*Result, error) {
	runID := uuid.New().String()
	logger := p.logger.WithRun(runID)
	result := &Result{RunID: runID}

	if p.marker.IsSettled(ctx, repo, taskNumber) {
		logger.Info("Task already settled (marker)", "repo", repo, "task_number", taskNumber)
		result.AlreadySettled = true
		return result, nil
	}

	start := time.Now()
	task, err := p.tracker.Task(ctx, repo, taskNumber)
	if err != nil {
		return nil, err
	}

	if !task.ClosedAsCompleted() {
		return nil, errors.NewPreconditionError("task is not closed as completed",
			"state: "+task.State, "state_reason: "+task.StateReason)
	}
	if len(task.Assignees) == 0 {
		return nil, errors.NewPreconditionError("task has no assignees")
	}

	price, currency, err := settlement.ParsePriceLabel(task.Labels)
	if err != nil {
		return nil, err
	}

	taskComments, err := p.tracker.TaskComments(ctx, repo, taskNumber)
	if err != nil {
		return nil, err
	}

	// Durable idempotency check: a prior receipt in the thread means the
	// permits already exist, and running again would double-pay.
	if prior, ok := receipt.FindSettlement(taskComments); ok {
		logger.Info("Task already settled (receipt)",
			"repo", repo, "task_number", taskNumber, "receipt_revision", prior.Revision)
		p.marker.MarkSettled(ctx, repo, taskNumber, nil)
		result.AlreadySettled = true
		return result, nil
	}
	logger.RunLogger(repo, taskNumber, "preconditions", time.Since(start))

	reviews, reviewComments := p.fetchReviews(ctx, repo, taskNumber, logger)
	collaborators := p.fetchCollaborators(ctx, repo, logger)
	activity := p.fetchActivity(ctx, repo, taskNumber, logger)

	assignment := roles.Classify(roles.Input{
		Task:           task,
		Collaborators:  collaborators,
		TaskComments:   taskComments,
		ReviewComments: reviewComments,
		Activity:       activity,
	})

	stageStart := time.Now()
	agg := aggregate.NewAggregator()
	specification := task.Title + "\n\n" + task.Body

	p.scoreSpecification(task, agg)
	p.scoreView(ctx, assignment.Task, taskComments, specification, agg, logger)
	p.scoreView(ctx, assignment.Review, reviewComments, specification, agg, logger)

	for _, a := range assignment.Task.Assignees {
		share := aggregate.SplitTaskReward(price, assignment.Task.Assignees)[a.ID]
		agg.Add(a, aggregate.ScoreDetail{
			View:  roles.ViewTask,
			Role:  roles.RoleAssignee,
			Class: roles.ClassAssigneeTask,
			Score: share,
		})
	}
	logger.RunLogger(repo, taskNumber, "scoring", time.Since(stageStart))

	stageStart = time.Now()
	titles := map[roles.View][]string{roles.ViewTask: {task.Title}}
	for _, r := range reviews {
		titles[roles.ViewReview] = append(titles[roles.ViewReview], r.Title)
	}

	settled, err := p.settler.Build(ctx, settlement.Input{
		Task:     task,
		Price:    price,
		Currency: currency,
		Totals:   agg.Totals(),
		Titles:   titles,
	})
	if err != nil {
		return nil, err
	}
	logger.RunLogger(repo, taskNumber, "settlement", time.Since(stageStart))

	commentID, permitIDs, err := p.post(ctx, runID, task, settled, logger)
	if err != nil {
		return nil, err
	}
	p.marker.MarkSettled(ctx, repo, taskNumber, permitIDs)

	logger.SettlementLogger(repo, taskNumber, len(settled.Rewards), len(settled.Fallback),
		settled.Total().StringFixed(2), currency)

	result.Settlement = settled
	result.CommentID = commentID
	return result, nil
}

// fetchReviews gathers the linked reviews and their threads. Failures
// degrade the review view to empty instead of aborting the run.
func (p *Pipeline) fetchReviews(ctx context.Context, repo string, taskNumber int, logger *monitoring.Logger) ([]types.Review, []types.Comment) {
	reviews, err := p.tracker.LinkedReviews(ctx, repo, taskNumber)
	if err != nil {
		logger.DegradedLogger("linked reviews", err.Error())
		return nil, nil
	}

	// One fetch per review, each writing into its own slot; thread order
	// within a review is preserved and reviews keep their input order.
	slots := make([][]types.Comment, len(reviews))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reviews {
		slot, number := i, r.Number
		g.Go(func() error {
			rc, err := p.tracker.ReviewComments(gctx, repo, number)
			if err != nil {
				logger.DegradedLogger("review comments", err.Error())
				return nil
			}
			slots[slot] = rc
			return nil
		})
	}
	_ = g.Wait()

	var comments []types.Comment
	for _, rc := range slots {
		comments = append(comments, rc...)
	}
	return reviews, comments
}

// fetchCollaborators degrades to an empty roster, which demotes would-be
// collaborators to contributors rather than dropping them.
func (p *Pipeline) fetchCollaborators(ctx context.Context, repo string, logger *monitoring.Logger) []types.Participant {
	roster, err := p.collaborators.Collaborators(ctx, repo)
	if err != nil {
		logger.DegradedLogger("collaborators", err.Error())
		return nil
	}
	return roster
}

// fetchActivity degrades to nil, which counts every assignee as active.
func (p *Pipeline) fetchActivity(ctx context.Context, repo string, taskNumber int, logger *monitoring.Logger) map[int64]types.ActivityFlags {
	activity, err := p.tracker.Activity(ctx, repo, taskNumber)
	if err != nil {
		logger.DegradedLogger("activity", err.Error())
		return nil
	}
	return activity
}

// scoreSpecification scores the task body itself as the issuer's
// specification. The specification defines relevance, so it is never
// sampled against itself.
func (p *Pipeline) scoreSpecification(task types.Task, agg *aggregate.Aggregator) {
	r := p.rubrics.For(roles.ClassIssuerSpecification)
	score := scoring.ScoreComment(r, types.Comment{ID: task.ID, Author: task.Creator, Body: task.Body})
	agg.Add(task.Creator, aggregate.ScoreDetail{
		View:  roles.ViewTask,
		Role:  roles.RoleIssuer,
		Class: roles.ClassIssuerSpecification,
		Score: score.Total(),
	})
}

// classSet is one participant-class group of comments within a view.
type classSet struct {
	class    roles.Class
	author   types.Participant
	comments []types.Comment
}

// scoreView scores every classed human comment in one view, samples
// relevance per participant-class set, and folds the results into the
// aggregator.
func (p *Pipeline) scoreView(ctx context.Context, va roles.ViewAssignment, comments []types.Comment, specification string, agg *aggregate.Aggregator, logger *monitoring.Logger) {
	sets := groupByClass(va, comments)

	for _, set := range sets {
		r := p.rubrics.For(set.class)
		scores := scoring.ScoreComments(r, set.comments)

		if anyPositive(scores) {
			p.applyRelevance(ctx, specification, set, scores, logger)
		}

		role := va.RoleOf(set.author.ID)
		for _, cs := range scores {
			agg.Add(set.author, aggregate.ScoreDetail{
				View:      va.View,
				Role:      role,
				Class:     set.class,
				Score:     cs.Total(),
				CommentID: cs.CommentID,
			})
		}
	}
}

// applyRelevance samples the oracle for one comment set and writes the
// scores back positionally. A failed set degrades to zero relevance,
// zeroing the set's contribution while the rest of the run proceeds.
func (p *Pipeline) applyRelevance(ctx context.Context, specification string, set classSet, scores []scoring.CommentScore, logger *monitoring.Logger) {
	bodies := make([]string, len(set.comments))
	for i, c := range set.comments {
		bodies[i] = c.Body
	}

	relevances, err := p.sampler.Sample(ctx, specification, bodies)
	if err != nil || len(relevances) != len(scores) {
		reason := "relevance sample count mismatch"
		if err != nil {
			reason = err.Error()
		}
		logger.DegradedLogger("relevance", reason)
		for i := range scores {
			scores[i].Relevance = money.Zero()
		}
		return
	}

	for i := range scores {
		scores[i].Relevance = relevances[i]
	}
}

// groupByClass buckets a view's comments into per-participant,
// per-class sets in first-appearance order. Machine comments and
// strangers carry no class and are skipped.
func groupByClass(va roles.ViewAssignment, comments []types.Comment) []classSet {
	index := make(map[int64]int)
	var sets []classSet

	for _, c := range comments {
		if c.MachineAuthored() {
			continue
		}
		class := va.CommentClassOf(c.Author)
		if class == "" {
			continue
		}

		i, ok := index[c.Author.ID]
		if !ok {
			i = len(sets)
			index[c.Author.ID] = i
			sets = append(sets, classSet{class: class, author: c.Author})
		}
		sets[i].comments = append(sets[i].comments, c)
	}
	return sets
}

// anyPositive reports whether sampling can change the set's outcome.
// An all-zero base set stays zero at any relevance, so the oracle calls
// would be wasted.
func anyPositive(scores []scoring.CommentScore) bool {
	for _, s := range scores {
		if s.FormatScore.Add(s.WordScore).Sign() > 0 {
			return true
		}
	}
	return false
}

// post renders the settlement comment with its embedded receipt and
// appends it to the task thread.
func (p *Pipeline) post(ctx context.Context, runID string, task types.Task, settled *settlement.Settlement, logger *monitoring.Logger) (int64, []string, error) {
	payload := receiptPayload{
		RunID:     runID,
		Repo:      task.Repo,
		TaskID:    task.ID,
		Number:    task.Number,
		Currency:  settled.Currency,
		Total:     settled.Total().StringFixed(2),
		SettledAt: time.Now().UTC(),
	}

	permitIDs := make([]string, 0, len(settled.Rewards))
	for _, r := range settled.Rewards {
		payload.Rewards = append(payload.Rewards, receiptReward{
			Handle:   r.Participant.Handle,
			Amount:   r.Amount.StringFixed(2),
			PermitID: r.PermitID,
		})
		permitIDs = append(permitIDs, r.PermitID)
	}

	block, err := receipt.Embed(receipt.SettlementClass, p.receiptCaller, payload)
	if err != nil {
		return 0, nil, errors.NewInternalError("embed settlement receipt", err)
	}

	body := settlement.RenderComment(settled, block)
	commentID, err := p.tracker.PostComment(ctx, task.Repo, task.Number, body)
	if err != nil {
		return 0, nil, err
	}

	logger.Info("Settlement comment posted", "comment_id", commentID)
	return commentID, permitIDs, nil
}
