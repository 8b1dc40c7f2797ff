// Package adapters holds the HTTP clients for the three external
// collaborators: the issue tracker, the relevance oracle and the payout
// signer.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/resilience"
	"github.com/taskforge/rewards/internal/types"
)

// trackerUser is the tracker's wire shape for an account.
type trackerUser struct {
	ID     int64  `json:"id"`
	Login  string `json:"login"`
	Type   string `json:"type"`
	IsBot  bool   `json:"is_bot"`
	Active bool   `json:"active"`
}

func (u trackerUser) participant() types.Participant {
	return types.Participant{ID: u.ID, Handle: u.Login}
}

func (u trackerUser) authorKind() types.AuthorKind {
	if u.IsBot || u.Type == "Bot" {
		return types.AuthorMachine
	}
	return types.AuthorHuman
}

// trackerIssue is the tracker's wire shape for a task.
type trackerIssue struct {
	ID        int64         `json:"id"`
	Number    int           `json:"number"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	User      trackerUser   `json:"user"`
	Assignees []trackerUser `json:"assignees"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	State       string `json:"state"`
	StateReason string `json:"state_reason"`
}

// trackerComment is the tracker's wire shape for a thread entry.
type trackerComment struct {
	ID   int64       `json:"id"`
	User trackerUser `json:"user"`
	Body string      `json:"body"`
}

// trackerReview is the tracker's wire shape for a linked pull request.
type trackerReview struct {
	ID     int64       `json:"id"`
	Number int         `json:"number"`
	Title  string      `json:"title"`
	User   trackerUser `json:"user"`
}

// TrackerAdapter fetches tasks, threads and membership from the issue
// tracker and posts the settlement comment back.
type TrackerAdapter struct {
	baseURL string
	token   string
	pool    *resilience.HTTPPool
	logger  *monitoring.Logger
}

// NewTrackerAdapter creates a tracker client over the shared pool.
func NewTrackerAdapter(baseURL, token string, pool *resilience.HTTPPool, logger *monitoring.Logger) *TrackerAdapter {
	return &TrackerAdapter{
		baseURL: baseURL,
		token:   token,
		pool:    pool,
		logger:  logger,
	}
}

func (t *TrackerAdapter) headers() map[string]string {
	h := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	if t.token != "" {
		h["Authorization"] = "Bearer " + t.token
	}
	return h
}

// get issues a GET and decodes the JSON body into out.
func (t *TrackerAdapter) get(ctx context.Context, endpoint string, out any) error {
	url := t.baseURL + endpoint

	start := time.Now()
	resp, err := t.pool.DoRequest(ctx, http.MethodGet, url, t.headers(), nil)
	if err != nil {
		t.logger.ExternalAPILogger("tracker", http.MethodGet, endpoint, 0, time.Since(start), false)
		return errors.NewExternalAPIError("tracker", err)
	}
	defer resp.Body.Close()

	t.logger.ExternalAPILogger("tracker", http.MethodGet, endpoint, resp.StatusCode, time.Since(start), resp.StatusCode == http.StatusOK)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.NewExternalAPIError("tracker",
			fmt.Errorf("status %d from %s: %s", resp.StatusCode, endpoint, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewExternalAPIError("tracker", fmt.Errorf("decode %s: %w", endpoint, err))
	}
	return nil
}

// Task fetches the task itself.
func (t *TrackerAdapter) Task(ctx context.Context, repo string, number int) (types.Task, error) {
	var issue trackerIssue
	if err := t.get(ctx, fmt.Sprintf("/repos/%s/issues/%d", repo, number), &issue); err != nil {
		return types.Task{}, err
	}

	task := types.Task{
		ID:          issue.ID,
		Number:      issue.Number,
		Repo:        repo,
		Title:       issue.Title,
		Body:        issue.Body,
		Creator:     issue.User.participant(),
		State:       issue.State,
		StateReason: issue.StateReason,
	}
	for _, a := range issue.Assignees {
		task.Assignees = append(task.Assignees, a.participant())
	}
	for _, l := range issue.Labels {
		task.Labels = append(task.Labels, l.Name)
	}
	return task, nil
}

// TaskComments fetches the task conversation in thread order.
func (t *TrackerAdapter) TaskComments(ctx context.Context, repo string, number int) ([]types.Comment, error) {
	var raw []trackerComment
	if err := t.get(ctx, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number), &raw); err != nil {
		return nil, err
	}
	return convertComments(raw), nil
}

// LinkedReviews fetches the pull requests that declare this task as the
// work they close.
func (t *TrackerAdapter) LinkedReviews(ctx context.Context, repo string, number int) ([]types.Review, error) {
	var raw []trackerReview
	if err := t.get(ctx, fmt.Sprintf("/repos/%s/issues/%d/linked-pulls", repo, number), &raw); err != nil {
		return nil, err
	}

	reviews := make([]types.Review, 0, len(raw))
	for _, r := range raw {
		reviews = append(reviews, types.Review{
			ID:     r.ID,
			Number: r.Number,
			Title:  r.Title,
			Author: r.User.participant(),
		})
	}
	return reviews, nil
}

// ReviewComments fetches a review conversation in thread order.
func (t *TrackerAdapter) ReviewComments(ctx context.Context, repo string, number int) ([]types.Comment, error) {
	var raw []trackerComment
	if err := t.get(ctx, fmt.Sprintf("/repos/%s/pulls/%d/comments", repo, number), &raw); err != nil {
		return nil, err
	}
	return convertComments(raw), nil
}

// Collaborators fetches the repository membership roster.
func (t *TrackerAdapter) Collaborators(ctx context.Context, repo string) ([]types.Participant, error) {
	var raw []trackerUser
	if err := t.get(ctx, fmt.Sprintf("/repos/%s/collaborators", repo), &raw); err != nil {
		return nil, err
	}

	out := make([]types.Participant, 0, len(raw))
	for _, u := range raw {
		out = append(out, u.participant())
	}
	return out, nil
}

// Activity fetches the per-assignee idle-timer verdicts for a task.
func (t *TrackerAdapter) Activity(ctx context.Context, repo string, number int) (map[int64]types.ActivityFlags, error) {
	var raw []struct {
		UserID         int64 `json:"user_id"`
		RemainedActive bool  `json:"remained_active"`
	}
	if err := t.get(ctx, fmt.Sprintf("/repos/%s/issues/%d/activity", repo, number), &raw); err != nil {
		return nil, err
	}

	out := make(map[int64]types.ActivityFlags, len(raw))
	for _, r := range raw {
		out[r.UserID] = types.ActivityFlags{RemainedActive: r.RemainedActive}
	}
	return out, nil
}

// PostComment appends a comment to the task thread and returns its id.
func (t *TrackerAdapter) PostComment(ctx context.Context, repo string, number int, body string) (int64, error) {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return 0, errors.NewInternalError("encode comment", err)
	}

	endpoint := fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number)
	start := time.Now()
	resp, err := t.pool.DoRequest(ctx, http.MethodPost, t.baseURL+endpoint, t.headers(), payload)
	if err != nil {
		t.logger.ExternalAPILogger("tracker", http.MethodPost, endpoint, 0, time.Since(start), false)
		return 0, errors.NewExternalAPIError("tracker", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK
	t.logger.ExternalAPILogger("tracker", http.MethodPost, endpoint, resp.StatusCode, time.Since(start), ok)

	if !ok {
		body, _ := io.ReadAll(resp.Body)
		return 0, errors.NewExternalAPIError("tracker",
			fmt.Errorf("status %d posting comment: %s", resp.StatusCode, string(body)))
	}

	var created trackerComment
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, errors.NewExternalAPIError("tracker", fmt.Errorf("decode created comment: %w", err))
	}
	return created.ID, nil
}

func convertComments(raw []trackerComment) []types.Comment {
	out := make([]types.Comment, 0, len(raw))
	for _, c := range raw {
		out = append(out, types.Comment{
			ID:         c.ID,
			Author:     c.User.participant(),
			AuthorKind: c.User.authorKind(),
			Body:       c.Body,
		})
	}
	return out
}
