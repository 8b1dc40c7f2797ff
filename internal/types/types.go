package types

// Participant is the external identity of a human involved in a task.
type Participant struct {
	ID     int64  `json:"id"`
	Handle string `json:"handle"`
}

// AuthorKind distinguishes human comments from bot-authored ones.
type AuthorKind string

const (
	AuthorHuman   AuthorKind = "human"
	AuthorMachine AuthorKind = "machine"
)

// Comment is a single entry in a task or review thread.
type Comment struct {
	ID         int64       `json:"id"`
	Author     Participant `json:"author"`
	AuthorKind AuthorKind  `json:"author_kind"`
	Body       string      `json:"body"`
}

// MachineAuthored reports whether the comment was produced by a bot.
func (c Comment) MachineAuthored() bool {
	return c.AuthorKind == AuthorMachine
}

// Task is the unit of payable work: an issue with its price label,
// assignees and closure state.
type Task struct {
	ID          int64         `json:"id"`
	Number      int           `json:"number"`
	Repo        string        `json:"repo"`
	Title       string        `json:"title"`
	Body        string        `json:"body"`
	Creator     Participant   `json:"creator"`
	Assignees   []Participant `json:"assignees"`
	Labels      []string      `json:"labels"`
	State       string        `json:"state"`
	StateReason string        `json:"state_reason"`
}

// ClosedAsCompleted reports whether the task was closed because the work
// was done, as opposed to closed as not-planned or still open.
func (t Task) ClosedAsCompleted() bool {
	return t.State == "closed" && t.StateReason == "completed"
}

// Review is a secondary thread (a pull request) linked to a task.
type Review struct {
	ID     int64       `json:"id"`
	Number int         `json:"number"`
	Title  string      `json:"title"`
	Author Participant `json:"author"`
}

// ActivityFlags carries per-participant booleans fed in from outside the
// engine, such as the idle-disqualification timer's verdict.
type ActivityFlags struct {
	RemainedActive bool `json:"remained_active"`
}
