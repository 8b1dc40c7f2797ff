package roles

import (
	"sort"

	"github.com/taskforge/rewards/internal/types"
)

// ViewAssignment is the role classification for one view: three disjoint
// seed sets plus the derived contributor set.
type ViewAssignment struct {
	View          View
	Issuer        types.Participant
	Assignees     []types.Participant
	Collaborators []types.Participant
	Contributors  []types.Participant
}

// Assignment is the full classification for a task across both views. The
// issuer and assignees are the same people in both views; only the
// candidate comment pool differs.
type Assignment struct {
	Task   ViewAssignment
	Review ViewAssignment
}

// Input carries everything the classifier needs for one run.
type Input struct {
	Task           types.Task
	Collaborators  []types.Participant // repository-level access; empty on fetch failure
	TaskComments   []types.Comment
	ReviewComments []types.Comment
	// Activity holds idle-timer verdicts keyed by participant id. Absent
	// entries count as active.
	Activity map[int64]types.ActivityFlags
}

// Classify assigns every human participant to contribution classes for the
// task view and the review view. Seed sets are kept disjoint: the issuer
// never appears among collaborators or contributors, assignees never among
// contributors, and each derived set is deduplicated by id.
func Classify(in Input) Assignment {
	assignees := activeAssignees(in.Task.Assignees, in.Activity)

	return Assignment{
		Task:   classifyView(ViewTask, in.Task.Creator, assignees, in.Collaborators, in.TaskComments),
		Review: classifyView(ViewReview, in.Task.Creator, assignees, in.Collaborators, in.ReviewComments),
	}
}

func classifyView(view View, issuer types.Participant, assignees, collaborators []types.Participant, comments []types.Comment) ViewAssignment {
	seedIDs := map[int64]bool{issuer.ID: true}
	for _, a := range assignees {
		seedIDs[a.ID] = true
	}

	// Collaborator seed set, with the issuer and assignees carved out so a
	// participant holds at most one role per view.
	cleanCollaborators := make([]types.Participant, 0, len(collaborators))
	collaboratorIDs := make(map[int64]bool)
	for _, c := range collaborators {
		if seedIDs[c.ID] || collaboratorIDs[c.ID] {
			continue
		}
		collaboratorIDs[c.ID] = true
		cleanCollaborators = append(cleanCollaborators, c)
	}

	// Contributors: every human commenter not already seeded.
	contributors := make([]types.Participant, 0)
	seen := make(map[int64]bool)
	for _, c := range comments {
		if c.MachineAuthored() {
			continue
		}
		id := c.Author.ID
		if seedIDs[id] || collaboratorIDs[id] || seen[id] {
			continue
		}
		seen[id] = true
		contributors = append(contributors, c.Author)
	}

	sort.Slice(contributors, func(i, j int) bool { return contributors[i].ID < contributors[j].ID })

	return ViewAssignment{
		View:          view,
		Issuer:        issuer,
		Assignees:     assignees,
		Collaborators: cleanCollaborators,
		Contributors:  contributors,
	}
}

// activeAssignees drops assignees the idle timer disqualified.
func activeAssignees(assignees []types.Participant, activity map[int64]types.ActivityFlags) []types.Participant {
	if activity == nil {
		return assignees
	}

	active := make([]types.Participant, 0, len(assignees))
	for _, a := range assignees {
		if flags, ok := activity[a.ID]; ok && !flags.RemainedActive {
			continue
		}
		active = append(active, a)
	}
	return active
}

// RoleOf returns the participant's role within the view.
func (va ViewAssignment) RoleOf(id int64) Role {
	if va.Issuer.ID == id {
		return RoleIssuer
	}
	for _, a := range va.Assignees {
		if a.ID == id {
			return RoleAssignee
		}
	}
	for _, c := range va.Collaborators {
		if c.ID == id {
			return RoleCollaborator
		}
	}
	for _, c := range va.Contributors {
		if c.ID == id {
			return RoleContributor
		}
	}
	return RoleNone
}

// CommentClassOf returns the comment class for the author within the view,
// or "" for participants with no role (machine authors and strangers).
func (va ViewAssignment) CommentClassOf(author types.Participant) Class {
	role := va.RoleOf(author.ID)
	if role == RoleNone {
		return ""
	}
	return CommentClass(va.View, role)
}

// ByView returns the assignment for the given view.
func (a Assignment) ByView(view View) ViewAssignment {
	if view == ViewReview {
		return a.Review
	}
	return a.Task
}
