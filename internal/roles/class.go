package roles

// View identifies which thread a contribution belongs to.
type View string

const (
	ViewTask   View = "task"
	ViewReview View = "review"
)

// Role is a participant's relation to the task within a view.
type Role string

const (
	RoleIssuer       Role = "issuer"
	RoleAssignee     Role = "assignee"
	RoleCollaborator Role = "collaborator"
	RoleContributor  Role = "contributor"
	RoleNone         Role = "none"
)

// Class tags one kind of rewardable contribution. The set is closed;
// every class selects exactly one scoring rubric and reward treatment.
type Class string

const (
	ClassIssuerComment       Class = "IssuerComment"
	ClassAssigneeComment     Class = "AssigneeComment"
	ClassCollaboratorComment Class = "CollaboratorComment"
	ClassContributorComment  Class = "ContributorComment"
	ClassIssuerSpecification Class = "IssuerSpecification"
	ClassAssigneeTask        Class = "AssigneeTask"

	ClassReviewerIssuerComment       Class = "ReviewerIssuerComment"
	ClassReviewerAssigneeComment     Class = "ReviewerAssigneeComment"
	ClassReviewerCollaboratorComment Class = "ReviewerCollaboratorComment"
	ClassReviewerContributorComment  Class = "ReviewerContributorComment"
)

// ClassInfo is the static shape of a class: which view and role it applies
// to, and whether it maps to one participant or a set.
type ClassInfo struct {
	View     View
	Role     Role
	Singular bool
}

var classTable = map[Class]ClassInfo{
	ClassIssuerComment:       {View: ViewTask, Role: RoleIssuer, Singular: true},
	ClassAssigneeComment:     {View: ViewTask, Role: RoleAssignee, Singular: false},
	ClassCollaboratorComment: {View: ViewTask, Role: RoleCollaborator, Singular: false},
	ClassContributorComment:  {View: ViewTask, Role: RoleContributor, Singular: false},
	ClassIssuerSpecification: {View: ViewTask, Role: RoleIssuer, Singular: true},
	ClassAssigneeTask:        {View: ViewTask, Role: RoleAssignee, Singular: false},

	ClassReviewerIssuerComment:       {View: ViewReview, Role: RoleIssuer, Singular: true},
	ClassReviewerAssigneeComment:     {View: ViewReview, Role: RoleAssignee, Singular: false},
	ClassReviewerCollaboratorComment: {View: ViewReview, Role: RoleCollaborator, Singular: false},
	ClassReviewerContributorComment:  {View: ViewReview, Role: RoleContributor, Singular: false},
}

// Info returns the static shape of the class.
func (c Class) Info() ClassInfo {
	return classTable[c]
}

// Valid reports whether c is a member of the closed class set.
func (c Class) Valid() bool {
	_, ok := classTable[c]
	return ok
}

// All returns every class in a stable order.
func All() []Class {
	return []Class{
		ClassIssuerComment,
		ClassAssigneeComment,
		ClassCollaboratorComment,
		ClassContributorComment,
		ClassIssuerSpecification,
		ClassAssigneeTask,
		ClassReviewerIssuerComment,
		ClassReviewerAssigneeComment,
		ClassReviewerCollaboratorComment,
		ClassReviewerContributorComment,
	}
}

// CommentClass returns the comment class for a (view, role) pair, or ""
// when the role has no comment class in that view.
func CommentClass(view View, role Role) Class {
	switch view {
	case ViewTask:
		switch role {
		case RoleIssuer:
			return ClassIssuerComment
		case RoleAssignee:
			return ClassAssigneeComment
		case RoleCollaborator:
			return ClassCollaboratorComment
		case RoleContributor:
			return ClassContributorComment
		}
	case ViewReview:
		switch role {
		case RoleIssuer:
			return ClassReviewerIssuerComment
		case RoleAssignee:
			return ClassReviewerAssigneeComment
		case RoleCollaborator:
			return ClassReviewerCollaboratorComment
		case RoleContributor:
			return ClassReviewerContributorComment
		}
	}
	return ""
}
