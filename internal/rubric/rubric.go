// Package rubric holds the per-class scoring tables: how much each
// structural element is worth, which elements are ignored, and the word
// value applied to plain text.
package rubric

import (
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/roles"
)

// ElementTag identifies one structural element type in comment text.
type ElementTag string

const (
	TagH1         ElementTag = "h1"
	TagH2         ElementTag = "h2"
	TagH3         ElementTag = "h3"
	TagH4         ElementTag = "h4"
	TagH5         ElementTag = "h5"
	TagH6         ElementTag = "h6"
	TagLink       ElementTag = "a"
	TagImage      ElementTag = "img"
	TagCodeBlock  ElementTag = "pre"
	TagCodeInline ElementTag = "code"
	TagListItem   ElementTag = "li"
	TagBlockquote ElementTag = "blockquote"
	TagTableCell  ElementTag = "td"
	TagLineBreak  ElementTag = "br"
	TagParagraph  ElementTag = "p"
	TagEmphasis   ElementTag = "em"
)

// Rubric is the scoring configuration for one contribution class. Loaded
// once per run and never mutated during scoring.
type Rubric struct {
	FormatMultiplier money.Dec
	WordValue        money.Dec
	ElementValues    map[ElementTag]money.Dec
	Disabled         map[ElementTag]bool
}

// IsDisabled reports whether the element type is excluded from scoring.
// Disabled elements contribute no format score and their text is excluded
// from word counting.
func (r Rubric) IsDisabled(tag ElementTag) bool {
	return r.Disabled[tag]
}

// ElementValue returns the configured base value for an element type, or
// zero when the type is disabled or unconfigured.
func (r Rubric) ElementValue(tag ElementTag) money.Dec {
	if r.IsDisabled(tag) {
		return money.Zero()
	}
	return r.ElementValues[tag]
}

// DefaultElementValues returns the base per-occurrence values shared by
// the default rubrics.
func DefaultElementValues() map[ElementTag]money.Dec {
	return map[ElementTag]money.Dec{
		TagH1:         money.FromInt(1),
		TagH2:         money.FromInt(1),
		TagH3:         money.FromInt(1),
		TagH4:         money.FromInt(1),
		TagH5:         money.FromInt(1),
		TagH6:         money.FromInt(1),
		TagLink:       money.FromInt(1),
		TagCodeBlock:  money.FromInt(1),
		TagCodeInline: money.MustParse("0.1"),
		TagListItem:   money.MustParse("0.5"),
		TagTableCell:  money.MustParse("0.1"),
		// Quoted text, emphasis and images carry no value of their own;
		// rewarding them double-incentivizes boilerplate.
		TagImage:      money.Zero(),
		TagBlockquote: money.Zero(),
		TagEmphasis:   money.Zero(),
		TagLineBreak:  money.Zero(),
		TagParagraph:  money.Zero(),
	}
}

// DefaultDisabled returns the element types excluded by default.
func DefaultDisabled() map[ElementTag]bool {
	return map[ElementTag]bool{
		TagImage:      true,
		TagBlockquote: true,
		TagEmphasis:   true,
	}
}

// Table maps every contribution class to its rubric.
type Table map[roles.Class]Rubric

// For returns the rubric for a class. Unconfigured classes score zero.
func (t Table) For(class roles.Class) Rubric {
	if r, ok := t[class]; ok {
		return r
	}
	return Rubric{
		FormatMultiplier: money.Zero(),
		WordValue:        money.Zero(),
		ElementValues:    DefaultElementValues(),
		Disabled:         DefaultDisabled(),
	}
}

func defaultRubric(formatMultiplier, wordValue string) Rubric {
	return Rubric{
		FormatMultiplier: money.MustParse(formatMultiplier),
		WordValue:        money.MustParse(wordValue),
		ElementValues:    DefaultElementValues(),
		Disabled:         DefaultDisabled(),
	}
}

// DefaultTable returns the stock rubric per contribution class. The
// assignee comment rubric is all-zero: assignees are paid through the
// task-completion reward, not for chatting.
func DefaultTable() Table {
	return Table{
		roles.ClassIssuerSpecification: defaultRubric("1", "0.1"),
		roles.ClassIssuerComment:       defaultRubric("1", "0.2"),
		roles.ClassAssigneeComment:     defaultRubric("0", "0"),
		roles.ClassCollaboratorComment: defaultRubric("1", "0.25"),
		roles.ClassContributorComment:  defaultRubric("0.25", "0.1"),

		roles.ClassReviewerIssuerComment:       defaultRubric("1", "0.2"),
		roles.ClassReviewerAssigneeComment:     defaultRubric("0.5", "0.1"),
		roles.ClassReviewerCollaboratorComment: defaultRubric("1", "0.25"),
		roles.ClassReviewerContributorComment:  defaultRubric("0.25", "0.1"),
	}
}
