package scoring

import (
	"regexp"
	"strings"

	"github.com/taskforge/rewards/internal/rubric"
)

// Element is one structural occurrence in a comment body: its type and the
// plain text it carries. The tokenizer covers exactly the element set the
// rubrics can value; it is not a markdown renderer.
type Element struct {
	Tag  rubric.ElementTag
	Text string
}

var (
	headerRe    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	listItemRe  = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+(.*)$`)
	tableSepRe  = regexp.MustCompile(`^\|?[\s:|-]+\|?$`)
	imageRe     = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]*)\)`)
	linkRe      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]*)\)`)
	inlineRe    = regexp.MustCompile("`([^`\n]+)`")
	strongRe    = regexp.MustCompile(`(\*\*|__)([^*_]+)(\*\*|__)`)
	emphasisRe  = regexp.MustCompile(`(\*|_)([^*_\s][^*_]*)(\*|_)`)
	fenceOpenRe = regexp.MustCompile("^(```|~~~)")
)

var headerTags = []rubric.ElementTag{
	rubric.TagH1, rubric.TagH2, rubric.TagH3,
	rubric.TagH4, rubric.TagH5, rubric.TagH6,
}

// Tokenize renders a comment body into its structural elements. Block
// structure is resolved line by line; inline elements (links, images,
// inline code, emphasis) are lifted out of their containing block so each
// piece of text belongs to exactly one element.
func Tokenize(body string) []Element {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")

	var elements []Element
	var paragraph []string
	var fence []string
	inFence := false

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		// Newlines inside a paragraph are hard breaks.
		for i := 1; i < len(paragraph); i++ {
			elements = append(elements, Element{Tag: rubric.TagLineBreak})
		}
		text, inline := extractInline(strings.Join(paragraph, " "))
		elements = append(elements, Element{Tag: rubric.TagParagraph, Text: text})
		elements = append(elements, inline...)
		paragraph = nil
	}

	for _, line := range lines {
		if inFence {
			if fenceOpenRe.MatchString(strings.TrimSpace(line)) {
				elements = append(elements, Element{Tag: rubric.TagCodeBlock, Text: strings.Join(fence, "\n")})
				fence = nil
				inFence = false
				continue
			}
			fence = append(fence, line)
			continue
		}

		trimmed := strings.TrimSpace(line)

		switch {
		case fenceOpenRe.MatchString(trimmed):
			flushParagraph()
			inFence = true

		case trimmed == "":
			flushParagraph()

		case headerRe.MatchString(trimmed):
			flushParagraph()
			m := headerRe.FindStringSubmatch(trimmed)
			text, inline := extractInline(m[2])
			elements = append(elements, Element{Tag: headerTags[len(m[1])-1], Text: text})
			elements = append(elements, inline...)

		case strings.HasPrefix(trimmed, ">"):
			flushParagraph()
			quoted := strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))
			elements = append(elements, Element{Tag: rubric.TagBlockquote, Text: stripInline(quoted)})

		case strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|"):
			flushParagraph()
			if tableSepRe.MatchString(trimmed) {
				continue
			}
			cells := strings.Split(strings.Trim(trimmed, "|"), "|")
			for _, cell := range cells {
				text, inline := extractInline(strings.TrimSpace(cell))
				elements = append(elements, Element{Tag: rubric.TagTableCell, Text: text})
				elements = append(elements, inline...)
			}

		case listItemRe.MatchString(line):
			flushParagraph()
			m := listItemRe.FindStringSubmatch(line)
			text, inline := extractInline(m[1])
			elements = append(elements, Element{Tag: rubric.TagListItem, Text: text})
			elements = append(elements, inline...)

		default:
			paragraph = append(paragraph, trimmed)
		}
	}

	// An unterminated fence still counts as a code block.
	if inFence {
		elements = append(elements, Element{Tag: rubric.TagCodeBlock, Text: strings.Join(fence, "\n")})
	}
	flushParagraph()

	return elements
}

// extractInline lifts inline elements out of block text. The returned
// string is the remaining plain text; the returned elements carry the text
// that was lifted out.
func extractInline(text string) (string, []Element) {
	var inline []Element

	text = imageRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := imageRe.FindStringSubmatch(m)
		inline = append(inline, Element{Tag: rubric.TagImage, Text: sub[1]})
		return " "
	})

	text = linkRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		inline = append(inline, Element{Tag: rubric.TagLink, Text: sub[1]})
		return " "
	})

	text = inlineRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := inlineRe.FindStringSubmatch(m)
		inline = append(inline, Element{Tag: rubric.TagCodeInline, Text: sub[1]})
		return " "
	})

	text = strongRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := strongRe.FindStringSubmatch(m)
		inline = append(inline, Element{Tag: rubric.TagEmphasis, Text: sub[2]})
		return " "
	})

	text = emphasisRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := emphasisRe.FindStringSubmatch(m)
		inline = append(inline, Element{Tag: rubric.TagEmphasis, Text: sub[2]})
		return " "
	})

	return strings.TrimSpace(text), inline
}

// stripInline removes inline markup, keeping only the carried text. Used
// for blocks whose inner structure is not scored separately.
func stripInline(text string) string {
	text = imageRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = inlineRe.ReplaceAllString(text, "$1")
	text = strongRe.ReplaceAllString(text, "$2")
	text = emphasisRe.ReplaceAllString(text, "$2")
	return strings.TrimSpace(text)
}
