package tools

import (
	"fmt"
	"strings"
)

// Excerpt limits, in characters.
const (
	resultExcerptLimit   = 500
	citationExcerptLimit = 300
	contentsExcerptLimit = 1000
	subpageExcerptLimit  = 500
)

// Markdown renders r for hosts that only display text.
func (r *Result) Markdown() string {
	var b strings.Builder
	switch r.Tool {
	case AnswerToolName:
		r.writeAnswer(&b)
	case ContentsToolName:
		r.writeContents(&b)
	case SimilarToolName:
		b.WriteString("## Similar Pages\n\n")
		r.writeItems(&b)
	default:
		b.WriteString("## Exa Search Results\n\n")
		if r.AutopromptString != nil && *r.AutopromptString != "" {
			fmt.Fprintf(&b, "**Refined Query:** %s\n\n", *r.AutopromptString)
		}
		r.writeItems(&b)
	}
	return b.String()
}

func (r *Result) writeItems(b *strings.Builder) {
	fmt.Fprintf(b, "**Total Results:** %d\n\n", len(r.Items))
	if len(r.Items) == 0 {
		b.WriteString("No results found.\n")
		return
	}

	for i, item := range r.Items {
		fmt.Fprintf(b, "### %d. [%s](%s)\n\n", i+1, titleOf(item), item.URL)
		if item.Image != nil && *item.Image != "" {
			fmt.Fprintf(b, "![image](%s)\n\n", *item.Image)
		}
		writeMeta(b, item)

		if len(item.Highlights) > 0 {
			b.WriteString("**Highlights:**\n\n")
			for _, h := range item.Highlights {
				fmt.Fprintf(b, "> %s\n", h)
			}
			b.WriteString("\n")
		}
		if item.Text != nil && *item.Text != "" {
			b.WriteString("**Content Excerpt:**\n\n")
			fmt.Fprintf(b, "```\n%s\n```\n\n", excerpt(*item.Text, resultExcerptLimit))
		}
		b.WriteString("---\n\n")
	}
}

func (r *Result) writeAnswer(b *strings.Builder) {
	b.WriteString("## Exa Answer\n\n")
	if r.Answer == nil {
		b.WriteString("No answer returned.\n")
		return
	}
	b.WriteString(r.Answer.Text)
	b.WriteString("\n\n")

	if len(r.Answer.Citations) == 0 {
		return
	}
	b.WriteString("### Sources\n\n")
	for i, c := range r.Answer.Citations {
		fmt.Fprintf(b, "%d. [%s](%s)\n", i+1, titleOf(c), c.URL)
		if c.Text != nil && *c.Text != "" {
			fmt.Fprintf(b, "   > %s\n", strings.ReplaceAll(excerpt(*c.Text, citationExcerptLimit), "\n", " "))
		}
	}
	b.WriteString("\n")
}

func (r *Result) writeContents(b *strings.Builder) {
	b.WriteString("## Exa Page Contents\n\n")
	for i, item := range r.Items {
		fmt.Fprintf(b, "### %d. %s\n\n", i+1, titleOf(item))
		fmt.Fprintf(b, "**URL:** %s\n", item.URL)
		if item.Error != nil {
			fmt.Fprintf(b, "**Error:** %s\n\n---\n\n", *item.Error)
			continue
		}
		writeMeta(b, item)

		if item.Summary != nil && *item.Summary != "" {
			fmt.Fprintf(b, "**Summary:**\n\n%s\n\n", *item.Summary)
		}
		if item.Text != nil && *item.Text != "" {
			fmt.Fprintf(b, "**Content:**\n\n```\n%s\n```\n\n", excerpt(*item.Text, contentsExcerptLimit))
		}
		if len(item.Links) > 0 {
			b.WriteString("**Links:**\n\n")
			for _, l := range item.Links {
				if l.Title != nil && *l.Title != "" {
					fmt.Fprintf(b, "- [%s](%s)\n", *l.Title, l.URL)
				} else {
					fmt.Fprintf(b, "- %s\n", l.URL)
				}
			}
			b.WriteString("\n")
		}
		if len(item.Subpages) > 0 {
			b.WriteString("**Subpages:**\n\n")
			for _, sub := range item.Subpages {
				fmt.Fprintf(b, "#### [%s](%s)\n\n", titleOf(sub), sub.URL)
				if sub.Text != nil && *sub.Text != "" {
					fmt.Fprintf(b, "```\n%s\n```\n\n", excerpt(*sub.Text, subpageExcerptLimit))
				}
			}
		}
		b.WriteString("---\n\n")
	}
}

func writeMeta(b *strings.Builder, item ResultItem) {
	if item.PublishedDate != nil && *item.PublishedDate != "" {
		fmt.Fprintf(b, "**Published:** %s\n", *item.PublishedDate)
	}
	if item.Author != nil && *item.Author != "" {
		fmt.Fprintf(b, "**Author:** %s\n", *item.Author)
	}
	if item.Score != nil {
		fmt.Fprintf(b, "**Relevance Score:** %.2f\n", *item.Score)
	}
	b.WriteString("\n")
}

func titleOf(item ResultItem) string {
	if item.Title != nil && strings.TrimSpace(*item.Title) != "" {
		return strings.TrimSpace(*item.Title)
	}
	if item.URL != "" {
		return item.URL
	}
	return "No title"
}

// excerpt cuts s to at most limit characters, marking the cut with "...".
func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
