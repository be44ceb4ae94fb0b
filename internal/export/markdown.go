package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"delegate/api/internal/digest"
)

var (
	md       = goldmark.New(goldmark.WithExtensions(extension.GFM))
	sanitize = bluemonday.UGCPolicy()
)

// markdownToHTML renders model output and strips anything unsafe.
func markdownToHTML(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return sanitize.Sanitize("<p>" + src + "</p>")
	}
	return sanitize.Sanitize(buf.String())
}

// RenderMarkdown writes a digest as a Markdown document.
func RenderMarkdown(d digest.Digest, generatedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", reportTitle(d.Tab))
	fmt.Fprintf(&b, "_Generated %s_\n\n", generatedAt.UTC().Format("Jan 2, 2006 15:04 MST"))

	for _, sec := range sections(d) {
		fmt.Fprintf(&b, "## %s\n\n", sec.Heading)
		if sec.Subtitle != "" {
			fmt.Fprintf(&b, "%s\n\n", sec.Subtitle)
		}
		if sec.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(sec.Summary))
		}
		if len(sec.Rows) > 0 {
			b.WriteString("| Proposal | State | Result | Votes |\n")
			b.WriteString("| --- | --- | --- | --- |\n")
			for _, r := range sec.Rows {
				fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", escapeCell(r.Title), r.State, escapeCell(r.Result), r.Votes)
			}
			b.WriteString("\n")
		}
	}

	if len(d.Failures) > 0 {
		b.WriteString("## Unavailable\n\n")
		for _, f := range d.Failures {
			fmt.Fprintf(&b, "- %s: %s\n", f.DAO, f.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func reportTitle(tab digest.Tab) string {
	switch tab {
	case digest.TabUpdates:
		return "Monthly DAO updates"
	case digest.TabProposals:
		return "Weekly proposals"
	default:
		return "Global DAO overview"
	}
}

// section is one DAO (or the weekly list) in a rendered report.
type section struct {
	Heading  string
	Subtitle string
	Summary  string
	Rows     []row
}

type row struct {
	Title  string
	State  string
	Result string
	Votes  int
}

func sections(d digest.Digest) []section {
	var out []section
	for _, g := range d.Global {
		out = append(out, section{
			Heading: g.DAO.Name,
			Subtitle: fmt.Sprintf("%d proposals, %d votes, %d followers. %d proposals in the last 30 days.",
				g.Space.ProposalsCount, g.Space.VotesCount, g.Space.FollowersCount, g.RecentCount),
			Summary: g.Summary.Text,
		})
	}
	for _, m := range d.Monthly {
		sec := section{
			Heading: m.DAO.Name,
			Subtitle: fmt.Sprintf("%d active, %d closed, %d votes in the last 30 days.",
				m.ActiveProposals, m.ClosedProposals, m.TotalVotes),
			Summary: m.Summary,
		}
		for _, p := range m.Proposals {
			sec.Rows = append(sec.Rows, row{Title: p.Title, State: string(p.State), Result: p.Result, Votes: p.Votes})
		}
		out = append(out, sec)
	}
	if d.Weekly != nil {
		sec := section{Heading: "This week"}
		if d.WeeklySummary != nil {
			sec.Summary = d.WeeklySummary.Text
		}
		items := d.Weekly.Items
		sec.Subtitle = fmt.Sprintf("Page %d of %d, %d proposals.", items.Page, max(items.TotalPages, 1), items.Total)
		for _, it := range items.Items {
			sec.Rows = append(sec.Rows, row{
				Title:  fmt.Sprintf("%s (%s)", it.Title, it.DAOName),
				State:  string(it.State),
				Result: it.Result,
				Votes:  it.Votes,
			})
		}
		out = append(out, sec)
	}
	return out
}
