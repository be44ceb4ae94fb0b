package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"delegate/api/internal/digest"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html").Funcs(template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.UTC().Format(layout)
		},
	}).ParseFS(templateFS, "templates/report.html"),
)

// TemplateData holds data for report template rendering
type TemplateData struct {
	Title       string
	GeneratedAt time.Time
	Sections    []TemplateSection
	Failures    []digest.Failure
}

// TemplateSection is one report section; SummaryHTML is already sanitised.
type TemplateSection struct {
	Heading     string
	Subtitle    string
	SummaryHTML template.HTML
	Rows        []row
}

func templateData(d digest.Digest, generatedAt time.Time) TemplateData {
	data := TemplateData{
		Title:       reportTitle(d.Tab),
		GeneratedAt: generatedAt,
		Failures:    d.Failures,
	}
	for _, sec := range sections(d) {
		ts := TemplateSection{Heading: sec.Heading, Subtitle: sec.Subtitle, Rows: sec.Rows}
		if strings.TrimSpace(sec.Summary) != "" {
			ts.SummaryHTML = template.HTML(markdownToHTML(sec.Summary))
		}
		data.Sections = append(data.Sections, ts)
	}
	return data
}

// RenderHTML renders a digest into a standalone HTML page.
func RenderHTML(d digest.Digest, generatedAt time.Time) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, templateData(d, generatedAt)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
