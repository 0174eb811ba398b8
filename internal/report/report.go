// Package report renders the per-run summary of check results as markdown
// and as a sanitized HTML page, and stores both with the run's artifacts.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/ssocheck/internal/artifacts"
	"github.com/kuitang/ssocheck/internal/checks"
	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/logutil"
)

const (
	MarkdownName = "report.md"
	HTMLName     = "report.html"
)

// Entry is one check's row.
type Entry struct {
	Check      string
	Passed     bool
	Attempts   int
	FinalState string
	Code       string
	Error      string
	Duration   time.Duration
}

// Report summarizes one run.
type Report struct {
	RunID     string
	Domain    string
	Started   time.Time
	Finished  time.Time
	Entries   []Entry
	Artifacts []string
}

// New builds a Report from runner results.
func New(runID, domain string, started, finished time.Time, results []checks.Result, files []string) *Report {
	r := &Report{
		RunID:     runID,
		Domain:    domain,
		Started:   started,
		Finished:  finished,
		Artifacts: files,
	}
	for _, res := range results {
		e := Entry{Check: res.Check, Passed: res.Passed(), Duration: res.Duration}
		if res.Login != nil {
			e.Attempts = res.Login.Attempts
			e.FinalState = res.Login.Final.String()
		}
		if res.Err != nil {
			e.Code = string(errs.CodeOf(res.Err))
			e.Error = res.Err.Error()
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, e := range r.Entries {
		if !e.Passed {
			return false
		}
	}
	return true
}

// Markdown renders the summary.
func (r *Report) Markdown() []byte {
	var b strings.Builder

	status := "PASSED"
	if !r.Passed() {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "# SSO check %s\n\n", status)
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- Domain: `%s`\n", r.Domain)
	fmt.Fprintf(&b, "- Started: %s\n", r.Started.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", r.Finished.Sub(r.Started).Round(time.Millisecond))

	b.WriteString("| Check | Status | Attempts | Final state | Duration | Error |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, e := range r.Entries {
		st := "pass"
		if !e.Passed {
			st = "**fail**"
		}
		attempts := "-"
		if e.Attempts > 0 {
			attempts = fmt.Sprint(e.Attempts)
		}
		msg := ""
		if e.Error != "" {
			msg = fmt.Sprintf("`%s` %s", e.Code, cell(e.Error))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(e.Check), st, attempts, cell(e.FinalState), e.Duration.Round(time.Millisecond), msg)
	}

	if len(r.Artifacts) > 0 {
		b.WriteString("\n## Artifacts\n\n")
		for _, f := range r.Artifacts {
			fmt.Fprintf(&b, "- [%s](%s)\n", f, f)
		}
	}
	return []byte(b.String())
}

// cell makes s safe inside a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return logutil.TruncateForLog(s, 300)
}

var pageTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>SSO check {{.RunID}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2em auto; padding: 0 1em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
</style></head>
<body>
{{.Body}}
</body></html>
`))

// HTML renders the markdown summary as a sanitized standalone page.
func (r *Report) HTML() ([]byte, error) {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse(r.Markdown())

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	body := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))

	var buf bytes.Buffer
	err := pageTmpl.Execute(&buf, struct {
		RunID string
		Body  template.HTML
	}{RunID: r.RunID, Body: template.HTML(body)})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "render report", err)
	}
	return buf.Bytes(), nil
}

// Save writes both renderings through rec and returns the markdown path.
func (r *Report) Save(ctx context.Context, rec *artifacts.Recorder) (string, error) {
	page, err := r.HTML()
	if err != nil {
		return "", err
	}
	md := rec.Save(ctx, MarkdownName, r.Markdown())
	rec.Save(ctx, HTMLName, page)
	return md, nil
}
