package scan

import (
	"encoding/json"
	"fmt"
	"io"
)

// Summary aggregates finding counts for a scan.
type Summary struct {
	FilesWithFindings int              `json:"files_with_findings"`
	Total             int              `json:"total"`
	BySeverity        map[Severity]int `json:"by_severity"`
	ByKind            map[Kind]int     `json:"by_kind"`
}

// Report pairs findings with their summary for output.
type Report struct {
	Root     string    `json:"root"`
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
}

// NewReport builds a report from scan results.
func NewReport(root string, findings []Finding) *Report {
	sum := Summary{
		Total:      len(findings),
		BySeverity: make(map[Severity]int),
		ByKind:     make(map[Kind]int),
	}
	files := make(map[string]struct{})
	for _, f := range findings {
		files[f.File] = struct{}{}
		sum.BySeverity[f.Severity]++
		sum.ByKind[f.Kind]++
	}
	sum.FilesWithFindings = len(files)
	return &Report{Root: root, Findings: findings, Summary: sum}
}

// HasHighSeverity reports whether any finding is high severity. The
// caller maps this to the process exit code.
func (r *Report) HasHighSeverity() bool {
	return r.Summary.BySeverity[SeverityHigh] > 0
}

// WriteText writes the human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	if len(r.Findings) == 0 {
		_, err := fmt.Fprintf(w, "scanned %s: no findings\n", r.Root)
		return err
	}
	for _, f := range r.Findings {
		if _, err := fmt.Fprintf(w, "%s:%d [%s/%s] %s\n",
			f.File, f.Line, f.Severity, f.Kind, f.Content); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%d finding(s) in %d file(s): %d high, %d medium\n",
		r.Summary.Total,
		r.Summary.FilesWithFindings,
		r.Summary.BySeverity[SeverityHigh],
		r.Summary.BySeverity[SeverityMedium])
	return err
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
