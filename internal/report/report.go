// Package report renders probe results for people and machines. The wrms
// client never formats output itself; commands pick a Renderer here.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// Format names accepted by New.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Renderer writes one or more result sets to w.
type Renderer interface {
	Render(w io.Writer, sets ...*wrms.ResultSet) error
}

// New returns the renderer for format.
func New(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return &TableRenderer{Style: table.StyleLight}, nil
	case FormatJSON:
		return &JSONRenderer{Indent: "  "}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s or %s)", format, FormatTable, FormatJSON)
	}
}

// TableRenderer renders one table per site followed by a fleet summary when
// more than one site is rendered.
type TableRenderer struct {
	Style table.Style

	// Color enables colored verdicts.
	Color bool
}

// Render implements Renderer.
func (r *TableRenderer) Render(w io.Writer, sets ...*wrms.ResultSet) error {
	for i, rs := range sets {
		if rs == nil {
			continue
		}
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		r.renderSet(w, rs)
	}

	if len(sets) > 1 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		r.renderSummary(w, sets)
	}
	return nil
}

// style returns the configured style with footers left as written.
func (r *TableRenderer) style() table.Style {
	style := r.Style
	if style.Name == "" {
		style = table.StyleLight
	}
	style.Format.Footer = text.FormatDefault
	return style
}

func (r *TableRenderer) renderSet(w io.Writer, rs *wrms.ResultSet) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(r.style())
	t.SetTitle(fmt.Sprintf("%s (%s)", rs.Site, rs.BaseURL))

	t.AppendHeader(table.Row{"Probe", "Result", "Kind", "Duration", "Detail"})
	for _, res := range rs.Results {
		t.AppendRow(table.Row{
			res.Name,
			r.verdict(res.Passed),
			string(res.Kind()),
			res.Duration.Round(time.Millisecond),
			Summarize(res),
		})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d/%d passed", rs.Passed, rs.Total()),
		"",
		rs.Duration().Round(time.Millisecond),
		"run " + rs.RunID,
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 72},
	})
	t.Render()
}

func (r *TableRenderer) renderSummary(w io.Writer, sets []*wrms.ResultSet) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(r.style())
	t.SetTitle("Fleet")
	t.AppendHeader(table.Row{"Site", "Result", "Passed", "Failed", "Failing probes"})

	ok := 0
	for _, rs := range sets {
		if rs == nil {
			continue
		}
		if rs.OK() {
			ok++
		}
		failing := make([]string, 0, rs.Failed)
		for _, f := range rs.Failures() {
			failing = append(failing, f.Name)
		}
		t.AppendRow(table.Row{rs.Site, r.verdict(rs.OK()), rs.Passed, rs.Failed, strings.Join(failing, ", ")})
	}
	t.AppendFooter(table.Row{"Sites", fmt.Sprintf("%d/%d ok", ok, len(sets)), "", "", ""})
	t.Render()
}

func (r *TableRenderer) verdict(passed bool) string {
	if passed {
		if r.Color {
			return text.FgGreen.Sprint("PASS")
		}
		return "PASS"
	}
	if r.Color {
		return text.FgRed.Sprint("FAIL")
	}
	return "FAIL"
}

// JSONRenderer writes a single result set as an object and several as an
// array.
type JSONRenderer struct {
	Indent string
}

// Render implements Renderer.
func (r *JSONRenderer) Render(w io.Writer, sets ...*wrms.ResultSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", r.Indent)

	if len(sets) == 1 {
		return enc.Encode(sets[0])
	}
	if sets == nil {
		sets = []*wrms.ResultSet{}
	}
	return enc.Encode(sets)
}

// Summarize returns a one-line description of a probe result.
func Summarize(res wrms.ProbeResult) string {
	if res.Err != nil {
		return res.Err.Error()
	}

	switch d := res.Detail.(type) {
	case wrms.AuthDetail:
		return fmt.Sprintf("valid key %d, invalid key %d", d.ValidKeyStatus, d.InvalidKeyStatus)
	case wrms.RateLimitDetail:
		return fmt.Sprintf("%d requested: %d ok, %d throttled, %d failed", d.Requested, d.Successful, d.RateLimited, d.Failed)
	case wrms.DataShapeDetail:
		return "fields present: " + strings.Join(d.Required, ", ")
	case wrms.NotFoundDetail:
		return fmt.Sprintf("%s answered %d", d.Path, d.StatusCode)
	case wrms.EndpointsDetail:
		names := make([]string, 0, len(d))
		for name := range d {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s %d", name, d[name]))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if v, ok := d["wordpress_version"]; ok {
			return fmt.Sprintf("WordPress %v", v)
		}
		return fmt.Sprintf("%d fields", len(d))
	default:
		return ""
	}
}
