package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/usecase"
)

type printer struct {
	out    io.Writer
	colors bool
}

func newPrinter(out io.Writer, colors bool) *printer {
	return &printer{out: out, colors: colors}
}

func (p *printer) paint(attr color.Attribute, s string) string {
	if !p.colors {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(color.FgGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(color.FgYellow, "! "+fmt.Sprintf(format, args...)))
}

func (p *printer) Error(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(color.FgRed, "✗ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Table(headers []string, rows [][]string) {
	table := tablewriter.NewTable(p.out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(headers)
	_ = table.Bulk(rows)
	_ = table.Render()
}

// level colors an event level.
func (p *printer) level(l domain.EventLevel) string {
	switch l {
	case domain.LevelError:
		return p.paint(color.FgRed, string(l))
	case domain.LevelWarning:
		return p.paint(color.FgYellow, string(l))
	case domain.LevelDebug:
		return p.paint(color.FgHiBlack, string(l))
	}
	return string(l)
}

func (p *printer) reconcileStatus(s usecase.ReconcileStatus) string {
	switch s {
	case usecase.ReconcileRewritten, usecase.ReconcileMatched:
		return p.paint(color.FgGreen, string(s))
	case usecase.ReconcileFailed:
		return p.paint(color.FgRed, string(s))
	}
	return p.paint(color.FgYellow, string(s))
}

func runSummaryRows(r domain.RunResult) [][]string {
	posts := make([]string, len(r.PostIDs))
	for i, id := range r.PostIDs {
		posts[i] = strconv.Itoa(id)
	}
	return [][]string{
		{"job", r.JobName},
		{"run id", r.RunID},
		{"created", strconv.Itoa(r.Created)},
		{"updated", strconv.Itoa(r.Updated)},
		{"skipped", strconv.Itoa(r.Skipped)},
		{"failed", strconv.Itoa(r.Failed)},
		{"cancelled", strconv.FormatBool(r.Cancelled)},
		{"duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()},
		{"posts", strings.Join(posts, ", ")},
	}
}

func (p *printer) reconcileRows(report usecase.ReconcileReport) [][]string {
	rows := make([][]string, 0, len(report.Entries))
	for _, e := range report.Entries {
		rows = append(rows, []string{
			strconv.Itoa(e.PostID),
			e.Slug,
			e.Code,
			e.Floor,
			e.ContentID,
			p.reconcileStatus(e.Status),
			e.Err,
		})
	}
	return rows
}

func floorRows(floors []domain.Floor) [][]string {
	rows := make([][]string, 0, len(floors))
	for _, f := range floors {
		rows = append(rows, []string{f.SiteCode, f.ServiceCode, f.ServiceName, f.FloorCode, f.FloorName})
	}
	return rows
}

func (p *printer) eventRows(events []domain.Event) [][]string {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			ev.Time.Local().Format("2006-01-02 15:04:05"),
			p.level(ev.Level),
			string(ev.Type),
			ev.Message,
			shortID(ev.RunID),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
