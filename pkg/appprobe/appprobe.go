// Package appprobe reads application-specific state: the active spreadsheet
// cell and the document open in a viewer.
package appprobe

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// ErrUnsupported is returned when no spreadsheet automation exists on this host.
var ErrUnsupported = errors.New("spreadsheet automation unsupported on this platform")

// ErrNoWorkbook is returned when the spreadsheet application has no active cell.
var ErrNoWorkbook = errors.New("no active workbook")

// Spreadsheet reports the active cell of the foreground spreadsheet.
type Spreadsheet interface {
	ActiveCell(ctx context.Context) (event.SpreadsheetCell, error)
}

// SpreadsheetFunc adapts a function to Spreadsheet.
type SpreadsheetFunc func(ctx context.Context) (event.SpreadsheetCell, error)

// ActiveCell calls f.
func (f SpreadsheetFunc) ActiveCell(ctx context.Context) (event.SpreadsheetCell, error) {
	return f(ctx)
}

// cellFieldSeparator splits the fields printed by the automation scripts.
const cellFieldSeparator = "\x1f"

// parseCellOutput decodes "workbook␟sheet␟address␟value␟formula".
func parseCellOutput(out string) (event.SpreadsheetCell, error) {
	out = strings.TrimRight(out, "\r\n")
	if strings.TrimSpace(out) == "" {
		return event.SpreadsheetCell{}, ErrNoWorkbook
	}
	parts := strings.SplitN(out, cellFieldSeparator, 5)
	for len(parts) < 5 {
		parts = append(parts, "")
	}
	cell := event.SpreadsheetCell{
		Workbook: strings.TrimSpace(parts[0]),
		Sheet:    strings.TrimSpace(parts[1]),
		Cell:     strings.ReplaceAll(strings.TrimSpace(parts[2]), "$", ""),
		Value:    parts[3],
		Formula:  parts[4],
	}
	if cell.Workbook == "" || cell.Cell == "" {
		return event.SpreadsheetCell{}, ErrNoWorkbook
	}
	// Excel reports the value as the formula for constant cells.
	if !strings.HasPrefix(cell.Formula, "=") {
		cell.Formula = ""
	}
	return cell, nil
}

// viewerSuffixes maps window title suffixes to viewer names.
var viewerSuffixes = []struct {
	suffix string
	viewer string
}{
	{" - Adobe Acrobat Reader DC", "Adobe Acrobat Reader"},
	{" - Adobe Acrobat Reader", "Adobe Acrobat Reader"},
	{" - Adobe Acrobat Pro DC", "Adobe Acrobat"},
	{" - Adobe Acrobat", "Adobe Acrobat"},
	{" - Foxit PDF Reader", "Foxit PDF Reader"},
	{" - SumatraPDF", "SumatraPDF"},
	{" — Okular", "Okular"},
	{" - Okular", "Okular"},
	{" - Document Viewer", "Document Viewer"},
	{" - Evince", "Evince"},
}

// DocumentFromTitle derives the open document from a viewer window title.
// Page markers such as "(page 3 of 10)" are extracted when present. It
// returns false when the title names no document.
func DocumentFromTitle(app, title string) (event.DocumentState, bool) {
	title = strings.TrimSpace(title)
	if title == "" || title == event.Unknown {
		return event.DocumentState{}, false
	}
	viewer := app
	doc := title
	for _, v := range viewerSuffixes {
		if strings.HasSuffix(doc, v.suffix) {
			doc = strings.TrimSuffix(doc, v.suffix)
			viewer = v.viewer
			break
		}
	}

	page := 0
	if i := strings.LastIndex(strings.ToLower(doc), "(page "); i >= 0 && strings.HasSuffix(doc, ")") {
		fields := strings.Fields(doc[i+len("(page ") : len(doc)-1])
		if len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
				page = n
				doc = strings.TrimSpace(doc[:i])
			}
		}
	}
	// Preview shows "name.pdf – Page 3 of 10" on recent macOS releases.
	for _, sep := range []string{" – Page ", " - Page "} {
		if i := strings.Index(doc, sep); i >= 0 {
			fields := strings.Fields(doc[i+len(sep):])
			if len(fields) > 0 {
				if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
					page = n
					doc = strings.TrimSpace(doc[:i])
				}
			}
		}
	}

	doc = strings.TrimPrefix(doc, "* ")
	if doc == "" {
		return event.DocumentState{}, false
	}
	if viewer == "" {
		viewer = event.Unknown
	}
	return event.DocumentState{Document: doc, Viewer: viewer, Page: page}, true
}
