package appprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

func TestParseCellOutput(t *testing.T) {
	cell, err := parseCellOutput("Budget.xlsx\x1fQ1\x1f$B$4\x1f36\x1f=A4*3\n")
	require.NoError(t, err)
	assert.Equal(t, event.SpreadsheetCell{Workbook: "Budget.xlsx", Sheet: "Q1", Cell: "B4", Value: "36", Formula: "=A4*3"}, cell)
}

func TestParseCellOutputDropsConstantFormula(t *testing.T) {
	cell, err := parseCellOutput("Book1\x1fSheet1\x1f$A$1\x1fhello\x1fhello")
	require.NoError(t, err)
	assert.Empty(t, cell.Formula)
	assert.Equal(t, "hello", cell.Value)
}

func TestParseCellOutputEmpty(t *testing.T) {
	_, err := parseCellOutput("\n")
	assert.ErrorIs(t, err, ErrNoWorkbook)
	_, err = parseCellOutput("Book1")
	assert.ErrorIs(t, err, ErrNoWorkbook)
}

func TestDocumentFromTitle(t *testing.T) {
	cases := []struct {
		name  string
		app   string
		title string
		want  event.DocumentState
		ok    bool
	}{
		{"acrobat", "AcroRd32", "report.pdf - Adobe Acrobat Reader DC", event.DocumentState{Document: "report.pdf", Viewer: "Adobe Acrobat Reader"}, true},
		{"preview page", "Preview", "contract.pdf – Page 3 of 12", event.DocumentState{Document: "contract.pdf", Viewer: "Preview", Page: 3}, true},
		{"page marker", "evince", "thesis.pdf (page 7 of 90) - Document Viewer", event.DocumentState{Document: "thesis.pdf", Viewer: "Document Viewer", Page: 7}, true},
		{"plain", "Preview", "invoice.pdf", event.DocumentState{Document: "invoice.pdf", Viewer: "Preview"}, true},
		{"unknown", "Preview", event.Unknown, event.DocumentState{}, false},
		{"empty", "Preview", "  ", event.DocumentState{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DocumentFromTitle(tc.app, tc.title)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
