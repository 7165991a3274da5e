//go:build !darwin && !windows

package appprobe

import (
	"context"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// DefaultSpreadsheet reports that no automation bridge exists here.
func DefaultSpreadsheet() (Spreadsheet, string) {
	return SpreadsheetFunc(func(context.Context) (event.SpreadsheetCell, error) {
		return event.SpreadsheetCell{}, ErrUnsupported
	}), "unavailable"
}
