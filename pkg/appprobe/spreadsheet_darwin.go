//go:build darwin

package appprobe

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

const probeTimeout = 2 * time.Second

const excelScript = `tell application "Microsoft Excel"
	if (count of workbooks) is 0 then return ""
	set c to active cell
	set sep to ASCII character 31
	return (name of active workbook) & sep & (name of active sheet) & sep & (get address of c) & sep & (value of c as string) & sep & (formula of c as string)
end tell`

// DefaultSpreadsheet drives Microsoft Excel through osascript.
func DefaultSpreadsheet() (Spreadsheet, string) {
	bin, err := exec.LookPath("osascript")
	if err != nil {
		return unsupported(), "unavailable"
	}
	return SpreadsheetFunc(func(ctx context.Context) (event.SpreadsheetCell, error) {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		out, err := exec.CommandContext(ctx, bin, "-e", excelScript).Output()
		if err != nil {
			return event.SpreadsheetCell{}, fmt.Errorf("osascript excel: %w", err)
		}
		return parseCellOutput(string(out))
	}), "applescript"
}

func unsupported() Spreadsheet {
	return SpreadsheetFunc(func(context.Context) (event.SpreadsheetCell, error) {
		return event.SpreadsheetCell{}, ErrUnsupported
	})
}
