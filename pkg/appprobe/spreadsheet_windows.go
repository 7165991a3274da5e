//go:build windows

package appprobe

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

const probeTimeout = 3 * time.Second

const excelScript = `$ErrorActionPreference = 'Stop'
try { $xl = [Runtime.InteropServices.Marshal]::GetActiveObject('Excel.Application') } catch { exit 0 }
if ($xl.Workbooks.Count -eq 0) { exit 0 }
$c = $xl.ActiveCell
$sep = [char]31
[Console]::Out.Write($xl.ActiveWorkbook.Name + $sep + $xl.ActiveSheet.Name + $sep + $c.Address() + $sep + [string]$c.Text + $sep + [string]$c.Formula)`

// DefaultSpreadsheet attaches to a running Excel instance over COM via PowerShell.
func DefaultSpreadsheet() (Spreadsheet, string) {
	bin, err := exec.LookPath("powershell.exe")
	if err != nil {
		return unsupported(), "unavailable"
	}
	return SpreadsheetFunc(func(ctx context.Context) (event.SpreadsheetCell, error) {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		out, err := exec.CommandContext(ctx, bin, "-NoProfile", "-NonInteractive", "-Command", excelScript).Output()
		if err != nil {
			return event.SpreadsheetCell{}, fmt.Errorf("powershell excel: %w", err)
		}
		return parseCellOutput(string(out))
	}), "com"
}

func unsupported() Spreadsheet {
	return SpreadsheetFunc(func(context.Context) (event.SpreadsheetCell, error) {
		return event.SpreadsheetCell{}, ErrUnsupported
	})
}
