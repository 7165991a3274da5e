package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// Write inserts one event into the table for its modality.
func (s *Store) Write(ctx context.Context, ev event.Event) error {
	query, args, err := insertFor(ev)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", ev.Table(), err)
	}
	return nil
}

func insertFor(ev event.Event) (string, []any, error) {
	common := []any{formatTime(ev.Timestamp), ev.SessionID, ev.Modality().String(), orUnknown(ev.App), orUnknown(ev.Window)}
	blob := nullableBytes(ev.EncryptedBlob)

	switch p := ev.Payload.(type) {
	case event.ScreenFrame:
		return insert(event.TableScreen, []string{"width", "height", "quality", "compressed_data", "raw_data"},
			common, blob, p.Width, p.Height, p.Quality, nonNilBytes(p.Compressed), nullableBytes(p.Raw))
	case event.Keystroke:
		return insert(event.TableKeystroke, []string{"key_name", "char", "special"},
			common, blob, p.Key, nullableString(p.Char), p.Special)
	case event.MovementBatch:
		samples, err := json.Marshal(p.Samples)
		if err != nil {
			return "", nil, fmt.Errorf("encode samples: %w", err)
		}
		var x, y any
		if n := len(p.Samples); n > 0 {
			x, y = p.Samples[n-1].X, p.Samples[n-1].Y
		}
		return insert(event.TablePointerEvent, []string{"x", "y", "samples", "sample_count"},
			common, blob, x, y, string(samples), p.Count())
	case event.PointerClick:
		return insert(event.TablePointerEvent, []string{"x", "y", "button", "pressed"},
			common, blob, p.X, p.Y, p.Button, p.Pressed)
	case event.PointerScroll:
		return insert(event.TablePointerEvent, []string{"x", "y", "dx", "dy"},
			common, blob, p.X, p.Y, p.DX, p.DY)
	case event.AppSwitch:
		return insert(event.TableAppUsage, []string{"action", "duration_ms"},
			common, blob, string(p.Action), p.Duration.Milliseconds())
	case event.FileChange:
		return insert(event.TableFileActivity, []string{"action", "path", "dest_path", "size", "is_dir"},
			common, blob, string(p.Action), p.Path, nullableString(p.DestPath), p.Size, p.IsDir)
	case event.SpreadsheetCell:
		return insert(event.TableSpreadsheetCell, []string{"workbook", "sheet", "cell", "value", "formula"},
			common, blob, p.Workbook, p.Sheet, p.Cell, nullableString(p.Value), nullableString(p.Formula))
	case event.BrowserNav:
		return insert(event.TableBrowserInteraction, []string{"kind", "url", "title"},
			common, blob, "navigate", nullableString(p.URL), p.Title)
	case event.BrowserInteraction:
		return insert(event.TableBrowserInteraction, []string{"kind", "x", "y", "key_name", "screenshot"},
			common, blob, string(p.Kind), p.X, p.Y, nullableString(p.Key), nullableBytes(p.Screenshot))
	case event.DocumentState:
		var page any
		if p.Page > 0 {
			page = p.Page
		}
		return insert(event.TableDocumentState, []string{"document", "viewer", "page"},
			common, blob, p.Document, p.Viewer, page)
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownPayload, ev.Payload)
	}
}

func insert(t event.Table, columns []string, common []any, blob any, values ...any) (string, []any, error) {
	names := "timestamp, session_id, modality, app_name, window_title"
	marks := "?, ?, ?, ?, ?"
	for _, c := range columns {
		names += ", " + c
		marks += ", ?"
	}
	names += ", encrypted_blob"
	marks += ", ?"

	args := make([]any, 0, len(common)+len(values)+1)
	args = append(args, common...)
	args = append(args, values...)
	args = append(args, blob)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t, names, marks), args, nil
}

func orUnknown(s string) string {
	if s == "" {
		return event.Unknown
	}
	return s
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
