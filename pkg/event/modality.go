package event

import (
	"fmt"
	"strings"
)

// Modality identifies the kind of activity an event records.
type Modality int

const (
	ModalityScreen Modality = iota + 1
	ModalityKeystroke
	ModalityPointerMove
	ModalityPointerClick
	ModalityPointerScroll
	ModalityAppSwitch
	ModalityFileChange
	ModalitySpreadsheetCell
	ModalityBrowserNav
	ModalityBrowserInteraction
	ModalityDocumentState
)

var modalityNames = map[Modality]string{
	ModalityScreen:             "screen",
	ModalityKeystroke:          "keystroke",
	ModalityPointerMove:        "pointer_move",
	ModalityPointerClick:       "pointer_click",
	ModalityPointerScroll:      "pointer_scroll",
	ModalityAppSwitch:          "app_switch",
	ModalityFileChange:         "file_change",
	ModalitySpreadsheetCell:    "spreadsheet_cell",
	ModalityBrowserNav:         "browser_nav",
	ModalityBrowserInteraction: "browser_interaction",
	ModalityDocumentState:      "document_state",
}

// Modalities lists every known modality in declaration order.
func Modalities() []Modality {
	out := make([]Modality, 0, len(modalityNames))
	for m := ModalityScreen; m <= ModalityDocumentState; m++ {
		out = append(out, m)
	}
	return out
}

func (m Modality) String() string {
	if name, ok := modalityNames[m]; ok {
		return name
	}
	return fmt.Sprintf("modality(%d)", int(m))
}

// Valid reports whether m is one of the declared modalities.
func (m Modality) Valid() bool {
	_, ok := modalityNames[m]
	return ok
}

// ParseModality resolves the textual form produced by String.
func ParseModality(s string) (Modality, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for m, name := range modalityNames {
		if name == needle {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown modality %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Modality) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Modality) UnmarshalText(text []byte) error {
	parsed, err := ParseModality(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Delivery describes what the work queue promises for a modality.
type Delivery int

const (
	// Guaranteed events block their producer until queue space is available.
	Guaranteed Delivery = iota
	// BestEffort events are dropped, and counted, when the queue is saturated.
	BestEffort
)

func (d Delivery) String() string {
	if d == BestEffort {
		return "best_effort"
	}
	return "guaranteed"
}

// Delivery returns the queueing contract for the modality. Only pointer
// movement batches may be dropped.
func (m Modality) Delivery() Delivery {
	if m == ModalityPointerMove {
		return BestEffort
	}
	return Guaranteed
}

// Table returns the storage table the modality is persisted to.
func (m Modality) Table() Table {
	switch m {
	case ModalityScreen:
		return TableScreen
	case ModalityKeystroke:
		return TableKeystroke
	case ModalityPointerMove, ModalityPointerClick, ModalityPointerScroll:
		return TablePointerEvent
	case ModalityAppSwitch:
		return TableAppUsage
	case ModalityFileChange:
		return TableFileActivity
	case ModalitySpreadsheetCell:
		return TableSpreadsheetCell
	case ModalityBrowserNav, ModalityBrowserInteraction:
		return TableBrowserInteraction
	case ModalityDocumentState:
		return TableDocumentState
	default:
		return ""
	}
}

// Table names an SQL table in the store.
type Table string

const (
	TableScreen             Table = "screen_captures"
	TableKeystroke          Table = "keystrokes"
	TablePointerEvent       Table = "pointer_events"
	TableAppUsage           Table = "app_usage"
	TableFileActivity       Table = "file_activity"
	TableSpreadsheetCell    Table = "spreadsheet_cells"
	TableBrowserInteraction Table = "browser_interactions"
	TableDocumentState      Table = "document_states"
	// TableActivityPattern is written by downstream analysers, never by the pipeline.
	TableActivityPattern Table = "activity_patterns"
)

// Tables lists every table the store manages, including the aggregate table.
func Tables() []Table {
	return []Table{
		TableScreen,
		TableKeystroke,
		TablePointerEvent,
		TableAppUsage,
		TableFileActivity,
		TableSpreadsheetCell,
		TableBrowserInteraction,
		TableDocumentState,
		TableActivityPattern,
	}
}
