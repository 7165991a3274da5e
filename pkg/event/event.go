package event

import (
	"time"
)

// Unknown is the placeholder used when the foreground window cannot be resolved.
const Unknown = "Unknown"

// Event is the envelope shared by every capture source.
type Event struct {
	Timestamp time.Time
	SessionID string
	App       string
	Window    string
	Payload   Payload

	// EncryptedBlob holds the sealed canonical form of every other field.
	// It is nil when encryption is unavailable or failed for this event.
	EncryptedBlob []byte
}

// Modality reports the payload's modality, or zero when the payload is nil.
func (e Event) Modality() Modality {
	if e.Payload == nil {
		return 0
	}
	return e.Payload.Modality()
}

// Table reports the storage table for the event.
func (e Event) Table() Table {
	return e.Modality().Table()
}

// Delivery reports the queueing contract for the event.
func (e Event) Delivery() Delivery {
	return e.Modality().Delivery()
}

// Payload is implemented only by the variant types in this package.
type Payload interface {
	Modality() Modality
	isPayload()
}

// ScreenFrame is one compressed capture of the primary display.
type ScreenFrame struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Quality    float64 `json:"quality"`
	Compressed []byte  `json:"compressed"`
	// Raw is a snappy-compressed RGBA dump, kept only when raw retention is on.
	Raw []byte `json:"raw,omitempty"`
}

// Keystroke is a single physical key press.
type Keystroke struct {
	Key     string `json:"key"`
	Char    string `json:"char,omitempty"`
	Special bool   `json:"special"`
}

// Sample is one accepted pointer position.
type Sample struct {
	X  int       `json:"x"`
	Y  int       `json:"y"`
	At time.Time `json:"at"`
}

// MovementBatch coalesces throttled pointer samples into a single row.
type MovementBatch struct {
	Samples []Sample `json:"samples"`
}

// Count returns the number of coalesced samples.
func (b MovementBatch) Count() int { return len(b.Samples) }

// PointerClick records a button press or release.
type PointerClick struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
}

// PointerScroll records a wheel movement at a position.
type PointerScroll struct {
	X  int `json:"x"`
	Y  int `json:"y"`
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// SwitchAction distinguishes the two halves of an application switch.
type SwitchAction string

const (
	SwitchStart SwitchAction = "start"
	SwitchEnd   SwitchAction = "end"
)

// AppSwitch marks the start or end of time spent in a foreground application.
// The application itself is carried by the envelope's App field.
type AppSwitch struct {
	Action   SwitchAction  `json:"action"`
	Duration time.Duration `json:"duration"`
}

// FileAction enumerates filesystem change kinds.
type FileAction string

const (
	FileCreated  FileAction = "created"
	FileModified FileAction = "modified"
	FileDeleted  FileAction = "deleted"
	FileMoved    FileAction = "moved"
)

// FileChange records one filesystem notification.
type FileChange struct {
	Action   FileAction `json:"action"`
	Path     string     `json:"path"`
	DestPath string     `json:"dest_path,omitempty"`
	Size     int64      `json:"size"`
	IsDir    bool       `json:"is_dir"`
}

// SpreadsheetCell records the active cell of a spreadsheet application.
type SpreadsheetCell struct {
	Workbook string `json:"workbook"`
	Sheet    string `json:"sheet"`
	Cell     string `json:"cell"`
	Value    string `json:"value,omitempty"`
	Formula  string `json:"formula,omitempty"`
}

// BrowserNav records a change of the active tab's location.
type BrowserNav struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title"`
}

// InteractionKind distinguishes browser interactions derived from input.
type InteractionKind string

const (
	InteractionClick    InteractionKind = "click"
	InteractionKeypress InteractionKind = "keypress"
)

// BrowserInteraction is derived from a click or printable key press while a
// browser is in the foreground.
type BrowserInteraction struct {
	Kind       InteractionKind `json:"kind"`
	X          int             `json:"x,omitempty"`
	Y          int             `json:"y,omitempty"`
	Key        string          `json:"key,omitempty"`
	Screenshot []byte          `json:"screenshot,omitempty"`
}

// DocumentState records the document open in a viewer application.
type DocumentState struct {
	Document string `json:"document"`
	Viewer   string `json:"viewer"`
	Page     int    `json:"page,omitempty"`
}

func (ScreenFrame) Modality() Modality        { return ModalityScreen }
func (Keystroke) Modality() Modality          { return ModalityKeystroke }
func (MovementBatch) Modality() Modality      { return ModalityPointerMove }
func (PointerClick) Modality() Modality       { return ModalityPointerClick }
func (PointerScroll) Modality() Modality      { return ModalityPointerScroll }
func (AppSwitch) Modality() Modality          { return ModalityAppSwitch }
func (FileChange) Modality() Modality         { return ModalityFileChange }
func (SpreadsheetCell) Modality() Modality    { return ModalitySpreadsheetCell }
func (BrowserNav) Modality() Modality         { return ModalityBrowserNav }
func (BrowserInteraction) Modality() Modality { return ModalityBrowserInteraction }
func (DocumentState) Modality() Modality      { return ModalityDocumentState }

func (ScreenFrame) isPayload()        {}
func (Keystroke) isPayload()          {}
func (MovementBatch) isPayload()      {}
func (PointerClick) isPayload()       {}
func (PointerScroll) isPayload()      {}
func (AppSwitch) isPayload()          {}
func (FileChange) isPayload()         {}
func (SpreadsheetCell) isPayload()    {}
func (BrowserNav) isPayload()         {}
func (BrowserInteraction) isPayload() {}
func (DocumentState) isPayload()      {}
