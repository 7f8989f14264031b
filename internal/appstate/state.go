// Package appstate holds the view model the presentation layer renders and
// the pure transition function that advances it.
package appstate

import "github.com/kalambet/electroschematic/internal/schematic"

// Status is the phase the application is in.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusAnalyzing  Status = "analyzing"
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusHistory    Status = "history"
)

// Busy reports whether a run is between start and its terminal transition.
func (s Status) Busy() bool {
	return s == StatusAnalyzing || s == StatusGenerating
}

// AppState is the single source of truth for what is displayed. Values are
// never modified in place; Reduce returns a replacement.
//
// OriginalImage, GeneratedImage and Error are empty and Analysis is nil when
// absent.
type AppState struct {
	Status         Status                    `json:"status"`
	OriginalImage  string                    `json:"originalImage,omitempty"`
	GeneratedImage string                    `json:"generatedImage,omitempty"`
	Analysis       *schematic.AnalysisResult `json:"analysis"`
	Error          string                    `json:"error,omitempty"`
	History        []schematic.HistoryItem   `json:"history"`

	// Version increases by one on every applied transition.
	Version uint64 `json:"version"`
	// HistoryLoaded is set once the startup history load has finished,
	// whether or not it found anything, or once history has been cleared.
	// Either way a later load is ignored.
	HistoryLoaded bool `json:"historyLoaded"`
}

// Initial is the state at process start.
func Initial() AppState {
	return AppState{Status: StatusIdle, History: []schematic.HistoryItem{}}
}

// Event is an input to Reduce.
type Event interface {
	event()
}

type (
	// RunStarted begins a run and clears the previous result.
	RunStarted struct{}
	// ImageEncoded shows the uploaded photo while the run continues.
	ImageEncoded struct{ Image string }
	// AnalysisCompleted attaches the analysis and moves on to drawing.
	AnalysisCompleted struct{ Analysis schematic.AnalysisResult }
	// RunCompleted finishes a run and prepends its record to history.
	RunCompleted struct{ Item schematic.HistoryItem }
	// RunFailed ends a run with a user-facing message.
	RunFailed struct{ Message string }
	// ItemAdded prepends a record without touching the displayed result.
	ItemAdded struct{ Item schematic.HistoryItem }
	// ResetRequested returns to idle, keeping history.
	ResetRequested struct{}
	// HistorySelected displays a stored record.
	HistorySelected struct{ Item schematic.HistoryItem }
	// HistoryToggled flips between the history list and idle.
	HistoryToggled struct{}
	// HistoryLoaded delivers the startup load. It applies at most once.
	HistoryLoaded struct{ Items []schematic.HistoryItem }
	// HistoryCleared empties the in-memory history after a clear-all.
	HistoryCleared struct{}
)

func (RunStarted) event()        {}
func (ImageEncoded) event()      {}
func (AnalysisCompleted) event() {}
func (RunCompleted) event()      {}
func (RunFailed) event()         {}
func (ItemAdded) event()         {}
func (ResetRequested) event()    {}
func (HistorySelected) event()   {}
func (HistoryToggled) event()    {}
func (HistoryLoaded) event()     {}
func (HistoryCleared) event()    {}
