package api

import (
	"github.com/kalambet/electroschematic/internal/appstate"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/schematic"
)

// sniffPrefix is enough base64 text to cover the bytes DetectMIME reads.
const sniffPrefix = 684

// StateView is the wire form of AppState sent by /state and /events.
// History is listed as summaries; full records and images are served by
// /history/{id} and /images.
type StateView struct {
	Status            appstate.Status           `json:"status"`
	OriginalImageURL  string                    `json:"originalImageUrl,omitempty"`
	GeneratedImageURL string                    `json:"generatedImageUrl,omitempty"`
	Analysis          *schematic.AnalysisResult `json:"analysis"`
	Error             string                    `json:"error,omitempty"`
	History           []HistorySummary          `json:"history"`
	HistoryCount      int                       `json:"historyCount"`
	Version           uint64                    `json:"version"`
	HistoryLoaded     bool                      `json:"historyLoaded"`
}

func newStateView(s appstate.AppState) StateView {
	history := make([]HistorySummary, 0, len(s.History))
	for _, item := range s.History {
		history = append(history, summarize(item))
	}
	return StateView{
		Status:            s.Status,
		OriginalImageURL:  displayURL(s.OriginalImage),
		GeneratedImageURL: displayURL(s.GeneratedImage),
		Analysis:          s.Analysis,
		Error:             s.Error,
		History:           history,
		HistoryCount:      len(history),
		Version:           s.Version,
		HistoryLoaded:     s.HistoryLoaded,
	}
}

// displayURL turns a stored image into a data URL a browser can render.
func displayURL(encoded string) string {
	if encoded == "" {
		return ""
	}
	head := encoded
	if len(head) > sniffPrefix {
		head = head[:sniffPrefix]
	}
	mimeType := "application/octet-stream"
	if raw, err := imagecodec.Decode(head); err == nil {
		mimeType = imagecodec.DetectMIME(raw)
	}
	return imagecodec.DataURL(mimeType, encoded)
}
