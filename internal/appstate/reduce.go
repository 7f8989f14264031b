package appstate

import "github.com/kalambet/electroschematic/internal/schematic"

// Reduce applies e to s and returns the next state. It is pure: s and the
// slices it references are never modified. Events that do not apply to the
// current status are ignored and s is returned unchanged, Version included.
func Reduce(s AppState, e Event) AppState {
	next, ok := apply(s, e)
	if !ok {
		return s
	}
	next.Version = s.Version + 1
	return next
}

func apply(s AppState, e Event) (AppState, bool) {
	switch e := e.(type) {
	case RunStarted:
		if s.Status.Busy() {
			return s, false
		}
		return clearResult(s, StatusAnalyzing), true

	case ImageEncoded:
		if s.Status != StatusAnalyzing {
			return s, false
		}
		s.OriginalImage = e.Image
		return s, true

	case AnalysisCompleted:
		if s.Status != StatusAnalyzing || s.OriginalImage == "" {
			return s, false
		}
		a := e.Analysis
		s.Status = StatusGenerating
		s.Analysis = &a
		return s, true

	case RunCompleted:
		if s.Status != StatusGenerating {
			return s, false
		}
		a := e.Item.Analysis
		s.Status = StatusComplete
		s.OriginalImage = e.Item.OriginalImage
		s.GeneratedImage = e.Item.GeneratedImage
		s.Analysis = &a
		s.History = prepend(s.History, e.Item)
		return s, true

	case RunFailed:
		if !s.Status.Busy() {
			return s, false
		}
		// The uploaded photo stays visible; nothing produced by the failed
		// run is kept.
		s.Status = StatusError
		s.Analysis = nil
		s.GeneratedImage = ""
		s.Error = e.Message
		return s, true

	case ItemAdded:
		s.History = prepend(s.History, e.Item)
		return s, true

	case ResetRequested:
		return clearResult(s, StatusIdle), true

	case HistorySelected:
		if s.Status.Busy() {
			return s, false
		}
		a := e.Item.Analysis
		s.Status = StatusComplete
		s.OriginalImage = e.Item.OriginalImage
		s.GeneratedImage = e.Item.GeneratedImage
		s.Analysis = &a
		s.Error = ""
		return s, true

	case HistoryToggled:
		if s.Status.Busy() {
			return s, false
		}
		if s.Status == StatusHistory {
			s.Status = StatusIdle
		} else {
			s.Status = StatusHistory
		}
		s.Error = ""
		return s, true

	case HistoryLoaded:
		// A load that finishes after a clear-all carries deleted records.
		if s.HistoryLoaded {
			return s, false
		}
		s.History = merge(s.History, e.Items)
		s.HistoryLoaded = true
		return s, true

	case HistoryCleared:
		s.History = []schematic.HistoryItem{}
		s.HistoryLoaded = true
		return s, true
	}
	return s, false
}

func clearResult(s AppState, status Status) AppState {
	s.Status = status
	s.OriginalImage = ""
	s.GeneratedImage = ""
	s.Analysis = nil
	s.Error = ""
	return s
}

func prepend(history []schematic.HistoryItem, item schematic.HistoryItem) []schematic.HistoryItem {
	out := make([]schematic.HistoryItem, 0, len(history)+1)
	out = append(out, item)
	return append(out, history...)
}

// merge keeps records added during this session ahead of the loaded ones,
// dropping loaded duplicates.
func merge(current, loaded []schematic.HistoryItem) []schematic.HistoryItem {
	seen := make(map[string]bool, len(current))
	out := make([]schematic.HistoryItem, 0, len(current)+len(loaded))
	for _, it := range current {
		seen[it.ID] = true
		out = append(out, it)
	}
	for _, it := range loaded {
		if !seen[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

// Find returns the history record with id.
func (s AppState) Find(id string) (schematic.HistoryItem, bool) {
	for _, it := range s.History {
		if it.ID == id {
			return it, true
		}
	}
	return schematic.HistoryItem{}, false
}
