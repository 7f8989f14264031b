package schematic

import (
	"fmt"
	"strings"
	"time"
)

// ComponentInfo is one identified functional part of a device.
type ComponentInfo struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	WorkflowRole        string `json:"workflowRole"`
	Analogy             string `json:"analogy"`
	ScientificPrinciple string `json:"scientificPrinciple"`
}

// AnalysisResult is the structured breakdown returned by the analysis step.
// Component order is the order the model returned and is never changed.
type AnalysisResult struct {
	DeviceName string          `json:"deviceName"`
	Summary    string          `json:"summary"`
	Components []ComponentInfo `json:"components"`
}

// ComponentNames returns the component names in analysis order.
func (a AnalysisResult) ComponentNames() []string {
	names := make([]string, len(a.Components))
	for i, c := range a.Components {
		names[i] = c.Name
	}
	return names
}

// Validate checks that every required field is present and non-empty.
// An empty component list is valid.
func (a AnalysisResult) Validate() error {
	if strings.TrimSpace(a.DeviceName) == "" {
		return fmt.Errorf("deviceName is empty")
	}
	if strings.TrimSpace(a.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	for i, c := range a.Components {
		fields := []struct {
			name, value string
		}{
			{"name", c.Name},
			{"description", c.Description},
			{"workflowRole", c.WorkflowRole},
			{"analogy", c.Analogy},
			{"scientificPrinciple", c.ScientificPrinciple},
		}
		for _, f := range fields {
			if strings.TrimSpace(f.value) == "" {
				return fmt.Errorf("components[%d].%s is empty", i, f.name)
			}
		}
	}
	return nil
}

// HistoryItem is the durable record of one completed run. Items are written
// once and never mutated.
type HistoryItem struct {
	ID             string         `json:"id"`
	Timestamp      int64          `json:"timestamp"` // milliseconds since epoch
	OriginalImage  string         `json:"originalImage"`
	GeneratedImage string         `json:"generatedImage"`
	Analysis       AnalysisResult `json:"analysis"`
}

// CreatedAt returns Timestamp as a time.Time.
func (h HistoryItem) CreatedAt() time.Time {
	return time.UnixMilli(h.Timestamp)
}

// ShareText is the short blurb offered when sharing a result.
func ShareText(a AnalysisResult) string {
	return fmt.Sprintf("I just found out how a %s works: %s", a.DeviceName, a.Summary)
}
