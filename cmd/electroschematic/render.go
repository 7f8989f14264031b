package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/kalambet/electroschematic/internal/schematic"
)

// analysisMarkdown lays out an analysis the way the result view does: the
// device, its big-picture summary, then one section per component.
func analysisMarkdown(a schematic.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", a.DeviceName)
	fmt.Fprintf(&sb, "> %s\n\n", a.Summary)

	if len(a.Components) == 0 {
		sb.WriteString("_No components identified._\n")
		return sb.String()
	}

	sb.WriteString("## How it works\n\n")
	for i, c := range a.Components {
		fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, c.Name)
		fmt.Fprintf(&sb, "%s\n\n", c.Description)
		fmt.Fprintf(&sb, "- **Role:** %s\n", c.WorkflowRole)
		fmt.Fprintf(&sb, "- **Think of it like:** %s\n", c.Analogy)
		fmt.Fprintf(&sb, "- **The science:** %s\n\n", c.ScientificPrinciple)
	}
	return sb.String()
}

// renderMarkdown renders md for the terminal. With color disabled it uses
// the plain style.
func renderMarkdown(md string) (string, error) {
	style := glamour.WithAutoStyle()
	if noColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(md)
}
