package diagram

import (
	"fmt"
	"strings"

	"github.com/kalambet/electroschematic/internal/schematic"
)

const promptTemplate = `Create a "Science Textbook" style educational illustration based on this object: %s.

Style Requirements:
- Visual Style: Semi-realistic technical illustration, similar to DK Eyewitness books.
- View: Cutaway or Exploded view showing internal components.
- Background: Pure white.
- Aesthetics: Clean lines, soft colors (pastel blues, greys, oranges), very high clarity.

Content:
- Recreate the device but reveal its insides.
- CRITICAL: You MUST generate text labels with leader lines pointing to these parts: %s.
- The labels should be clearly written and legible.

The image should look like a page from a modern science encyclopedia explaining how things work.`

// BuildPrompt renders the illustration instructions for a finished analysis.
// Component labels keep the analysis order.
func BuildPrompt(a schematic.AnalysisResult) string {
	return fmt.Sprintf(promptTemplate, a.DeviceName, strings.Join(a.ComponentNames(), ", "))
}
