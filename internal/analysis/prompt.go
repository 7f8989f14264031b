package analysis

import "google.golang.org/genai"

const instruction = `You are a cool science teacher explaining electronics to a curious teenager. Analyze this image.

1. Identify the specific device.
2. Provide a fun, engaging 2-sentence summary of how it works (the "Big Picture").
3. Identify 4 to 6 main electrical or functional components (internal or external) that make it tick.
4. For each component:
   - name: Technical name.
   - description: Simple physical description.
   - workflowRole: Its job in the flow of electricity or data (e.g. "First it takes the sound...").
   - analogy: A relatable real-world comparison (e.g. "Like a traffic cop").
   - scientificPrinciple: The underlying physics or engineering concept (e.g. "Electromagnetism", "Capacitance") with a very brief explanation of what it means.

Return the result as JSON.`

// resultSchema is the structured-output constraint sent with every request.
func resultSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"deviceName": str(),
			"summary":    str(),
			"components": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":                str(),
						"description":         str(),
						"workflowRole":        str(),
						"analogy":             str(),
						"scientificPrinciple": str(),
					},
					Required: []string{"name", "description", "workflowRole", "analogy", "scientificPrinciple"},
				},
			},
		},
		Required: []string{"deviceName", "summary", "components"},
	}
}
