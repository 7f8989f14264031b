package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kalambet/electroschematic/internal/imagecodec"
)

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = New(context.Background(), Config{APIKey: "   "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerateContent_SendsInlineImage(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"ok\":true}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	img := imagecodec.Image{Data: imagecodec.Encode([]byte("\x89PNG fake")), MIMEType: "image/png"}
	part, err := ImagePart(img)
	require.NoError(t, err)

	resp, err := c.GenerateContent(context.Background(), "test-model", UserContent(part, genai.NewPartFromText("describe")), nil)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "models/test-model:generateContent"), "path = %s", gotPath)
	assert.Equal(t, `{"ok":true}`, ResponseText(resp))

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[0].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/png", inline["mimeType"])
	assert.Equal(t, img.Data, inline["data"])
}

func TestGenerateContent_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.GenerateContent(context.Background(), "test-model", UserContent(genai.NewPartFromText("hi")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test-model")
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{
			"joins text and skips thoughts",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: `{"a":`},
				{Text: `1}`},
			}}}}},
			`{"a":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResponseText(tt.resp))
		})
	}
}

func TestFirstInlineImage(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []*genai.Part{{Text: "here you go"}}}},
		{Content: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "application/json", Data: []byte("{}")}},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("first")}},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("second")}},
		}}},
	}}

	blob, ok := FirstInlineImage(resp)
	require.True(t, ok)
	assert.Equal(t, []byte("first"), blob.Data)

	_, ok = FirstInlineImage(&genai.GenerateContentResponse{})
	assert.False(t, ok)
}
