package recommend

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultPromptTemplate is used when no custom template is configured
const DefaultPromptTemplate = `You are a media recommendation engine.

Based on this watch history: {{join .Media ", "}}
{{- if .Favorites}}
These are favorites and carry extra weight: {{join .Favorites ", "}}
{{- end}}

Suggest {{.Limit}} {{.MediaType}} titles the viewer has not seen.
{{- if .Exclusions}}
Never suggest any of: {{join .Exclusions ", "}}
{{- end}}

Reply with a JSON array only. Each element must have the keys
"title", "media_type" ("movie" or "tv"), "description", and
"similarity" (the watched title it resembles).`

// PromptData is what a prompt template renders against
type PromptData struct {
	Media      []string
	Favorites  []string
	Exclusions []string
	Limit      int
	MediaType  string
}

// BuildPrompt renders a prompt template. An empty template falls back
// to the default one.
func BuildPrompt(tmplText string, data PromptData) (string, error) {
	if strings.TrimSpace(tmplText) == "" {
		tmplText = DefaultPromptTemplate
	}
	if data.Limit <= 0 {
		data.Limit = 5
	}
	if data.MediaType == "" {
		data.MediaType = "movie or tv"
	}

	tmpl, err := template.New("prompt").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}
	return out.String(), nil
}
