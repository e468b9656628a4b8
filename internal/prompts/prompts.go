package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/system_context.txt
var systemContextTemplate string

//go:embed template/answer_prompt.txt
var answerTemplate string

// Family groups models that share prompt conventions.
type Family string

const (
	FamilyGemini  Family = "gemini"
	FamilyClaude  Family = "claude"
	FamilyLlama   Family = "llama"
	FamilyGeneric Family = "generic"
)

// FamilyOf derives the prompt family from a model id.
func FamilyOf(modelID string) Family {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "gemini"):
		return FamilyGemini
	case strings.Contains(id, "claude"):
		return FamilyClaude
	case strings.Contains(id, "llama"):
		return FamilyLlama
	default:
		return FamilyGeneric
	}
}

// DefaultSystemContext renders the default system context for modelID.
func DefaultSystemContext(ctx context.Context, modelID string) (string, error) {
	fam := FamilyOf(modelID)
	vars := map[string]any{
		"Assistant": "the knowledge base assistant",
		"Markdown":  fam != FamilyLlama,
	}
	return render(ctx, systemContextTemplate, vars)
}

// Document is a retrieved passage shown to the model.
type Document struct {
	ID      string
	Title   string
	Content string
}

// RenderAnswerSystem renders the system turn sent to the model: the
// conversation's system context followed by the retrieved documents.
func RenderAnswerSystem(ctx context.Context, systemContext string, docs []Document, filtered bool) (string, error) {
	return render(ctx, answerTemplate, map[string]any{
		"SystemContext": strings.TrimSpace(systemContext),
		"Documents":     docs,
		"Filtered":      filtered,
	})
}

// render formats through an eino prompt component so prompt callbacks fire.
func render(ctx context.Context, tpl string, vars map[string]any) (string, error) {
	t := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl))
	msgs, err := t.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return strings.TrimSpace(msgs[0].Content), nil
}
