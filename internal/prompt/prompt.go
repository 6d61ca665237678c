package prompt

import (
	"fmt"
	"strings"

	"ragchat/internal/helper"
	"ragchat/internal/history"
	"ragchat/internal/models"
)

// MaxChunkChars bounds each chunk's contribution to the document context
const MaxChunkChars = 2000

// AssembleContext renders chunks as numbered, source-labelled passages
func AssembleContext(chunks []models.Chunk) string {
	return AssembleContextLimit(chunks, MaxChunkChars)
}

// AssembleContextLimit is AssembleContext with a custom truncation bound
func AssembleContextLimit(chunks []models.Chunk, maxChars int) string {
	if len(chunks) == 0 {
		return models.NoDocumentsFound
	}
	if maxChars <= 0 {
		maxChars = MaxChunkChars
	}

	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		content := helper.Truncate(c.Content, maxChars, models.EllipsisMarker)
		parts = append(parts, fmt.Sprintf("Document %d (Source: %s):\n%s\n", i+1, c.Source, content))
	}
	return strings.Join(parts, "\n")
}

// RenderHistory lists the user side of each turn; answers are left out so the
// model does not echo them
func RenderHistory(turns []history.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString("User: ")
		sb.WriteString(t.User)
		sb.WriteString(models.HistorySeparator)
	}
	return sb.String()
}

func SystemInstruction(language string) string {
	return fmt.Sprintf(models.SystemPromptTemplate, language)
}

// Build fills the answer template shared by every backend
func Build(language, renderedHistory, context, message string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, SystemInstruction(language), renderedHistory, context, message)
}
