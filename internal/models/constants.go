package models

const (
	// EllipsisMarker is appended to any truncated text
	EllipsisMarker = "..."
	// NoDocumentsFound replaces the document context when retrieval is empty
	NoDocumentsFound = "No relevant documents found."
	HistorySeparator = "\n---\n"
)

var (
	// SystemPromptTemplate takes the target language
	SystemPromptTemplate = `You are a helpful AI assistant. Always answer in %s.`

	// AnswerPromptTemplate takes the system prompt, the rendered history,
	// the document context and the user question
	AnswerPromptTemplate = `%s

Below is the most recent conversation history between you and the user (if any), followed by context from the user's documents.

Notes:
- Do NOT repeat or copy any earlier answer. Answer only the current question.
- If the information is scattered across several passages, synthesize it into one coherent answer.
- When it helps, present the answer as a clear, easy to read list.

Conversation history (reference only, do NOT repeat previous answers):
%s
==============================
Document context:
%s
==============================
User question: %s

Answer:`
)
