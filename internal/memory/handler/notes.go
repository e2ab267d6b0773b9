package handler

import (
	"encoding/json"
	"strings"

	"github.com/kart-io/memoryx/internal/memory/model"
)

func init() {
	Register(&notesHandler{})
}

// notesNote is the content shape notesHandler stores: a titled note with
// optional free-form tags, rendered to a single line for extraction.
type notesNote struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

const notesInputSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"body": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["title", "body"]
}`

// notesHandler renders a structured note-taking persona: each turn is a
// titled note rather than a conversational line.
type notesHandler struct{}

func (h *notesHandler) Name() string { return "notes" }

func (h *notesHandler) InputSchema() json.RawMessage    { return json.RawMessage(notesInputSchema) }
func (h *notesHandler) ResponseSchema() json.RawMessage { return json.RawMessage(notesInputSchema) }

func (h *notesHandler) BeforeGenerate(ctx GenerateContext) (GeneratePlan, error) {
	prompt, _ := ctx.Extra["prompt"].(string)
	title, _ := ctx.Extra["title"].(string)
	body, _ := ctx.Extra["body"].(string)

	query, err := json.Marshal(notesNote{Title: title, Body: body})
	if err != nil {
		return GeneratePlan{}, err
	}

	return GeneratePlan{
		Prompt:         prompt,
		ResponseSchema: json.RawMessage(notesInputSchema),
		QueryMessage:   query,
	}, nil
}

func (h *notesHandler) AfterGenerate(ctx GenerateContext, response json.RawMessage) (json.RawMessage, error) {
	var note notesNote
	if err := json.Unmarshal(response, &note); err != nil {
		return nil, err
	}
	return json.Marshal(note)
}

func (h *notesHandler) MessageToString(msg model.Message) (string, bool) {
	var note notesNote
	if err := json.Unmarshal(msg.Content, &note); err != nil || note.Title == "" {
		return "", false
	}

	line := note.Title
	if note.Body != "" {
		line += ": " + note.Body
	}
	if len(note.Tags) > 0 {
		line += " [" + strings.Join(note.Tags, ", ") + "]"
	}

	switch msg.ContentType {
	case model.ContentTypeQuery:
		return "User note: " + line, true
	case model.ContentTypeResponse:
		return "Assistant note: " + line, true
	default:
		return "", false
	}
}
