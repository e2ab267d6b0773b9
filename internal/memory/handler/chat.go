package handler

import (
	"encoding/json"

	"github.com/kart-io/memoryx/internal/memory/model"
)

func init() {
	Register(&chatHandler{})
}

// chatTurn is the content shape chatHandler stores for both query and
// response messages: a single free-form line of text.
type chatTurn struct {
	Text string `json:"text"`
}

const chatInputSchema = `{
	"type": "object",
	"properties": {"text": {"type": "string", "minLength": 1}},
	"required": ["text"]
}`

const chatResponseSchema = chatInputSchema

// chatHandler renders a plain free-form query/response conversation.
type chatHandler struct{}

func (h *chatHandler) Name() string { return "chat" }

func (h *chatHandler) InputSchema() json.RawMessage    { return json.RawMessage(chatInputSchema) }
func (h *chatHandler) ResponseSchema() json.RawMessage { return json.RawMessage(chatResponseSchema) }

func (h *chatHandler) BeforeGenerate(ctx GenerateContext) (GeneratePlan, error) {
	prompt, _ := ctx.Extra["prompt"].(string)
	queryText, _ := ctx.Extra["text"].(string)

	query, err := json.Marshal(chatTurn{Text: queryText})
	if err != nil {
		return GeneratePlan{}, err
	}

	return GeneratePlan{
		Prompt:         prompt,
		ResponseSchema: json.RawMessage(chatResponseSchema),
		QueryMessage:   query,
	}, nil
}

func (h *chatHandler) AfterGenerate(ctx GenerateContext, response json.RawMessage) (json.RawMessage, error) {
	var turn chatTurn
	if err := json.Unmarshal(response, &turn); err != nil {
		return nil, err
	}
	return json.Marshal(turn)
}

func (h *chatHandler) MessageToString(msg model.Message) (string, bool) {
	var turn chatTurn
	if err := json.Unmarshal(msg.Content, &turn); err != nil || turn.Text == "" {
		return "", false
	}

	switch msg.ContentType {
	case model.ContentTypeQuery:
		return "User: " + turn.Text, true
	case model.ContentTypeResponse:
		return "Assistant: " + turn.Text, true
	default:
		return "", false
	}
}
