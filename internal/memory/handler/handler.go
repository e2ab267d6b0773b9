// Package handler defines the story-handler registry (C6): the collaborator
// contract through which the extraction pipeline renders opaque message
// content to plain text without knowing any domain-specific schema.
package handler

import (
	"encoding/json"
	"fmt"

	"github.com/kart-io/memoryx/internal/memory/model"
	"github.com/kart-io/memoryx/pkg/cache"
)

// GenerateContext carries whatever a handler needs to build its next
// completion request. It is intentionally a loose bag of fields: handlers
// are domain-specific and the core never inspects its contents.
type GenerateContext struct {
	UserID  string
	StoryID int64
	Extra   map[string]any
}

// GeneratePlan is BeforeGenerate's output: the prompt and schema to run a
// completion against, plus the query message to persist alongside the turn.
type GeneratePlan struct {
	Prompt         string
	ResponseSchema json.RawMessage
	QueryMessage   json.RawMessage
}

// Handler is the contract a story-handler plug-in implements. The core
// calls MessageToString during fact extraction and relies on handlers to
// call Scheduler.Schedule(user_id) after persisting a turn's messages
// (outside this package's scope).
type Handler interface {
	// Name is the registry key and the value stored in Story.Handler.
	Name() string

	// InputSchema and ResponseSchema describe the JSON shapes this handler
	// validates Message.Content and completion responses against.
	InputSchema() json.RawMessage
	ResponseSchema() json.RawMessage

	// BeforeGenerate builds the next completion request for this story.
	BeforeGenerate(ctx GenerateContext) (GeneratePlan, error)

	// AfterGenerate turns a raw completion response into the message content
	// to persist for the assistant's turn.
	AfterGenerate(ctx GenerateContext, response json.RawMessage) (json.RawMessage, error)

	// MessageToString renders one stored message to a single prompt line,
	// e.g. "User: ..." or "Assistant: ...". It returns ok=false when the
	// message content fails this handler's schema validation; the caller
	// must drop the line from the rendering without treating it as fatal.
	MessageToString(msg model.Message) (line string, ok bool)
}

var registry cache.Cache[string, Handler] = cache.NewMemoryCache[string, Handler]()

// Register adds a handler to the registry. Call from an init() func in the
// handler's own file. Registering the same name twice panics: it indicates
// a build-time wiring mistake, not a runtime condition to recover from.
func Register(h Handler) {
	name := h.Name()
	if registry.Contains(name) {
		panic(fmt.Sprintf("handler: duplicate registration for %q", name))
	}
	registry.Set(name, h)
}

// Lookup returns the handler registered under name, or false if none is.
// The extraction pipeline treats a missing handler as ErrUnknownHandler.
func Lookup(name string) (Handler, bool) {
	return registry.Get(name)
}

// Names returns every registered handler name, for diagnostics.
func Names() []string {
	return registry.Keys()
}
