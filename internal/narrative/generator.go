package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yhanli/innervoice/internal/api"
	"github.com/yhanli/innervoice/internal/config"
	"github.com/yhanli/innervoice/internal/metrics"
	"github.com/yhanli/innervoice/internal/util"
	"github.com/yhanli/innervoice/pkg/models"
)

// Completer is the slice of the API client the generator needs.
type Completer interface {
	Complete(ctx context.Context, messages []api.Message) (string, error)
	ModelName() string
}

// Generator turns one affirmation sentence into one polished narrative
// through a two-stage exchange: a draft request, then a critique
// request that carries the draft back for revision. Either stage can
// reject the model's reply, which fails the whole sentence; a sentence
// never produces a half-finished record.
type Generator struct {
	client    Completer
	collector *metrics.Collector
	logger    *slog.Logger
	prompts   config.PromptsConfig
	field     string
}

// New creates a generator bound to one model client.
func New(client Completer, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) *Generator {
	return &Generator{
		client:    client,
		collector: collector,
		logger:    logger,
		prompts:   cfg.Prompts,
		field:     cfg.Generation.NarrativeField,
	}
}

// Generate runs both stages for one sentence and returns the finished
// record. The returned narrative has real newlines replaced with the
// two-character sequence backslash-n so it survives CSV round trips.
func (g *Generator) Generate(ctx context.Context, sentence string) (*models.Record, error) {
	totalStart := time.Now()

	draftPrompt, err := util.RenderTemplate(g.prompts.Draft, map[string]interface{}{
		"Sentence": sentence,
		"Field":    g.field,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render draft template: %w", err)
	}

	messages := []api.Message{api.UserMessage(draftPrompt)}

	draftStart := time.Now()
	draftReply, err := g.client.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("draft request failed: %w", err)
	}
	g.collector.RecordStage("draft", time.Since(draftStart))

	draftText, ok := g.parseNarrative("draft", draftReply)
	if !ok {
		return nil, fmt.Errorf("draft reply had no usable narrative")
	}

	critiquePrompt, err := util.RenderTemplate(g.prompts.Critique, map[string]interface{}{
		"Draft": draftText,
		"Field": g.field,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render critique template: %w", err)
	}

	// The draft travels inside the critique prompt as a second user
	// turn. No assistant message is replayed into the conversation.
	messages = append(messages, api.UserMessage(critiquePrompt))

	critiqueStart := time.Now()
	critiqueReply, err := g.client.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("critique request failed: %w", err)
	}
	g.collector.RecordStage("critique", time.Since(critiqueStart))

	finalText, ok := g.parseNarrative("critique", critiqueReply)
	if !ok {
		return nil, fmt.Errorf("critique reply had no usable narrative")
	}

	g.collector.RecordStage("total", time.Since(totalStart))

	return &models.Record{
		Sentence:  sentence,
		Narrative: util.EscapeNewlines(finalText),
		Model:     g.client.ModelName(),
	}, nil
}

// parseNarrative pulls the configured field out of a model reply. The
// reply may bury its JSON object in prose or code fences; anything
// between the first opening brace and the last closing brace is tried.
// Replies that still fail are logged with a truncated excerpt and
// reported as unusable, never as a panic.
func (g *Generator) parseNarrative(stage, reply string) (string, bool) {
	jsonStr, ok := util.ExtractJSONObject(reply)
	if !ok {
		g.logger.Warn("No JSON object in model reply",
			"stage", stage,
			"reply", util.TruncateString(reply, 200))
		return "", false
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		g.logger.Warn("Failed to decode JSON in model reply",
			"stage", stage,
			"error", err,
			"reply", util.TruncateString(reply, 200))
		return "", false
	}

	value, present := parsed[g.field]
	if !present {
		g.logger.Warn("Narrative field missing from model reply",
			"stage", stage,
			"field", g.field,
			"reply", util.TruncateString(reply, 200))
		return "", false
	}

	text, isString := value.(string)
	if !isString {
		g.logger.Warn("Narrative field is not a string",
			"stage", stage,
			"field", g.field,
			"reply", util.TruncateString(reply, 200))
		return "", false
	}

	return text, true
}
