// Package tagger implements matcher.EntityTagger with a language model.
//
// The [LLMTagger] asks the model for a JSON list of named entities and
// normalises the labels it returns to the small set the matcher reports.
package tagger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/courtroom/internal/matcher"
	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/pkg/provider/llm"
	"github.com/MrWong99/courtroom/pkg/types"
)

// ErrMalformed wraps responses that could not be decoded as entity JSON.
var ErrMalformed = errors.New("tagger: malformed model response")

const defaultTemperature = 0.0

const systemPrompt = `You are a named-entity recognizer for witness statements in Indian criminal cases.

Extract every named entity in the user's text. Use exactly one of these types:
PERSON, ORGANIZATION, MONEY, DATE, LOCATION.

Rules:
- Copy each entity's text exactly as it appears in the input.
- List entities in the order they appear.
- Do not invent entities. If there are none, return an empty list.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"entities": [{"text": "<entity text>", "type": "<TYPE>"}]}`

// labelAliases maps common NER labels onto the reported types.
var labelAliases = map[string]types.EntityType{
	"PERSON":       types.EntityPerson,
	"PER":          types.EntityPerson,
	"ORGANIZATION": types.EntityOrganization,
	"ORGANISATION": types.EntityOrganization,
	"ORG":          types.EntityOrganization,
	"MONEY":        types.EntityMoney,
	"DATE":         types.EntityDate,
	"LOCATION":     types.EntityLocation,
	"LOC":          types.EntityLocation,
	"GPE":          types.EntityLocation,
}

type llmResponse struct {
	Entities []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"entities"`
}

var _ matcher.EntityTagger = (*LLMTagger)(nil)

// Option configures an [LLMTagger].
type Option func(*LLMTagger)

// WithTemperature sets the sampling temperature. Default: 0.
func WithTemperature(temp float64) Option {
	return func(t *LLMTagger) { t.temperature = temp }
}

// WithMetrics records one provider request per Tag call under providerName.
func WithMetrics(m *observe.Metrics, providerName string) Option {
	return func(t *LLMTagger) {
		t.metrics = m
		t.name = providerName
	}
}

// LLMTagger tags entities through an [llm.Provider]. It is safe for
// concurrent use.
type LLMTagger struct {
	llm         llm.Provider
	temperature float64
	metrics     *observe.Metrics
	name        string
}

// New returns a tagger backed by provider.
func New(provider llm.Provider, opts ...Option) *LLMTagger {
	t := &LLMTagger{
		llm:         provider,
		temperature: defaultTemperature,
		name:        "llm",
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Tag implements matcher.EntityTagger. Entities with unknown labels or blank
// text are dropped. Blank input is not sent to the model.
func (t *LLMTagger) Tag(ctx context.Context, text string) ([]types.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	start := time.Now()
	resp, err := t.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  t.temperature,
		JSONMode:     true,
		Messages:     []types.Message{{Role: "user", Content: text}},
	})
	t.record(ctx, err)
	if err != nil {
		return nil, fmt.Errorf("tagger: complete: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	ents, err := parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}
	observe.Logger(ctx).Debug("tagger: entities detected",
		"count", len(ents), "elapsed", time.Since(start))
	return ents, nil
}

func (t *LLMTagger) record(ctx context.Context, err error) {
	if t.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		t.metrics.RecordProviderError(ctx, t.name, "llm")
	}
	t.metrics.RecordProviderRequest(ctx, t.name, "llm", status)
}

func parseResponse(content string) ([]types.Entity, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	out := make([]types.Entity, 0, len(r.Entities))
	for _, e := range r.Entities {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		typ, ok := NormalizeLabel(e.Type)
		if !ok {
			continue
		}
		out = append(out, types.Entity{Text: text, Type: typ})
	}
	return out, nil
}

// NormalizeLabel maps a NER label such as "ORG" or "GPE" to its entity type.
func NormalizeLabel(label string) (types.EntityType, bool) {
	typ, ok := labelAliases[strings.ToUpper(strings.TrimSpace(label))]
	return typ, ok
}

// stripMarkdown removes optional ```json fences around model output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
