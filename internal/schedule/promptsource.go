package schedule

import (
	"encoding/json"
	"fmt"
)

// PromptSource selects where the generation prompt comes from: the built-in
// template or user-supplied text. It is a closed union; every point of use
// switches exhaustively over the two variants.
type PromptSource interface {
	isPromptSource()
}

// TemplatePrompt uses the built-in prompt template for a topic
type TemplatePrompt struct {
	Topic string `json:"topic"`
}

func (TemplatePrompt) isPromptSource() {}

// CustomPrompt passes user-written prompt text through unchanged
type CustomPrompt struct {
	Text string `json:"text"`
}

func (CustomPrompt) isPromptSource() {}

const (
	promptKindTemplate = "template"
	promptKindCustom   = "custom"
)

// promptEnvelope is the tagged wire representation of a PromptSource
type promptEnvelope struct {
	Kind  string `json:"kind"`
	Topic string `json:"topic,omitempty"`
	Text  string `json:"text,omitempty"`
}

// MarshalPromptSource serializes a PromptSource into its tagged envelope
func MarshalPromptSource(p PromptSource) ([]byte, error) {
	var env promptEnvelope
	switch v := p.(type) {
	case TemplatePrompt:
		env = promptEnvelope{Kind: promptKindTemplate, Topic: v.Topic}
	case CustomPrompt:
		env = promptEnvelope{Kind: promptKindCustom, Text: v.Text}
	case nil:
		return nil, fmt.Errorf("prompt source cannot be nil")
	default:
		return nil, fmt.Errorf("unknown prompt source type %T", p)
	}
	return json.Marshal(env)
}

// UnmarshalPromptSource parses a tagged envelope back into a PromptSource
func UnmarshalPromptSource(data []byte) (PromptSource, error) {
	var env promptEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse prompt source: %w", err)
	}

	switch env.Kind {
	case promptKindTemplate:
		return TemplatePrompt{Topic: env.Topic}, nil
	case promptKindCustom:
		if env.Text == "" {
			return nil, fmt.Errorf("custom prompt requires text")
		}
		return CustomPrompt{Text: env.Text}, nil
	default:
		return nil, fmt.Errorf("unknown prompt source kind %q", env.Kind)
	}
}
