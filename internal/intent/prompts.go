package intent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type intentDoc struct {
	Name        Intent `yaml:"name"`
	Description string `yaml:"description"`
}

type example struct {
	Message string `yaml:"message"`
	Output  string `yaml:"output"`
}

type promptFile struct {
	System   string      `yaml:"system"`
	Fresh    string      `yaml:"fresh"`
	Followup string      `yaml:"followup"`
	Intents  []intentDoc `yaml:"intents"`
	Examples []example   `yaml:"examples"`
}

// Prompts holds the two prompt modes. Both templates are parsed once and
// never modified; message text and entities are only ever inserted through
// the json function, so quotes and braces stay inside string literals.
type Prompts struct {
	system   string
	fresh    *template.Template
	followup *template.Template
	intents  []intentDoc
	examples []example
}

type freshData struct {
	Role     string
	Message  string
	Intents  []intentDoc
	Examples []example
}

type followupData struct {
	ExistingIntent   Intent
	ExistingEntities Entities
	Message          string
}

var templateFuncs = template.FuncMap{
	"json": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
}

// LoadPrompts parses the embedded prompt catalogue.
func LoadPrompts() (*Prompts, error) {
	return parsePrompts(promptsYAML)
}

func parsePrompts(raw []byte) (*Prompts, error) {
	var pf promptFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse prompt catalogue: %w", err)
	}

	for _, doc := range pf.Intents {
		if !doc.Name.Valid() {
			return nil, fmt.Errorf("prompt catalogue lists unknown intent %q", doc.Name)
		}
	}
	if len(pf.Intents) != len(All) {
		return nil, fmt.Errorf("prompt catalogue describes %d intents, want %d", len(pf.Intents), len(All))
	}

	fresh, err := template.New("fresh").Funcs(templateFuncs).Option("missingkey=error").Parse(pf.Fresh)
	if err != nil {
		return nil, fmt.Errorf("parse fresh prompt: %w", err)
	}
	followup, err := template.New("followup").Funcs(templateFuncs).Option("missingkey=error").Parse(pf.Followup)
	if err != nil {
		return nil, fmt.Errorf("parse followup prompt: %w", err)
	}

	return &Prompts{
		system:   strings.TrimSpace(pf.System),
		fresh:    fresh,
		followup: followup,
		intents:  pf.Intents,
		examples: pf.Examples,
	}, nil
}

func (p *Prompts) System() string {
	return p.system
}

// Render builds the user prompt for message, picking the follow-up mode when
// pctx names an existing intent.
func (p *Prompts) Render(message string, pctx *Context) (string, error) {
	var sb strings.Builder

	if pctx.followup() {
		err := p.followup.Execute(&sb, followupData{
			ExistingIntent:   pctx.ExistingIntent,
			ExistingEntities: pctx.ExistingEntities,
			Message:          message,
		})
		if err != nil {
			return "", fmt.Errorf("render followup prompt: %w", err)
		}
		return sb.String(), nil
	}

	role := "staff"
	if pctx != nil && pctx.Role != "" {
		role = pctx.Role
	}
	err := p.fresh.Execute(&sb, freshData{
		Role:     role,
		Message:  message,
		Intents:  p.intents,
		Examples: p.examples,
	})
	if err != nil {
		return "", fmt.Errorf("render fresh prompt: %w", err)
	}
	return sb.String(), nil
}
