package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

const outputSchema = `{
	"type": "object",
	"required": ["intent"],
	"properties": {
		"intent": {"type": "string", "minLength": 1},
		"confidence": {"type": "string"},
		"entities": {"type": ["object", "null"]},
		"requires_confirmation": {"type": ["boolean", "null"]},
		"clarification_needed": {"type": ["string", "null"]}
	}
}`

// rawOutput is the model's reply before normalisation.
type rawOutput struct {
	Intent               string                 `json:"intent"`
	Confidence           string                 `json:"confidence"`
	Entities             map[string]interface{} `json:"entities"`
	RequiresConfirmation *bool                  `json:"requires_confirmation"`
	ClarificationNeeded  *string                `json:"clarification_needed"`
}

// Parser classifies messages through a Completer.
type Parser struct {
	completer Completer
	prompts   *Prompts
	schema    *jsonschema.Schema
	logger    *zap.Logger
}

// NewParser builds a parser. A nil completer is allowed; every Parse then
// fails with ErrMissingCredential.
func NewParser(completer Completer, logger *zap.Logger) (*Parser, error) {
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	schema, err := jsonschema.CompileString("intent-output.json", outputSchema)
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	return &Parser{
		completer: completer,
		prompts:   prompts,
		schema:    schema,
		logger:    logger.Named("intent"),
	}, nil
}

// Parse classifies message. Malformed model output never produces an
// error; it yields a low-confidence fallback instead. Errors are always one
// of the package sentinels.
func (p *Parser) Parse(ctx context.Context, message string, pctx *Context) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMissingInput
	}
	if p.completer == nil {
		return nil, ErrMissingCredential
	}

	prompt, err := p.prompts.Render(message, pctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	text, err := p.completer.Complete(ctx, p.prompts.System(), prompt)
	if err != nil {
		if !isSentinel(err) {
			err = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, err
	}

	res, err := p.decode(text, pctx)
	if err != nil {
		p.logger.Warn("Falling back after malformed model output",
			zap.Error(err),
			zap.String("output", truncateForLog(text)),
		)
		return fallback(pctx), nil
	}
	return res, nil
}

func (p *Parser) decode(text string, pctx *Context) (*Result, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedOutput, err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedOutput, err)
	}

	var out rawOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedOutput, err)
	}

	name := Intent(strings.ToLower(strings.TrimSpace(out.Intent)))
	if pctx.followup() {
		name = pctx.ExistingIntent
	}
	if !name.Valid() {
		return nil, fmt.Errorf("%w: unknown intent %q", errMalformedOutput, out.Intent)
	}

	return normalise(name, out), nil
}

// normalise applies the deterministic post-processing rules to a decoded
// model reply.
func normalise(name Intent, out rawOutput) *Result {
	res := &Result{
		Intent:     name,
		Confidence: normaliseConfidence(out.Confidence),
	}

	var unreadable []string
	ent := Entities{
		Product:        stringEntity(out.Entities, "product"),
		CustomerName:   stringEntity(out.Entities, "customer_name"),
		CustomerPhone:  stringEntity(out.Entities, "customer_phone"),
		Category:       stringEntity(out.Entities, "category"),
		Description:    stringEntity(out.Entities, "description"),
		Period:         strings.ToLower(stringEntity(out.Entities, "period")),
		DocumentNumber: strings.ToUpper(stringEntity(out.Entities, "document_number")),
		Notes:          stringEntity(out.Entities, "notes"),
	}
	for _, field := range []struct {
		key string
		dst **float64
	}{
		{"quantity", &ent.Quantity},
		{"amount", &ent.Amount},
	} {
		n, present, ok := coerceNumber(out.Entities[field.key])
		switch {
		case !present:
		case !ok:
			unreadable = append(unreadable, field.key)
		default:
			*field.dst = &n
		}
	}
	if pm := stringEntity(out.Entities, "payment_method"); pm != "" {
		ent.PaymentMethod = CanonicalPaymentMethod(pm)
	}
	res.Entities = ent

	if out.ClarificationNeeded != nil {
		if q := strings.TrimSpace(*out.ClarificationNeeded); q != "" {
			res.ClarificationNeeded = &q
		}
	}

	if len(unreadable) > 0 {
		res.Confidence = Low
		if res.ClarificationNeeded == nil {
			q := fmt.Sprintf("I couldn't read the %s. Please send it as a plain number, e.g. 2500.",
				strings.Join(unreadable, " and "))
			res.ClarificationNeeded = &q
		}
	}

	switch {
	case name == Help:
		res.RequiresConfirmation = false
	case name.Mutating():
		res.RequiresConfirmation = true
	case out.RequiresConfirmation != nil:
		res.RequiresConfirmation = *out.RequiresConfirmation
	}

	return res
}

func fallback(pctx *Context) *Result {
	name := Help
	if pctx != nil && pctx.ExistingIntent.Valid() {
		name = pctx.ExistingIntent
	}
	return &Result{Intent: name, Confidence: Low}
}

func normaliseConfidence(s string) Confidence {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case High, Medium, Low:
		return c
	default:
		return Low
	}
}

// coerceNumber converts a model-supplied value to a number. present is false
// when the value is absent; ok is false when it is present but not numeric.
func coerceNumber(v interface{}) (n float64, present, ok bool) {
	switch x := v.(type) {
	case nil:
		return 0, false, false
	case float64:
		return x, true, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, true, false
		}
		return f, true, true
	default:
		return 0, true, false
	}
}

func stringEntity(m map[string]interface{}, key string) string {
	switch x := m[key].(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return FormatNumber(x)
	default:
		return ""
	}
}

// extractJSON returns the text between the first '{' and the last '}'.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found", errMalformedOutput)
	}
	return s[start : end+1], nil
}

func isSentinel(err error) bool {
	for _, target := range []error{ErrMissingInput, ErrMissingCredential, ErrRateLimited, ErrQuotaExceeded, ErrUpstream} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func truncateForLog(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
