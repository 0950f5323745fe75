package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func newTestParser(t *testing.T, c Completer) *Parser {
	t.Helper()
	p, err := NewParser(c, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestParse_CementSale(t *testing.T) {
	fc := &fakeCompleter{reply: "Sure! Here you go:\n```json\n" +
		`{"intent":"record_sale","confidence":"high","entities":{"product":"cement bags","quantity":5,"customer_name":"John","amount":2500,"payment_method":"cash"},"requires_confirmation":true,"clarification_needed":null}` +
		"\n```"}
	p := newTestParser(t, fc)

	res, err := p.Parse(context.Background(), "I sold 5 bags of cement to John for K2500 cash", nil)
	require.NoError(t, err)

	assert.Equal(t, RecordSale, res.Intent)
	assert.Equal(t, High, res.Confidence)
	assert.Equal(t, "cement bags", res.Entities.Product)
	require.NotNil(t, res.Entities.Quantity)
	assert.Equal(t, 5.0, *res.Entities.Quantity)
	require.NotNil(t, res.Entities.Amount)
	assert.Equal(t, 2500.0, *res.Entities.Amount)
	assert.Equal(t, "John", res.Entities.CustomerName)
	assert.Equal(t, PaymentCash, res.Entities.PaymentMethod)
	assert.True(t, res.RequiresConfirmation)
	assert.Nil(t, res.ClarificationNeeded)
}

func TestParse_NumericStringsAreCoerced(t *testing.T) {
	fc := &fakeCompleter{reply: `{"intent":"record_expense","confidence":"high","entities":{"amount":" 15000 ","payment_method":"Airtel Money"}}`}
	p := newTestParser(t, fc)

	res, err := p.Parse(context.Background(), "paid 15k transport airtel", nil)
	require.NoError(t, err)

	require.NotNil(t, res.Entities.Amount)
	assert.Equal(t, 15000.0, *res.Entities.Amount)
	assert.Equal(t, PaymentMobileMoney, res.Entities.PaymentMethod)
	assert.True(t, res.RequiresConfirmation, "mutating intents always confirm")
}

func TestParse_NonNumericAmountIsLowConfidence(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"shorthand left by model", `"15k"`},
		{"words", `"two thousand"`},
		{"nan literal", `"NaN"`},
		{"object", `{"value":5}`},
		{"boolean", `true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{reply: `{"intent":"record_sale","confidence":"high","entities":{"product":"cement","amount":` + tt.amount + `}}`}
			p := newTestParser(t, fc)

			res, err := p.Parse(context.Background(), "sold cement", nil)
			require.NoError(t, err)

			assert.Equal(t, Low, res.Confidence)
			assert.Nil(t, res.Entities.Amount)
			require.NotNil(t, res.ClarificationNeeded)
			assert.Contains(t, *res.ClarificationNeeded, "amount")
		})
	}
}

func TestParse_ModelClarificationKept(t *testing.T) {
	fc := &fakeCompleter{reply: `{"intent":"record_sale","confidence":"low","entities":{"quantity":"abc"},"clarification_needed":"How many bags?"}`}
	p := newTestParser(t, fc)

	res, err := p.Parse(context.Background(), "sold some", nil)
	require.NoError(t, err)

	require.NotNil(t, res.ClarificationNeeded)
	assert.Equal(t, "How many bags?", *res.ClarificationNeeded)
}

func TestParse_MalformedOutputFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		ctx   *Context
		want  Intent
	}{
		{"not json", "I am not sure what you mean", nil, Help},
		{"broken json", `{"intent": "record_sale", "entities": {`, nil, Help},
		{"schema violation", `{"intent": 42}`, nil, Help},
		{"unknown intent", `{"intent":"delete_everything","confidence":"high"}`, nil, Help},
		{"followup keeps existing intent", "nope", &Context{IsFollowup: true, ExistingIntent: RecordSale}, RecordSale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser(t, &fakeCompleter{reply: tt.reply})

			res, err := p.Parse(context.Background(), "hello there", tt.ctx)
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Intent)
			assert.Equal(t, Low, res.Confidence)
			assert.True(t, res.Entities.IsZero())
			assert.False(t, res.RequiresConfirmation)
		})
	}
}

func TestParse_FollowupForcesExistingIntent(t *testing.T) {
	fc := &fakeCompleter{reply: `{"intent":"check_stock","confidence":"high","entities":{"customer_name":"Mary"}}`}
	p := newTestParser(t, fc)

	qty := 3.0
	res, err := p.Parse(context.Background(), "it was for Mary", &Context{
		IsFollowup:       true,
		ExistingIntent:   RecordSale,
		ExistingEntities: Entities{Product: `cement "premium" {50kg}`, Quantity: &qty},
	})
	require.NoError(t, err)

	assert.Equal(t, RecordSale, res.Intent)
	assert.Equal(t, "Mary", res.Entities.CustomerName)
	assert.Empty(t, res.Entities.Product, "parser does not merge entity bags")

	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0], `"record_sale"`)
	assert.Contains(t, fc.prompts[0], `cement \"premium\" {50kg}`)
}

func TestParse_Errors(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		fc := &fakeCompleter{}
		p := newTestParser(t, fc)

		_, err := p.Parse(context.Background(), "   ", nil)
		assert.ErrorIs(t, err, ErrMissingInput)
		assert.Zero(t, fc.calls)
	})

	t.Run("no completer", func(t *testing.T) {
		p := newTestParser(t, nil)
		_, err := p.Parse(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("sentinel passes through", func(t *testing.T) {
		p := newTestParser(t, &fakeCompleter{err: ErrRateLimited})
		_, err := p.Parse(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("unknown error becomes upstream", func(t *testing.T) {
		p := newTestParser(t, &fakeCompleter{err: errors.New("connection reset")})
		_, err := p.Parse(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, ErrUpstream)
	})
}

func TestParse_HelpNeverConfirms(t *testing.T) {
	p := newTestParser(t, &fakeCompleter{reply: `{"intent":"HELP","confidence":"High","requires_confirmation":true}`})

	res, err := p.Parse(context.Background(), "what can you do", nil)
	require.NoError(t, err)

	assert.Equal(t, Help, res.Intent)
	assert.Equal(t, High, res.Confidence)
	assert.False(t, res.RequiresConfirmation)
}

func TestParse_UnknownConfidenceIsLow(t *testing.T) {
	p := newTestParser(t, &fakeCompleter{reply: `{"intent":"check_stock","confidence":"very sure","entities":{"product":"nails"}}`})

	res, err := p.Parse(context.Background(), "nails in stock?", nil)
	require.NoError(t, err)
	assert.Equal(t, Low, res.Confidence)
	assert.False(t, res.RequiresConfirmation)
}

func TestExtractJSON(t *testing.T) {
	got, err := extractJSON("noise {\"a\": {\"b\": 1}} trailing")
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = extractJSON("} backwards {")
	assert.Error(t, err)
}

func TestEntities_Merge(t *testing.T) {
	qty := 5.0
	amount := 2500.0
	old := Entities{Product: "cement", Quantity: &qty, CustomerName: "John"}
	merged := old.Merge(Entities{Amount: &amount, CustomerName: "Mary"})

	assert.Equal(t, "cement", merged.Product)
	assert.Equal(t, &qty, merged.Quantity)
	assert.Equal(t, &amount, merged.Amount)
	assert.Equal(t, "Mary", merged.CustomerName)
	assert.Equal(t, "John", old.CustomerName)
}

func TestIntent_Mutating(t *testing.T) {
	var mutating []string
	for _, i := range All {
		if i.Mutating() {
			mutating = append(mutating, string(i))
		}
	}
	assert.Equal(t, "record_sale,generate_invoice,record_expense", strings.Join(mutating, ","))
	assert.False(t, Intent("drop_tables").Valid())
}
