package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/audit"
	"whatsapp-assistant/internal/bridge"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/intent"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/pending"
	"whatsapp-assistant/internal/senders"
)

const (
	phone       = "+260971234567"
	cementSale  = "I sold 5 bags of cement to John for K2500 cash"
	pendingTTL  = 10 * time.Minute
	tenantID    = "tenant-1"
	messageSID1 = "SM0001"
)

type fakeParser struct {
	mu      sync.Mutex
	results map[string]*intent.Result
	err     error
	panics  bool
	calls   int
}

func (f *fakeParser) Parse(_ context.Context, message string, pctx *intent.Context) (*intent.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("parser exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[message]; ok {
		cp := *r
		return &cp, nil
	}
	return &intent.Result{Intent: intent.Help, Confidence: intent.Low}, nil
}

func (f *fakeParser) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []bridge.Request
	result *bridge.Result
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, req bridge.Request) (*bridge.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &bridge.Result{Success: true, Message: "Done! Recorded sale of 5x Cement. Receipt R2025-0001."}, nil
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	db       *gorm.DB
	router   *Router
	parser   *fakeParser
	executor *fakeExecutor
	clock    time.Time
	mu       sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		parser:   &fakeParser{results: map[string]*intent.Result{cementSale: cementResult()}},
		executor: &fakeExecutor{},
		clock:    time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC),
	}
	f.router = NewRouter(Deps{
		Senders:  senders.NewStore(db),
		Pending:  pending.NewStore(db, pendingTTL),
		Parser:   f.parser,
		Executor: f.executor,
		Audit:    audit.NewLogger(db, nil, zap.NewNop()),
	}, "K", zap.NewNop())
	f.router.now = f.now
	return f
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.clock = f.clock.Add(d)
	f.mu.Unlock()
}

func (f *fixture) register(t *testing.T, active bool) *models.SenderMapping {
	t.Helper()
	m := &models.SenderMapping{
		TenantID: tenantID, UserID: "user-1", PhoneNumber: phone,
		Role: "owner", DisplayName: "Chanda", IsActive: active,
	}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

func (f *fixture) send(body, sid string) string {
	return f.router.Handle(context.Background(), Inbound{From: "whatsapp:" + phone, Body: body, MessageSID: sid})
}

func (f *fixture) audits(t *testing.T) []models.AuditLog {
	t.Helper()
	var rows []models.AuditLog
	require.NoError(t, f.db.Order("created_at").Find(&rows).Error)
	return rows
}

func cementResult() *intent.Result {
	qty, amount := 5.0, 2500.0
	return &intent.Result{
		Intent:     intent.RecordSale,
		Confidence: intent.High,
		Entities: intent.Entities{
			Product: "cement bags", Quantity: &qty, Amount: &amount,
			CustomerName: "John", PaymentMethod: "Cash",
		},
		RequiresConfirmation: true,
	}
}

func TestUnregisteredSender(t *testing.T) {
	f := newFixture(t)

	reply := f.send("sold 2 bags", "SM1")

	assert.Equal(t, UnregisteredText, reply)
	assert.Zero(t, f.parser.count())
	rows := f.audits(t)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Success)
	assert.Nil(t, rows[0].TenantID)
	assert.Equal(t, phone, rows[0].PhoneNumber)
}

func TestInactiveSender(t *testing.T) {
	f := newFixture(t)
	f.register(t, false)

	for _, body := range []string{cementSale, "help", "yes"} {
		assert.Equal(t, InactiveText, f.send(body, "SM"))
	}
	assert.Zero(t, f.parser.count())
	assert.Zero(t, f.executor.count())

	rows := f.audits(t)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.False(t, r.Success)
		require.NotNil(t, r.TenantID)
		assert.Equal(t, tenantID, *r.TenantID)
	}
}

func TestAmbiguousSender(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)
	require.NoError(t, f.db.Create(&models.SenderMapping{
		TenantID: "tenant-2", UserID: "user-2", PhoneNumber: phone, Role: "cashier", IsActive: true,
	}).Error)

	assert.Equal(t, AmbiguousText, f.send("help", "SM1"))
	rows := f.audits(t)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Success)
}

func TestHelpEquivalence(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)

	for _, body := range []string{"help", "Help", "HI", " hello "} {
		assert.Equal(t, bridge.HelpText, f.send(body, "SM"), body)
	}
	assert.Zero(t, f.parser.count())

	rows := f.audits(t)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.True(t, r.Success)
		require.NotNil(t, r.Intent)
		assert.Equal(t, "help", *r.Intent)
	}
}

func TestTouchesLastUsedOncePerMessage(t *testing.T) {
	f := newFixture(t)
	m := f.register(t, true)

	f.send("hi", "SM1")

	var got models.SenderMapping
	require.NoError(t, f.db.First(&got, "id = ?", m.ID).Error)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, f.now().Equal(got.LastUsedAt.UTC()))
}

func TestConfirmationYesExecutesOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)

	prompt := f.send(cementSale, messageSID1)
	assert.Equal(t, "Record sale of 5x cement bags for K2500 to John?\n\n"+ConfirmSuffix, prompt)
	assert.Zero(t, f.executor.count())

	f.advance(time.Minute)
	reply := f.send("YES", "SM0002")
	assert.True(t, strings.HasPrefix(reply, "Done!"))

	require.Equal(t, 1, f.executor.count())
	call := f.executor.calls[0]
	assert.Equal(t, intent.RecordSale, call.Intent)
	assert.Equal(t, cementResult().Entities, call.Entities)
	assert.Equal(t, messageSID1, call.MessageSID)
	assert.Equal(t, tenantID, call.Context.TenantID)
	assert.Equal(t, "owner", call.Context.Role)

	// The action is consumed; a second YES is ordinary text.
	reply = f.send("yes", "SM0003")
	assert.NotContains(t, reply, "Done!")
	assert.Equal(t, 1, f.executor.count())

	rows := f.audits(t)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Success)
	assert.True(t, rows[1].Success)
	require.NotNil(t, rows[1].Intent)
	assert.Equal(t, "record_sale", *rows[1].Intent)
}

func TestConfirmationNoCancels(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)

	f.send(cementSale, messageSID1)
	reply := f.send("n", "SM0002")

	assert.Equal(t, CancelledText, reply)
	assert.Zero(t, f.executor.count())

	var action models.PendingAction
	require.NoError(t, f.db.First(&action).Error)
	assert.NotNil(t, action.ProcessedAt)
}

func TestExpiredActionNeverExecutes(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)

	f.send(cementSale, messageSID1)
	f.advance(pendingTTL + time.Second)
	reply := f.send("yes", "SM0002")

	assert.NotContains(t, reply, "Done!")
	assert.Zero(t, f.executor.count())
	assert.Equal(t, 2, f.parser.count(), "yes falls through to a fresh parse")
}

func TestConcurrentYesExecutesOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)
	f.send(cementSale, messageSID1)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.send("yes", "SM-concurrent")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.executor.count())
	assert.Len(t, f.audits(t), 6)
}

func TestNewestPendingActionWins(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)
	amount := 300.0
	f.parser.results["paid 300 for transport"] = &intent.Result{
		Intent: intent.RecordExpense, Confidence: intent.High,
		Entities:             intent.Entities{Amount: &amount, Category: "Transport"},
		RequiresConfirmation: true,
	}

	f.send(cementSale, messageSID1)
	f.advance(time.Second)
	assert.Equal(t, "Record expense of K300 for Transport?\n\n"+ConfirmSuffix, f.send("paid 300 for transport", "SM0002"))
	f.send("yes", "SM0003")

	require.Equal(t, 1, f.executor.count())
	assert.Equal(t, intent.RecordExpense, f.executor.calls[0].Intent)
	assert.Equal(t, "SM0002", f.executor.calls[0].MessageSID)
}

func TestFreshParseBranches(t *testing.T) {
	clarify := "How much did John pay?"

	tests := []struct {
		name        string
		result      *intent.Result
		parseErr    error
		execResult  *bridge.Result
		execErr     error
		wantReply   string
		wantSuccess bool
		wantExec    int
	}{
		{
			name:        "parser error",
			parseErr:    intent.ErrRateLimited,
			wantReply:   NotUnderstoodText,
			wantSuccess: false,
		},
		{
			name:        "parsed help",
			result:      &intent.Result{Intent: intent.Help, Confidence: intent.High},
			wantReply:   bridge.HelpText,
			wantSuccess: true,
		},
		{
			name:        "clarification",
			result:      &intent.Result{Intent: intent.RecordSale, Confidence: intent.Medium, ClarificationNeeded: &clarify, RequiresConfirmation: true},
			wantReply:   clarify,
			wantSuccess: true,
		},
		{
			name:        "low confidence without question",
			result:      &intent.Result{Intent: intent.CheckStock, Confidence: intent.Low},
			wantReply:   RephraseText,
			wantSuccess: true,
		},
		{
			name:        "direct execution",
			result:      &intent.Result{Intent: intent.CheckStock, Confidence: intent.High, Entities: intent.Entities{Product: "cement"}},
			execResult:  &bridge.Result{Success: true, Message: "Cement: 40 bags in stock."},
			wantReply:   "Cement: 40 bags in stock.",
			wantSuccess: true,
			wantExec:    1,
		},
		{
			name:        "bridge refusal",
			result:      &intent.Result{Intent: intent.CheckStock, Confidence: intent.High},
			execResult:  &bridge.Result{Success: false, Message: "I couldn't find a product called nails.", Error: "product not found"},
			wantReply:   "I couldn't find a product called nails.",
			wantSuccess: false,
			wantExec:    1,
		},
		{
			name:        "bridge transport error",
			result:      &intent.Result{Intent: intent.CheckStock, Confidence: intent.High},
			execErr:     errors.New("connection reset"),
			wantReply:   ErrorText,
			wantSuccess: false,
			wantExec:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.register(t, true)
			f.parser.err = tt.parseErr
			f.parser.results["msg"] = tt.result
			f.executor.result = tt.execResult
			f.executor.err = tt.execErr

			assert.Equal(t, tt.wantReply, f.send("msg", "SM1"))
			assert.Equal(t, tt.wantExec, f.executor.count())

			rows := f.audits(t)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.wantSuccess, rows[0].Success)
			if !tt.wantSuccess {
				require.NotNil(t, rows[0].ErrorMessage)
				assert.NotEqual(t, rows[0].ResponseText, *rows[0].ErrorMessage)
			}
		})
	}
}

func TestPanicBecomesErrorReply(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)
	f.parser.panics = true

	assert.Equal(t, ErrorText, f.send("anything", "SM1"))

	rows := f.audits(t)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Success)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Contains(t, *rows[0].ErrorMessage, "parser exploded")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status     senders.Status
		body       string
		hasPending bool
		want       State
	}{
		{senders.Unregistered, "help", true, StateUnregistered},
		{senders.Inactive, "yes", true, StateInactive},
		{senders.Ambiguous, "hi", false, StateAmbiguous},
		{senders.Active, "Hello", true, StateHelp},
		{senders.Active, "Y", true, StateAwaitingConfirmation},
		{senders.Active, "no", false, StateFreshParse},
		{senders.Active, "yes please", true, StateFreshParse},
		{senders.Active, cementSale, false, StateFreshParse},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.status, tt.body, tt.hasPending), "%s/%q", tt.status, tt.body)
	}
}

func TestRestate(t *testing.T) {
	qty, amount := 10.0, 5000.0
	e := intent.Entities{Product: "cement", Quantity: &qty, Amount: &amount, CustomerName: "John"}

	assert.Equal(t, "Create invoice for John: 10x cement for K5000?", Restate(intent.GenerateInvoice, e, "K"))
	assert.Equal(t, "Record sale of 1x item?", Restate(intent.RecordSale, intent.Entities{}, "K"))
	assert.Equal(t, "Proceed with send_receipt?", Restate(intent.SendReceipt, e, "K"))
}
