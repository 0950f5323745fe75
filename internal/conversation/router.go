// Package conversation routes one inbound WhatsApp message to exactly one
// reply and exactly one audit entry.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"whatsapp-assistant/internal/audit"
	"whatsapp-assistant/internal/bridge"
	"whatsapp-assistant/internal/intent"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/pending"
	"whatsapp-assistant/internal/senders"
)

// State is the branch a message takes. It is derived from stored data on
// every message, never persisted.
type State int

const (
	StateUnregistered State = iota
	StateInactive
	StateAmbiguous
	StateHelp
	StateAwaitingConfirmation
	StateFreshParse
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateInactive:
		return "inactive"
	case StateAmbiguous:
		return "ambiguous"
	case StateHelp:
		return "help"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateFreshParse:
		return "fresh_parse"
	default:
		return "unknown"
	}
}

// classify is the single dispatch table of the router.
func classify(status senders.Status, body string, hasPending bool) State {
	switch status {
	case senders.Unregistered:
		return StateUnregistered
	case senders.Inactive:
		return StateInactive
	case senders.Ambiguous:
		return StateAmbiguous
	}
	switch {
	case isHelp(body):
		return StateHelp
	case isYesNo(body) && hasPending:
		return StateAwaitingConfirmation
	default:
		return StateFreshParse
	}
}

type Senders interface {
	Resolve(ctx context.Context, phone string) (*senders.Resolution, error)
	Touch(ctx context.Context, id string, now time.Time) error
}

type PendingActions interface {
	Create(ctx context.Context, action *models.PendingAction, now time.Time) error
	Latest(ctx context.Context, tenantID, phone string, now time.Time) (*models.PendingAction, error)
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
}

type Parser interface {
	Parse(ctx context.Context, message string, pctx *intent.Context) (*intent.Result, error)
}

type Auditor interface {
	RecordBestEffort(ctx context.Context, e audit.Entry)
}

type Deps struct {
	Senders  Senders
	Pending  PendingActions
	Parser   Parser
	Executor bridge.Executor
	Audit    Auditor
}

// Inbound is one message as delivered by the webhook.
type Inbound struct {
	From       string
	Body       string
	MessageSID string
}

// Outcome is what one message produces. Handle turns it into exactly one
// reply and one audit write.
type Outcome struct {
	State State
	Reply string
	Audit audit.Entry
}

type Router struct {
	deps     Deps
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

func NewRouter(deps Deps, currency string, logger *zap.Logger) *Router {
	return &Router{
		deps:     deps,
		currency: currency,
		logger:   logger.Named("router"),
		now:      time.Now,
	}
}

// Handle processes the message, writes its audit entry and returns the reply.
func (r *Router) Handle(ctx context.Context, in Inbound) string {
	start := r.now()
	out := r.protect(ctx, in)
	out.Audit.ExecutionTimeMs = r.now().Sub(start).Milliseconds()

	r.deps.Audit.RecordBestEffort(ctx, out.Audit)
	r.logger.Info("Message handled",
		zap.String("phone", out.Audit.PhoneNumber),
		zap.String("state", out.State.String()),
		zap.String("intent", out.Audit.Intent),
		zap.Bool("success", out.Audit.Success),
		zap.Int64("execution_time_ms", out.Audit.ExecutionTimeMs),
	)
	return out.Reply
}

func (r *Router) protect(ctx context.Context, in Inbound) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic while routing message", zap.Any("panic", p), zap.Stack("stacktrace"))
			out = Outcome{
				State: out.State,
				Reply: ErrorText,
				Audit: audit.Entry{
					PhoneNumber:  senders.NormalizePhone(in.From),
					MessageText:  in.Body,
					ErrorMessage: fmt.Sprintf("panic: %v", p),
				},
			}
		}
	}()
	return r.Process(ctx, in)
}

// Process runs exactly one branch for the message. It does not write the
// audit entry; the returned Outcome carries it.
func (r *Router) Process(ctx context.Context, in Inbound) Outcome {
	phone := senders.NormalizePhone(in.From)
	base := audit.Entry{PhoneNumber: phone, MessageText: in.Body}

	res, err := r.deps.Senders.Resolve(ctx, phone)
	if err != nil {
		return r.failure(StateUnregistered, base, ErrorText, err)
	}
	if res.Mapping != nil {
		base.TenantID = res.Mapping.TenantID
		base.UserID = res.Mapping.UserID
		base.DisplayName = res.Mapping.DisplayName
	}

	var action *models.PendingAction
	if res.Status == senders.Active {
		if err := r.deps.Senders.Touch(ctx, res.Mapping.ID, r.now()); err != nil {
			r.logger.Warn("Failed to touch sender mapping", zap.String("mapping_id", res.Mapping.ID), zap.Error(err))
		}
		if isYesNo(in.Body) {
			action, err = r.deps.Pending.Latest(ctx, res.Mapping.TenantID, phone, r.now())
			if err != nil && !errors.Is(err, pending.ErrNotFound) {
				return r.failure(StateAwaitingConfirmation, base, ErrorText, err)
			}
		}
	}

	state := classify(res.Status, in.Body, action != nil)
	switch state {
	case StateUnregistered:
		return r.failure(state, base, UnregisteredText, errors.New("sender not registered"))
	case StateInactive:
		return r.failure(state, base, InactiveText, errors.New("sender mapping inactive"))
	case StateAmbiguous:
		return r.failure(state, base, AmbiguousText, fmt.Errorf("%d active mappings for sender", res.Matches))
	case StateHelp:
		base.Intent = string(intent.Help)
		return r.success(state, base, bridge.HelpText)
	case StateAwaitingConfirmation:
		if out, ok := r.confirm(ctx, in, base, res.Mapping, action); ok {
			return out
		}
		return r.freshParse(ctx, in, base, res.Mapping)
	default:
		return r.freshParse(ctx, in, base, res.Mapping)
	}
}

// confirm resolves the pending action. It reports false when the action was
// claimed by someone else or expired in the meantime; the message is then
// handled as ordinary text.
func (r *Router) confirm(ctx context.Context, in Inbound, base audit.Entry, m *models.SenderMapping, action *models.PendingAction) (Outcome, bool) {
	base.Intent = string(action.Intent)

	claimed, err := r.deps.Pending.Claim(ctx, action.ID, r.now())
	if err != nil {
		return r.failure(StateAwaitingConfirmation, base, ErrorText, err), true
	}
	if !claimed {
		r.logger.Info("Pending action no longer open", zap.String("action_id", action.ID))
		return Outcome{}, false
	}

	if isNo(in.Body) {
		return r.success(StateAwaitingConfirmation, base, CancelledText), true
	}
	return r.execute(ctx, StateAwaitingConfirmation, base, m, action.Intent, action.Entities, action.MessageSID), true
}

func (r *Router) freshParse(ctx context.Context, in Inbound, base audit.Entry, m *models.SenderMapping) Outcome {
	const state = StateFreshParse

	parsed, err := r.deps.Parser.Parse(ctx, in.Body, &intent.Context{Role: m.Role})
	if err != nil {
		return r.failure(state, base, NotUnderstoodText, err)
	}
	base.Intent = string(parsed.Intent)

	switch {
	case parsed.Intent == intent.Help:
		return r.success(state, base, bridge.HelpText)
	case parsed.Confidence == intent.Low || parsed.ClarificationNeeded != nil:
		reply := RephraseText
		if parsed.ClarificationNeeded != nil && *parsed.ClarificationNeeded != "" {
			reply = *parsed.ClarificationNeeded
		}
		return r.success(state, base, reply)
	case parsed.RequiresConfirmation:
		prompt := confirmationPrompt(parsed.Intent, parsed.Entities, r.currency)
		err := r.deps.Pending.Create(ctx, &models.PendingAction{
			TenantID:         m.TenantID,
			PhoneNumber:      base.PhoneNumber,
			UserID:           m.UserID,
			MessageSID:       in.MessageSID,
			Intent:           parsed.Intent,
			Entities:         parsed.Entities,
			ConfirmationText: in.Body,
		}, r.now())
		if err != nil {
			return r.failure(state, base, ErrorText, err)
		}
		return r.success(state, base, prompt)
	default:
		return r.execute(ctx, state, base, m, parsed.Intent, parsed.Entities, in.MessageSID)
	}
}

func (r *Router) execute(ctx context.Context, state State, base audit.Entry, m *models.SenderMapping, i intent.Intent, e intent.Entities, messageSID string) Outcome {
	res, err := r.deps.Executor.Execute(ctx, bridge.Request{
		Intent:   i,
		Entities: e,
		Context: bridge.Context{
			TenantID:    m.TenantID,
			UserID:      m.UserID,
			Role:        m.Role,
			DisplayName: m.DisplayName,
			PhoneNumber: m.PhoneNumber,
		},
		MessageSID: messageSID,
	})
	if err != nil {
		return r.failure(state, base, ErrorText, err)
	}
	if !res.Success {
		detail := res.Error
		if detail == "" {
			detail = "execution failed"
		}
		reply := res.Message
		if reply == "" {
			reply = bridgeFailed
		}
		return r.failure(state, base, reply, errors.New(detail))
	}
	reply := res.Message
	if reply == "" {
		reply = "Done!"
	}
	return r.success(state, base, reply)
}

func (r *Router) success(state State, e audit.Entry, reply string) Outcome {
	e.ResponseText = reply
	e.Success = true
	return Outcome{State: state, Reply: reply, Audit: e}
}

func (r *Router) failure(state State, e audit.Entry, reply string, err error) Outcome {
	e.ResponseText = reply
	e.Success = false
	e.ErrorMessage = err.Error()
	return Outcome{State: state, Reply: reply, Audit: e}
}
