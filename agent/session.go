package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lunef/agent-go/backend"
	"github.com/lunef/agent-go/core"
	"github.com/lunef/agent-go/logger"
)

// Action categorizes a session reply for the voice surface.
type Action string

const (
	ActionPreview              Action = "preview"
	ActionConfirmed            Action = "confirmed"
	ActionCancelled            Action = "cancelled"
	ActionAwaitingConfirmation Action = "awaiting_confirmation"
	ActionInfo                 Action = "info"
	ActionError                Action = "error"
)

// Reply is what the session speaks back for one utterance.
type Reply struct {
	Response string                 `json:"response"`
	Action   Action                 `json:"action"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Runner is the external agent loop that interprets a free-form intent and
// invokes tools. The session only needs the final text and the tool
// executions that produced it.
type Runner interface {
	Process(ctx context.Context, userID, transcript string) (text string, executions []core.ToolExecution, err error)
}

// PaymentExecutor executes a previously previewed payment.
// Satisfied by *backend.Client.
type PaymentExecutor interface {
	ExecutePayment(ctx context.Context, userID, previewID string) (*backend.TransactionResult, error)
}

// Session tracks at most one pending payment preview for a conversation and
// enforces that execution only follows explicit confirmation of that
// specific preview. A session is owned by exactly one conversation and is
// driven one turn at a time, so it needs no internal locking.
type Session struct {
	userID   string
	runner   Runner
	payments PaymentExecutor
	log      logger.Logger

	// pendingPreviewID is the single outstanding preview, or "" when idle.
	// Recording a new preview overwrites any prior one: at most one
	// outstanding payment per session.
	pendingPreviewID string
}

// NewSession creates an idle session for one user conversation.
func NewSession(userID string, runner Runner, payments PaymentExecutor, log logger.Logger) *Session {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Session{
		userID:   userID,
		runner:   runner,
		payments: payments,
		log:      log,
	}
}

// PendingPreviewID returns the outstanding preview id, or "" when idle.
func (s *Session) PendingPreviewID() string {
	return s.pendingPreviewID
}

// HandleUtterance processes one transcribed voice utterance.
//
// While a preview is pending the utterance is classified as a confirmation,
// cancellation, or neither; a new intent is only dispatched to the runner
// when the session is idle. After any execute attempt, whatever the outcome,
// the pending preview is cleared: the preview may already be resolved
// server-side and the session must never re-execute it automatically.
func (s *Session) HandleUtterance(ctx context.Context, transcript string) (*Reply, error) {
	if s.pendingPreviewID != "" {
		switch Classify(transcript) {
		case ConfirmationConfirmed:
			return s.executePending(ctx), nil

		case ConfirmationCancelled:
			s.log.Info("payment cancelled", map[string]any{"user_id": s.userID, "preview_id": s.pendingPreviewID})
			s.pendingPreviewID = ""
			return &Reply{
				Response: "Payment cancelled. Is there anything else I can help you with?",
				Action:   ActionCancelled,
			}, nil

		default:
			return &Reply{
				Response: "I didn't catch that. Please say 'yes' to confirm the payment or 'no' to cancel.",
				Action:   ActionAwaitingConfirmation,
			}, nil
		}
	}

	// A bare confirmation with nothing pending is answered directly rather
	// than sent to the runner, so a repeated "yes" can never double-execute.
	if Classify(transcript) == ConfirmationConfirmed {
		return &Reply{
			Response: "No pending payment to execute.",
			Action:   ActionInfo,
		}, nil
	}

	return s.runIntent(ctx, transcript)
}

// executePending executes the stored preview and clears it regardless of
// outcome.
func (s *Session) executePending(ctx context.Context) *Reply {
	previewID := s.pendingPreviewID
	s.pendingPreviewID = ""

	tx, err := s.payments.ExecutePayment(ctx, s.userID, previewID)
	if err != nil {
		if backend.IsTimeout(err) {
			// The transaction may still land; surface the ambiguity instead
			// of guessing, and leave reconciliation to the user.
			s.log.Warn("payment execution timed out", map[string]any{"user_id": s.userID, "preview_id": previewID})
			return &Reply{
				Response: err.Error(),
				Action:   ActionError,
				Data: map[string]interface{}{
					"warning":    "Transaction may still be processing",
					"preview_id": previewID,
				},
			}
		}
		s.log.Warn("payment execution failed", map[string]any{"user_id": s.userID, "preview_id": previewID, "error": err.Error()})
		return &Reply{
			Response: fmt.Sprintf("Payment failed: %s", err.Error()),
			Action:   ActionError,
		}
	}

	s.log.Info("payment executed", map[string]any{"user_id": s.userID, "preview_id": previewID, "tx_hash": tx.TxHash})
	return &Reply{
		Response: fmt.Sprintf("Payment sent successfully! %s GAS has been sent to %s. Transaction: %s...",
			tx.AmountGAS, tx.ToTag, shortHash(tx.TxHash)),
		Action: ActionConfirmed,
		Data: map[string]interface{}{
			"tx_hash":      tx.TxHash,
			"explorer_url": tx.ExplorerURL,
		},
	}
}

// runIntent dispatches a new intent to the runner and records a pending
// preview if one was created during the run.
func (s *Session) runIntent(ctx context.Context, transcript string) (*Reply, error) {
	text, executions, err := s.runner.Process(ctx, s.userID, transcript)
	if err != nil {
		s.log.Error("agent run failed", map[string]any{"user_id": s.userID, "error": err.Error()})
		return &Reply{
			Response: "Sorry, I couldn't process that. Please try again.",
			Action:   ActionError,
		}, nil
	}

	// Structured path: the preview id travels in the tool result.
	for _, exec := range executions {
		if exec.Tool != "create_payment_preview" || exec.Error != "" {
			continue
		}
		if id := previewIDFromResult(exec.Result); id != "" {
			s.pendingPreviewID = id
			return &Reply{
				Response: text,
				Action:   ActionPreview,
				Data:     map[string]interface{}{"preview_id": id},
			}, nil
		}
	}

	// Fallback for chat-style streams where tool results were flattened
	// into the rendered text.
	lower := strings.ToLower(text)
	if strings.Contains(lower, backend.PreviewAwaitingConfirmation) || strings.Contains(lower, "confirm") {
		reply := &Reply{Response: text, Action: ActionPreview}
		if id := ExtractPreviewID(text); id != "" {
			s.pendingPreviewID = id
			reply.Data = map[string]interface{}{"preview_id": id}
		}
		return reply, nil
	}

	return &Reply{Response: text, Action: ActionInfo}, nil
}

func previewIDFromResult(result interface{}) string {
	data, ok := result.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := data["preview_id"].(string)
	return id
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// Manager hands out one Session per conversation. Sessions never share
// mutable state; only the map itself is guarded.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	runner   Runner
	payments PaymentExecutor
	log      logger.Logger
}

// NewManager creates an empty session manager.
func NewManager(runner Runner, payments PaymentExecutor, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Manager{
		sessions: make(map[string]*Session),
		runner:   runner,
		payments: payments,
		log:      log,
	}
}

// Session returns the session for a conversation, creating it on first use.
// An empty conversation id falls back to the user id.
func (m *Manager) Session(conversationID, userID string) *Session {
	key := conversationID
	if key == "" {
		key = userID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := NewSession(userID, m.runner, m.payments, m.log)
	m.sessions[key] = s
	return s
}

// HandleUtterance routes one utterance to the conversation's session.
func (m *Manager) HandleUtterance(ctx context.Context, conversationID, userID, transcript string) (*Reply, error) {
	return m.Session(conversationID, userID).HandleUtterance(ctx, transcript)
}
