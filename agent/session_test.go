package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunef/agent-go/agent"
	"github.com/lunef/agent-go/backend"
	"github.com/lunef/agent-go/core"
)

const previewID = "3f2b6a1c-9d4e-4f2a-8b1c-2e7d9a5c3f10"

// fakeRunner returns canned responses and records what it was asked.
type fakeRunner struct {
	text       string
	executions []core.ToolExecution
	err        error

	calls       int
	lastMessage string
}

func (f *fakeRunner) Process(_ context.Context, _, transcript string) (string, []core.ToolExecution, error) {
	f.calls++
	f.lastMessage = transcript
	return f.text, f.executions, f.err
}

// fakeExecutor records execute calls and returns a canned outcome.
type fakeExecutor struct {
	tx  *backend.TransactionResult
	err error

	calls         int
	lastPreviewID string
}

func (f *fakeExecutor) ExecutePayment(_ context.Context, _, previewID string) (*backend.TransactionResult, error) {
	f.calls++
	f.lastPreviewID = previewID
	return f.tx, f.err
}

func previewRunner(text string) *fakeRunner {
	return &fakeRunner{
		text: text,
		executions: []core.ToolExecution{
			{
				Tool:   "create_payment_preview",
				Result: map[string]interface{}{"preview_id": previewID},
			},
		},
	}
}

func TestSessionRecordsPreviewFromToolResult(t *testing.T) {
	runner := previewRunner("You're about to send 20 GBP to @alice. Please confirm.")
	session := agent.NewSession("user-1", runner, &fakeExecutor{}, nil)

	reply, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionPreview, reply.Action)
	assert.Equal(t, previewID, reply.Data["preview_id"])
	assert.Equal(t, previewID, session.PendingPreviewID())
}

func TestSessionRecordsPreviewFromTextFallback(t *testing.T) {
	runner := &fakeRunner{
		text: "Payment is awaiting_confirmation, id " + previewID + ". Say yes to proceed.",
	}
	session := agent.NewSession("user-1", runner, &fakeExecutor{}, nil)

	reply, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionPreview, reply.Action)
	assert.Equal(t, previewID, session.PendingPreviewID())
}

func TestSessionConfirmExecutesPending(t *testing.T) {
	executor := &fakeExecutor{
		tx: &backend.TransactionResult{
			TxHash:      "0xabcdef0123456789abcdef",
			ExplorerURL: "https://xexplorer.neo.org/tx/0xabcdef0123456789abcdef",
			AmountGAS:   "7.42",
			ToTag:       "@alice",
			Status:      "confirmed",
		},
	}
	runner := previewRunner("Please confirm.")
	session := agent.NewSession("user-1", runner, executor, nil)

	_, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)

	reply, err := session.HandleUtterance(context.Background(), "yes")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionConfirmed, reply.Action)
	assert.Contains(t, reply.Response, "Payment sent successfully!")
	assert.Contains(t, reply.Response, "7.42 GAS")
	assert.Contains(t, reply.Response, "@alice")
	assert.Equal(t, executor.tx.TxHash, reply.Data["tx_hash"])
	assert.Equal(t, executor.tx.ExplorerURL, reply.Data["explorer_url"])

	assert.Equal(t, 1, executor.calls)
	assert.Equal(t, previewID, executor.lastPreviewID)
	assert.Equal(t, "", session.PendingPreviewID())

	// The confirmation itself never reaches the runner.
	assert.Equal(t, 1, runner.calls)
}

func TestSessionCancelClearsPending(t *testing.T) {
	executor := &fakeExecutor{}
	session := agent.NewSession("user-1", previewRunner("Please confirm."), executor, nil)

	_, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)

	reply, err := session.HandleUtterance(context.Background(), "no, cancel that")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionCancelled, reply.Action)
	assert.Equal(t, "Payment cancelled. Is there anything else I can help you with?", reply.Response)
	assert.Equal(t, "", session.PendingPreviewID())
	assert.Equal(t, 0, executor.calls)
}

func TestSessionUnclearKeepsPending(t *testing.T) {
	executor := &fakeExecutor{}
	session := agent.NewSession("user-1", previewRunner("Please confirm."), executor, nil)

	_, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)

	reply, err := session.HandleUtterance(context.Background(), "what was the amount again")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionAwaitingConfirmation, reply.Action)
	assert.Equal(t, "I didn't catch that. Please say 'yes' to confirm the payment or 'no' to cancel.", reply.Response)
	assert.Equal(t, previewID, session.PendingPreviewID())
	assert.Equal(t, 0, executor.calls)
}

func TestSessionConfirmWithNothingPending(t *testing.T) {
	executor := &fakeExecutor{}
	runner := &fakeRunner{text: "unused"}
	session := agent.NewSession("user-1", runner, executor, nil)

	reply, err := session.HandleUtterance(context.Background(), "yes")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionInfo, reply.Action)
	assert.Equal(t, "No pending payment to execute.", reply.Response)
	assert.Equal(t, 0, executor.calls)
	assert.Equal(t, 0, runner.calls)
}

func TestSessionRepeatedConfirmNeverDoubleExecutes(t *testing.T) {
	executor := &fakeExecutor{
		tx: &backend.TransactionResult{TxHash: "0xaa", AmountGAS: "1", ToTag: "@bob"},
	}
	session := agent.NewSession("user-1", previewRunner("Please confirm."), executor, nil)

	_, err := session.HandleUtterance(context.Background(), "send a pound to @bob")
	require.NoError(t, err)

	_, err = session.HandleUtterance(context.Background(), "yes")
	require.NoError(t, err)

	reply, err := session.HandleUtterance(context.Background(), "yes")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionInfo, reply.Action)
	assert.Equal(t, 1, executor.calls)
}

func TestSessionExecuteFailureClearsPending(t *testing.T) {
	executor := &fakeExecutor{
		err: &backend.APIError{StatusCode: 404, Message: "Payment preview expired or not found. Please start a new payment."},
	}
	session := agent.NewSession("user-1", previewRunner("Please confirm."), executor, nil)

	_, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)

	reply, err := session.HandleUtterance(context.Background(), "confirm")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionError, reply.Action)
	assert.Contains(t, reply.Response, "Payment failed:")
	assert.Contains(t, reply.Response, "expired")
	assert.Equal(t, "", session.PendingPreviewID())

	// A later "yes" must not retry the failed preview.
	reply, err = session.HandleUtterance(context.Background(), "yes")
	require.NoError(t, err)
	assert.Equal(t, agent.ActionInfo, reply.Action)
	assert.Equal(t, 1, executor.calls)
}

func TestSessionExecuteTimeoutSurfacesAmbiguity(t *testing.T) {
	executor := &fakeExecutor{
		err: &backend.TimeoutError{
			Operation: "execute_payment",
			Message:   "The payment was submitted but confirmation timed out. Please check your transaction history.",
		},
	}
	session := agent.NewSession("user-1", previewRunner("Please confirm."), executor, nil)

	_, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)

	reply, err := session.HandleUtterance(context.Background(), "yes")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionError, reply.Action)
	assert.NotContains(t, reply.Response, "Payment failed")
	assert.Contains(t, reply.Response, "timed out")
	assert.Equal(t, "Transaction may still be processing", reply.Data["warning"])
	assert.Equal(t, previewID, reply.Data["preview_id"])

	// Cleared even though the outcome is unknown: never re-execute blindly.
	assert.Equal(t, "", session.PendingPreviewID())
}

func TestSessionNewPreviewOverwritesPending(t *testing.T) {
	runner := previewRunner("Please confirm.")
	session := agent.NewSession("user-1", runner, &fakeExecutor{}, nil)

	_, err := session.HandleUtterance(context.Background(), "send 20 pounds to @alice")
	require.NoError(t, err)
	require.Equal(t, previewID, session.PendingPreviewID())

	// Not a confirmation or cancellation while pending, so it stays pending;
	// cancel first, then start a different payment.
	_, err = session.HandleUtterance(context.Background(), "cancel")
	require.NoError(t, err)

	otherID := "11111111-2222-4333-8444-555555555555"
	runner.executions = []core.ToolExecution{
		{Tool: "create_payment_preview", Result: map[string]interface{}{"preview_id": otherID}},
	}
	_, err = session.HandleUtterance(context.Background(), "send 5 euros to @bob")
	require.NoError(t, err)

	assert.Equal(t, otherID, session.PendingPreviewID())
}

func TestSessionRunnerErrorIsSpoken(t *testing.T) {
	runner := &fakeRunner{err: errors.New("model unavailable")}
	session := agent.NewSession("user-1", runner, &fakeExecutor{}, nil)

	reply, err := session.HandleUtterance(context.Background(), "what's my balance")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionError, reply.Action)
	assert.Equal(t, "Sorry, I couldn't process that. Please try again.", reply.Response)
}

func TestSessionPlainAnswerIsInfo(t *testing.T) {
	runner := &fakeRunner{text: "Your balance is 42.5 GAS, about 120 pounds."}
	session := agent.NewSession("user-1", runner, &fakeExecutor{}, nil)

	reply, err := session.HandleUtterance(context.Background(), "what's my balance")
	require.NoError(t, err)

	assert.Equal(t, agent.ActionInfo, reply.Action)
	assert.Equal(t, runner.text, reply.Response)
	assert.Equal(t, "", session.PendingPreviewID())
}

func TestManagerIsolatesConversations(t *testing.T) {
	runner := previewRunner("Please confirm.")
	manager := agent.NewManager(runner, &fakeExecutor{}, nil)

	a := manager.Session("conv-a", "user-1")
	b := manager.Session("conv-b", "user-1")
	assert.NotSame(t, a, b)
	assert.Same(t, a, manager.Session("conv-a", "user-1"))

	_, err := manager.HandleUtterance(context.Background(), "conv-a", "user-1", "send 20 pounds to @alice")
	require.NoError(t, err)

	assert.Equal(t, previewID, a.PendingPreviewID())
	assert.Equal(t, "", b.PendingPreviewID())
}

func TestManagerFallsBackToUserID(t *testing.T) {
	manager := agent.NewManager(&fakeRunner{text: "hi"}, &fakeExecutor{}, nil)
	assert.Same(t, manager.Session("", "user-9"), manager.Session("", "user-9"))
}
