package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/access"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

func seededBoard(t *testing.T) (*AgentBoard, *fakeBackend, *recorder) {
	t.Helper()
	backend := newFakeBackend()
	backend.addUser("42", "a42@x.com", "secret1", domain.Profile{Role: domain.RoleAgent, Status: domain.StatusPendingApproval, PaymentReceiptURL: "https://x/42.pdf"})
	backend.addUser("43", "a43@x.com", "secret1", domain.Profile{Role: domain.RoleAgent, Status: domain.StatusPendingApproval})
	backend.addUser("root", "root@x.com", "secret1", domain.Profile{Role: domain.RoleSuperAdmin})

	rec := &recorder{}
	board := NewAgentBoard(backend, rec, zerolog.Nop())
	if _, err := board.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return board, backend, rec
}

func statusOf(board *AgentBoard, id string) domain.Status {
	for _, a := range board.Agents() {
		if a.ID == id {
			return a.Status
		}
	}
	return ""
}

func TestAgentBoard_Load_OnlyAgents(t *testing.T) {
	board, _, _ := seededBoard(t)

	agents := board.Agents()
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	for _, a := range agents {
		if a.Role != domain.RoleAgent {
			t.Fatalf("non-agent in list: %+v", a)
		}
	}
}

func TestAgentBoard_Approve_OnlyMatchingAgent(t *testing.T) {
	board, _, rec := seededBoard(t)

	if err := board.SetStatus(context.Background(), "42", domain.StatusApproved); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	if statusOf(board, "42") != domain.StatusApproved {
		t.Fatalf("agent 42 not approved locally")
	}
	if statusOf(board, "43") != domain.StatusPendingApproval {
		t.Fatalf("agent 43 must be untouched")
	}
	if rec.last().message != "Agent approved successfully" {
		t.Fatalf("unexpected notification: %+v", rec.last())
	}
}

func TestAgentBoard_RejectedAgentLandsOnPending(t *testing.T) {
	board, backend, _ := seededBoard(t)

	if err := board.SetStatus(context.Background(), "42", domain.StatusRejected); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}

	p, err := backend.ReadProfile(context.Background(), "42")
	if err != nil {
		t.Fatalf("ReadProfile returned error: %v", err)
	}
	st := access.State{Authenticated: true, Resolved: true, Role: p.Role, Status: p.Status}
	if got := access.Target(st); got != access.ViewPending {
		t.Fatalf("expected pending view for rejected agent, got %s", got)
	}
}

func TestAgentBoard_SetStatus_BackendFailureKeepsList(t *testing.T) {
	board, backend, rec := seededBoard(t)
	backend.updateErr = errBackendDown

	if err := board.SetStatus(context.Background(), "42", domain.StatusApproved); !errors.Is(err, errBackendDown) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if statusOf(board, "42") != domain.StatusPendingApproval {
		t.Fatalf("local list changed on failure")
	}
	if rec.count(ports.LevelError) != 1 {
		t.Fatalf("expected one error notification, got %+v", rec.notes)
	}
}

func TestAgentBoard_SetStatus_RejectsPending(t *testing.T) {
	board, backend, _ := seededBoard(t)

	if err := board.SetStatus(context.Background(), "42", domain.StatusPendingApproval); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if len(backend.updates) != 0 {
		t.Fatalf("backend must not be called")
	}
}

func TestAgentBoard_ReceiptURL(t *testing.T) {
	board, _, rec := seededBoard(t)

	url, err := board.ReceiptURL("42")
	if err != nil || url != "https://x/42.pdf" {
		t.Fatalf("unexpected receipt: %q %v", url, err)
	}
	if _, err := board.ReceiptURL("43"); !errors.Is(err, ErrNoReceipt) {
		t.Fatalf("expected ErrNoReceipt, got %v", err)
	}
	if rec.last().message != "No payment receipt available" {
		t.Fatalf("unexpected notification: %+v", rec.last())
	}
}
