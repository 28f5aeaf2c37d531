package run

import (
	"errors"
	"testing"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

func TestBinderResolvesExactMatch(t *testing.T) {
	b := NewBinder()
	if err := b.Register(types.ApprovalRequest{RunID: "r1", InvocationID: "inv-1", Reason: "low score"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	req, err := b.Resolve(types.ApprovalDecision{InvocationID: "inv-1", Outcome: types.DecisionApprove})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if req.InvocationID != "inv-1" || req.Reason != "low score" {
		t.Fatalf("unexpected resolved request: %+v", req)
	}
	if b.Pending() != nil {
		t.Fatalf("resolve must clear the pending request")
	}
}

func TestBinderRejectsMismatchedInvocation(t *testing.T) {
	b := NewBinder()
	if err := b.Register(types.ApprovalRequest{InvocationID: "inv-1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := b.Resolve(types.ApprovalDecision{InvocationID: "inv-2", Outcome: types.DecisionApprove})
	var bindErr *BindingError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected *BindingError, got %v", err)
	}
	if bindErr.Expected != "inv-1" || bindErr.Got != "inv-2" {
		t.Fatalf("unexpected binding error: %+v", bindErr)
	}
	if b.Pending() == nil {
		t.Fatalf("mismatch must leave the pending request in place")
	}
}

func TestBinderSingleOutstandingRequest(t *testing.T) {
	b := NewBinder()
	if err := b.Register(types.ApprovalRequest{InvocationID: "inv-1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := b.Register(types.ApprovalRequest{InvocationID: "inv-2"}); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
	if got := b.Pending().InvocationID; got != "inv-1" {
		t.Fatalf("pending request must be unchanged, got %s", got)
	}
}

func TestBinderResolveWithoutPending(t *testing.T) {
	b := NewBinder()
	if _, err := b.Resolve(types.ApprovalDecision{InvocationID: "inv-1"}); !errors.Is(err, ErrNoPendingApproval) {
		t.Fatalf("expected ErrNoPendingApproval, got %v", err)
	}
}
