package run

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

var (
	// ErrAlreadyPending is returned when a second approval request is
	// registered before the first is resolved.
	ErrAlreadyPending = errors.New("an approval request is already pending")
	// ErrNoPendingApproval is returned when a decision arrives with
	// nothing to decide.
	ErrNoPendingApproval = errors.New("no approval request is pending")
)

// BindingError reports a decision whose invocation id does not match
// the pending request. The pending request is left untouched.
type BindingError struct {
	Expected string
	Got      string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("decision invocation %q does not match pending invocation %q", e.Got, e.Expected)
}

// Binder holds at most one outstanding approval request and resolves
// it against exactly one matching decision. Register, Resolve and the
// clear-on-resolve are atomic under one mutex.
type Binder struct {
	mu      sync.Mutex
	pending *types.ApprovalRequest
}

func NewBinder() *Binder {
	return &Binder{}
}

func (b *Binder) Register(req types.ApprovalRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return fmt.Errorf("%w: invocation %s", ErrAlreadyPending, b.pending.InvocationID)
	}
	copied := req
	b.pending = &copied
	return nil
}

// Pending returns a copy of the outstanding request, nil when none.
func (b *Binder) Pending() *types.ApprovalRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil
	}
	copied := *b.pending
	return &copied
}

// Resolve matches the decision against the pending request and clears
// it. A mismatched invocation id fails with *BindingError and leaves
// the pending request in place.
func (b *Binder) Resolve(decision types.ApprovalDecision) (types.ApprovalRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return types.ApprovalRequest{}, ErrNoPendingApproval
	}
	if decision.InvocationID != b.pending.InvocationID {
		return types.ApprovalRequest{}, &BindingError{Expected: b.pending.InvocationID, Got: decision.InvocationID}
	}
	req := *b.pending
	b.pending = nil
	return req, nil
}

// Clear drops any pending request, used when the run ends without a
// decision.
func (b *Binder) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
