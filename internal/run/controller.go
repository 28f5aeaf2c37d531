package run

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rc-ventura/smart-grading-assistant/internal/logging"
	"github.com/rc-ventura/smart-grading-assistant/internal/registry"
	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

var (
	// ErrRunActive is returned by Start while a previous run has not
	// reached a terminal status.
	ErrRunActive = errors.New("a run is already active")
	// ErrRunEnded is returned for operations on a run that already
	// reached a terminal status.
	ErrRunEnded = errors.New("run has already ended")
	// ErrStaleHandle is returned when a handle no longer refers to the
	// controller's active run.
	ErrStaleHandle = errors.New("handle no longer refers to the active run")
)

// Backend produces the evaluation event stream. Satisfied by
// pipeline.Backend.
type Backend interface {
	Run(ctx context.Context, input types.GradingInput, ectx *registry.ExecutionContext) <-chan types.StageEvent
	Resume(ctx context.Context, invocationID string, decision types.ApprovalDecision, ectx *registry.ExecutionContext) <-chan types.StageEvent
}

// Archive persists terminal run states. Optional.
type Archive interface {
	SaveRun(state types.RunState) error
}

// Controller owns the lifecycle of grading runs. It is the sole writer
// of each run's RunState; readers get snapshots. One drain goroutine
// consumes each event stream, so state writes are serialized per run.
type Controller struct {
	backend Backend
	reg     *registry.Registry
	archive Archive
	logger  logging.Logger
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	current *runInstance
}

func NewController(backend Backend, reg *registry.Registry, archive Archive, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Controller{
		backend: backend,
		reg:     reg,
		archive: archive,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

type runInstance struct {
	input  types.GradingInput
	fp     registry.Fingerprint
	ectx   *registry.ExecutionContext
	ctx    context.Context
	cancel context.CancelFunc
	binder *Binder
	norm   *Normalizer

	wg      sync.WaitGroup
	stopped atomic.Bool

	// guarded by the controller mutex
	state types.RunState
}

// Handle refers to one run. It stays valid after the run ends;
// Snapshot then returns the terminal state.
type Handle struct {
	run *runInstance
}

func (h *Handle) RunID() string {
	if h == nil || h.run == nil {
		return ""
	}
	return h.run.state.RunID
}

// Start begins a new run against the execution context for fp. Only
// one run may be active at a time.
func (c *Controller) Start(input types.GradingInput, fp registry.Fingerprint) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.current.state.Status.Terminal() {
		return nil, ErrRunActive
	}
	inst, err := c.newInstanceLocked(input, fp, c.newID())
	if err != nil {
		return nil, err
	}
	c.current = inst
	c.logger.Info("run started", logging.F("run_id", inst.state.RunID), logging.F("fingerprint", fp.String()))
	inst.wg.Add(1)
	go c.drain(inst, c.backend.Run(inst.ctx, input, inst.ectx))
	return &Handle{run: inst}, nil
}

func (c *Controller) newInstanceLocked(input types.GradingInput, fp registry.Fingerprint, runID string) (*runInstance, error) {
	ectx, err := c.reg.Acquire(fp)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &runInstance{
		input:  input,
		fp:     fp,
		ectx:   ectx,
		ctx:    ctx,
		cancel: cancel,
		binder: NewBinder(),
		norm:   NewNormalizer(runID, c.now),
		state: types.RunState{
			RunID:     runID,
			Provider:  fp.Provider,
			Model:     fp.Model,
			Status:    types.RunIdle,
			Grades:    make(map[string]types.CriterionGrade),
			StartedAt: c.now(),
		},
	}, nil
}

// Snapshot returns a deep copy of the run's state.
func (c *Controller) Snapshot(h *Handle) types.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return h.run.state.Clone()
}

// SubmitDecision resolves the run's pending approval and resumes the
// backend with the decision. A decision whose invocation id does not
// match fails with *BindingError and changes nothing.
func (c *Controller) SubmitDecision(h *Handle, decision types.ApprovalDecision) error {
	inst := h.run
	c.mu.Lock()
	defer c.mu.Unlock()
	if inst.state.Status.Terminal() {
		return ErrRunEnded
	}
	req, err := inst.binder.Resolve(decision)
	if err != nil {
		return err
	}
	inst.state.PendingApproval = nil
	inst.state.CurrentInvocationID = ""
	c.logger.Info("decision submitted",
		logging.F("run_id", inst.state.RunID),
		logging.F("invocation_id", req.InvocationID),
		logging.F("outcome", string(decision.Outcome)))
	inst.wg.Add(1)
	go c.drain(inst, c.backend.Resume(inst.ctx, req.InvocationID, decision, inst.ectx))
	return nil
}

// Cancel stops the run and marks it cancelled. Calling it again, or on
// a run that already ended, is a no-op.
func (c *Controller) Cancel(h *Handle) {
	inst := h.run
	inst.stopped.Store(true)
	c.mu.Lock()
	defer c.mu.Unlock()
	if inst.state.Status.Terminal() {
		return
	}
	c.finalizeLocked(inst, types.RunCancelled, "")
}

// Restart cancels the run, waits for its drain goroutines to exit, and
// starts a fresh evaluation pass preserving the run id with empty
// stage history.
func (c *Controller) Restart(h *Handle) (*Handle, error) {
	c.Cancel(h)
	h.run.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != h.run {
		return nil, ErrStaleHandle
	}
	inst, err := c.newInstanceLocked(h.run.input, h.run.fp, h.run.state.RunID)
	if err != nil {
		return nil, err
	}
	c.current = inst
	c.logger.Info("run restarted", logging.F("run_id", inst.state.RunID))
	inst.wg.Add(1)
	go c.drain(inst, c.backend.Run(inst.ctx, inst.input, inst.ectx))
	return &Handle{run: inst}, nil
}

// Close cancels the active run, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	inst := c.current
	c.mu.Unlock()
	if inst != nil {
		c.Cancel(&Handle{run: inst})
		inst.wg.Wait()
	}
}

// drain consumes one event stream. The stop flag is checked at every
// event boundary so a cancelled run stops mutating state while still
// unblocking the producer.
func (c *Controller) drain(inst *runInstance, events <-chan types.StageEvent) {
	defer inst.wg.Done()
	regrade := false
	for ev := range events {
		if inst.stopped.Load() {
			continue
		}
		delta, ok := inst.norm.Normalize(ev)
		if !ok {
			continue
		}
		if c.apply(inst, delta) {
			regrade = true
		}
	}
	if regrade && !inst.stopped.Load() && inst.ctx.Err() == nil {
		c.regradePass(inst)
	}
}

// regradePass resets the run for a fresh evaluation and starts it.
func (c *Controller) regradePass(inst *runInstance) {
	c.mu.Lock()
	inst.state.Grades = make(map[string]types.CriterionGrade)
	inst.state.Aggregate = nil
	inst.state.Final = nil
	inst.state.PendingApproval = nil
	inst.state.CurrentInvocationID = ""
	inst.state.TerminalError = ""
	inst.state.Status = types.RunIdle
	inst.state.StartedAt = c.now()
	inst.state.EndedAt = nil
	inst.norm.Reset()
	inst.binder.Clear()
	c.logger.Info("regrading", logging.F("run_id", inst.state.RunID))
	c.mu.Unlock()

	inst.wg.Add(1)
	go c.drain(inst, c.backend.Run(inst.ctx, inst.input, inst.ectx))
}

// apply folds one delta into the run state. Returns true when the
// backend asked for a regrade.
func (c *Controller) apply(inst *runInstance, delta Delta) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inst.state.Status.Terminal() {
		return false
	}
	switch delta.Kind {
	case DeltaStatus:
		inst.state.Status = delta.Status
	case DeltaCriterion:
		inst.state.Grades[delta.Grade.Criterion] = *delta.Grade
	case DeltaAggregate:
		agg := *delta.Aggregate
		inst.state.Aggregate = &agg
	case DeltaApproval:
		if err := inst.binder.Register(*delta.Approval); err != nil {
			c.logger.Warn("approval request dropped", logging.F("run_id", inst.state.RunID), logging.F("error", err))
			return false
		}
		req := *delta.Approval
		inst.state.PendingApproval = &req
		inst.state.CurrentInvocationID = req.InvocationID
		inst.state.Status = types.RunAwaitingApproval
	case DeltaFinished:
		switch delta.Reason {
		case types.FinishRegrade:
			inst.state.PendingApproval = nil
			inst.state.CurrentInvocationID = ""
			inst.binder.Clear()
			return true
		case types.FinishCancelled:
			c.finalizeLocked(inst, types.RunCancelled, "")
		default:
			if delta.Final != nil {
				final := *delta.Final
				inst.state.Final = &final
			}
			c.finalizeLocked(inst, types.RunComplete, "")
		}
	case DeltaError:
		if delta.Fatal {
			c.finalizeLocked(inst, types.RunFailed, delta.Err.Error())
		} else {
			c.logger.Warn("run error", logging.F("run_id", inst.state.RunID), logging.F("error", delta.Err))
		}
	}
	return false
}

// finalizeLocked moves the run to a terminal status exactly once,
// releases run-scoped resources and archives the state.
func (c *Controller) finalizeLocked(inst *runInstance, status types.RunStatus, terminalErr string) {
	inst.state.Status = status
	inst.state.TerminalError = terminalErr
	inst.state.PendingApproval = nil
	inst.state.CurrentInvocationID = ""
	ended := c.now()
	inst.state.EndedAt = &ended
	inst.binder.Clear()
	inst.cancel()
	c.logger.Info("run ended",
		logging.F("run_id", inst.state.RunID),
		logging.F("status", string(status)),
		logging.F("error", terminalErr))
	if c.archive != nil {
		snapshot := inst.state.Clone()
		go func() {
			if err := c.archive.SaveRun(snapshot); err != nil {
				c.logger.Error("archiving run failed", logging.F("run_id", snapshot.RunID), logging.F("error", err))
			}
		}()
	}
}
