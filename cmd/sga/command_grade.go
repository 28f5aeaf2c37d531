package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

const snapshotPollInterval = 200 * time.Millisecond

type GradeCommand struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	newEnv environmentFactory
}

func NewGradeCommand(stdout, stderr io.Writer, stdin io.Reader, newEnv environmentFactory) *GradeCommand {
	return &GradeCommand{
		stdout: stdout,
		stderr: stderr,
		stdin:  stdin,
		newEnv: newEnv,
	}
}

func (c *GradeCommand) Run(args []string) error {
	fs := flag.NewFlagSet("grade", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rubricPath := fs.String("rubric", "", "path to the rubric JSON file")
	submissionPath := fs.String("submission", "", "path to the submission file")
	provider := fs.String("provider", "", "llm provider (gemini, openai)")
	model := fs.String("model", "", "model name override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input, err := loadGradingInput(*rubricPath, *submissionPath)
	if err != nil {
		return err
	}
	env, err := c.newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	fp := env.fingerprint(*provider, *model)
	handle, err := env.ctrl.Start(input, fp)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(c.stdin)
	promptedInvocation := ""
	lastStatus := types.RunStatus("")
	for {
		state := env.ctrl.Snapshot(handle)
		if state.Status != lastStatus {
			fmt.Fprintf(c.stderr, "%s...\n", state.Status)
			lastStatus = state.Status
		}
		if state.Status.Terminal() {
			return c.printResult(state)
		}
		if req := state.PendingApproval; req != nil && req.InvocationID != promptedInvocation {
			promptedInvocation = req.InvocationID
			decision, err := c.promptDecision(reader, req)
			if err != nil {
				return err
			}
			if err := env.ctrl.SubmitDecision(handle, decision); err != nil {
				return err
			}
		}
		time.Sleep(snapshotPollInterval)
	}
}

func (c *GradeCommand) promptDecision(reader *bufio.Reader, req *types.ApprovalRequest) (types.ApprovalDecision, error) {
	fmt.Fprintf(c.stderr, "\napproval required: %s\n", req.Reason)
	snap := req.SubjectSnapshot
	fmt.Fprintf(c.stderr, "current result: %.1f/%.1f (%.1f%%, %s)\n",
		snap.TotalScore, snap.MaxPossible, snap.Percentage, snap.LetterGrade)

	for {
		fmt.Fprint(c.stderr, "decision [approve/adjust/regrade/cancel]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return types.ApprovalDecision{}, fmt.Errorf("read decision: %w", err)
		}
		decision := types.ApprovalDecision{
			InvocationID: req.InvocationID,
			DecidedAt:    time.Now().UTC(),
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "approve", "a":
			decision.Outcome = types.DecisionApprove
			return decision, nil
		case "regrade", "r":
			decision.Outcome = types.DecisionRegrade
			return decision, nil
		case "cancel", "c":
			decision.Outcome = types.DecisionCancel
			return decision, nil
		case "adjust", "m":
			adjustment, err := c.promptAdjustment(reader, snap.MaxPossible)
			if err != nil {
				return types.ApprovalDecision{}, err
			}
			decision.Outcome = types.DecisionManualAdjust
			decision.Adjustment = adjustment
			return decision, nil
		default:
			fmt.Fprintln(c.stderr, "unrecognized decision")
		}
	}
}

func (c *GradeCommand) promptAdjustment(reader *bufio.Reader, maxPossible float64) (*types.ManualAdjustment, error) {
	for {
		fmt.Fprintf(c.stderr, "adjusted score (0-%.0f): ", maxPossible)
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read score: %w", err)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			fmt.Fprintln(c.stderr, "score must be a number")
			continue
		}
		fmt.Fprint(c.stderr, "feedback: ")
		feedback, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read feedback: %w", err)
		}
		return &types.ManualAdjustment{
			Score:    score,
			Feedback: strings.TrimSpace(feedback),
		}, nil
	}
}

func (c *GradeCommand) printResult(state types.RunState) error {
	switch state.Status {
	case types.RunFailed:
		return fmt.Errorf("run failed: %s", state.TerminalError)
	case types.RunCancelled:
		fmt.Fprintln(c.stdout, "run cancelled")
		return nil
	}

	names := make([]string, 0, len(state.Grades))
	for name := range state.Grades {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := state.Grades[name]
		note := g.Notes
		if g.Errored {
			note = "ERROR: " + note
		}
		fmt.Fprintf(c.stdout, "%-24s %5.1f/%-5.1f %s\n", g.Criterion, g.Score, g.MaxScore, note)
	}
	final := state.Final
	if final == nil {
		return fmt.Errorf("run completed without a final grade")
	}
	fmt.Fprintf(c.stdout, "\nfinal: %.1f/%.1f (%.1f%%, %s)", final.Score, final.MaxScore, final.Percentage, final.LetterGrade)
	if final.ManuallyAdjusted {
		fmt.Fprint(c.stdout, " [manually adjusted]")
	}
	fmt.Fprintln(c.stdout)
	if final.Feedback != "" {
		fmt.Fprintf(c.stdout, "\n%s\n", final.Feedback)
	}
	return nil
}
