package sim

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric/common/flogging"

	"verification/program"
	"verification/registry"
)

var logger = flogging.MustGetLogger("verification.sim")

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int    `json:"index"`
	TxID     string `json:"txId"`
	As       string `json:"as"`
	Op       string `json:"op"`
	Expected string `json:"expected"`
	Outcome  string `json:"outcome"`
	Code     uint32 `json:"code,omitempty"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail,omitempty"`
}

// Report collects step results.
type Report struct {
	Scenario string       `json:"scenario"`
	Steps    []StepResult `json:"steps"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
}

// OK reports whether every step matched its expectation.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// WriteText prints one line per step and a summary.
func (r *Report) WriteText(w io.Writer) error {
	for _, s := range r.Steps {
		mark := "PASS"
		if !s.Passed {
			mark = "FAIL"
		}
		line := fmt.Sprintf("%s %3d %-16s as %-10s expect %-24s got %s", mark, s.Index, s.Op, s.As, s.Expected, s.Outcome)
		if s.Code != 0 {
			line += fmt.Sprintf(" [%d]", s.Code)
		}
		if s.Detail != "" {
			line += " (" + s.Detail + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d passed, %d failed\n", r.Passed, r.Failed)
	return err
}

// Runner executes scenarios against a store.
type Runner struct {
	store     registry.Store
	programID registry.Address
}

// NewRunner returns a Runner. Scenarios that name their own program_id override
// programID.
func NewRunner(store registry.Store, programID registry.Address) *Runner {
	return &Runner{store: store, programID: programID}
}

// Run signs and processes each step in order. Step failures are recorded in the report;
// the returned error is reserved for scenarios that cannot run at all.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	programID := r.programID
	if sc.ProgramID != "" {
		id, err := registry.ParseAddress(sc.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("Run: program_id: %w", err)
		}
		programID = id
	}
	processor := program.NewProcessor(registry.New(r.store, programID))

	report := &Report{Scenario: sc.Name, Steps: make([]StepResult, 0, len(sc.Steps))}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := StepResult{
			Index:    i + 1,
			TxID:     uuid.NewString(),
			As:       step.As,
			Op:       step.Op,
			Expected: step.Expect,
		}

		err := r.runStep(ctx, processor, programID, step)
		switch {
		case err == nil:
			res.Outcome = OutcomeOK
		case registry.NameOf(err) != "":
			res.Outcome = registry.NameOf(err)
			res.Code = registry.CodeOf(err)
			res.Detail = err.Error()
		default:
			res.Outcome = "error"
			res.Detail = err.Error()
		}
		res.Passed = res.Outcome == step.Expect

		if res.Passed {
			report.Passed++
			logger.Infof("Step %d [%s] %s as %s: %s", res.Index, res.TxID, step.Op, step.As, res.Outcome)
		} else {
			report.Failed++
			logger.Warningf("Step %d [%s] %s as %s: expected %s, got %s", res.Index, res.TxID, step.Op, step.As, step.Expect, res.Outcome)
		}
		report.Steps = append(report.Steps, res)
	}
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, processor *program.Processor, programID registry.Address, step Step) error {
	signer := AddressFor(step.As)
	eventAddr, _, err := registry.EventAddress(programID, step.EventID)
	if err != nil {
		return err
	}

	var ix *program.Instruction
	switch step.Op {
	case program.OpNameInitializeEvent:
		ix, err = program.NewInitializeEvent(programID, signer, step.EventID, step.MaxWinners, step.Requirements)
	case program.OpNameRegisterWallet:
		ix, err = program.NewRegisterWallet(programID, signer, step.EventID)
	case program.OpNameMarkValid, program.OpNameMarkInvalid:
		entryAddr, _, derr := registry.EntryAddress(programID, eventAddr, AddressFor(step.Wallet))
		if derr != nil {
			return derr
		}
		if step.Op == program.OpNameMarkValid {
			ix = program.NewMarkValid(signer, eventAddr, entryAddr)
		} else {
			ix = program.NewMarkInvalid(signer, eventAddr, entryAddr)
		}
	case program.OpNameCloseEvent:
		ix = program.NewCloseEvent(signer, eventAddr)
	default:
		return fmt.Errorf("unknown op '%s'", step.Op)
	}
	if err != nil {
		return err
	}

	tx, err := program.SignTransaction(KeyFor(step.As), ix)
	if err != nil {
		return err
	}
	_, err = processor.Process(ctx, tx)
	return err
}
