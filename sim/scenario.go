// Package sim replays YAML scenarios of signed registry transactions against any store
// backend, checking each step's outcome.
package sim

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"verification/program"
	"verification/registry"
)

// OutcomeOK is the expected outcome of a step that must succeed.
const OutcomeOK = "ok"

// Scenario is a scripted sequence of operations.
type Scenario struct {
	Name      string `yaml:"name"`
	ProgramID string `yaml:"program_id"`
	Steps     []Step `yaml:"steps"`
}

// Step is one signed operation. As names the signer; Wallet names the wallet whose
// entry mark_valid and mark_invalid target.
type Step struct {
	As           string                 `yaml:"as"`
	Op           string                 `yaml:"op"`
	EventID      string                 `yaml:"event_id"`
	Wallet       string                 `yaml:"wallet"`
	MaxWinners   uint32                 `yaml:"max_winners"`
	Requirements []registry.Requirement `yaml:"requirements"`
	Expect       string                 `yaml:"expect"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates scenario YAML. Missing expectations default to ok.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario has no steps")
	}
	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Expect == "" {
			step.Expect = OutcomeOK
		}
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

func (s *Step) validate() error {
	if s.As == "" {
		return fmt.Errorf("'as' is required")
	}
	if _, ok := program.OpByName(s.Op); !ok {
		return fmt.Errorf("unknown op '%s'", s.Op)
	}
	if (s.Op == program.OpNameMarkValid || s.Op == program.OpNameMarkInvalid) && s.Wallet == "" {
		return fmt.Errorf("%s needs 'wallet'", s.Op)
	}
	if s.Expect != OutcomeOK {
		if _, ok := registry.ErrorByName(s.Expect); !ok {
			return fmt.Errorf("unknown expected outcome '%s'", s.Expect)
		}
	}
	return nil
}

// KeyFor returns the deterministic ed25519 key behind a scenario label.
func KeyFor(label string) ed25519.PrivateKey {
	seed := sha256.Sum256([]byte("sim:" + label))
	return ed25519.NewKeyFromSeed(seed[:])
}

// AddressFor returns the registry address of a scenario label.
func AddressFor(label string) registry.Address {
	var addr registry.Address
	copy(addr[:], KeyFor(label).Public().(ed25519.PublicKey))
	return addr
}
