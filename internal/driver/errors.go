package driver

import "fmt"

// Phase names the stage of a run that failed.
type Phase string

const (
	PhaseParse    Phase = "parse"
	PhaseAllocate Phase = "allocate"
	PhaseSpawn    Phase = "spawn"
	PhaseRun      Phase = "run"
	PhaseEmit     Phase = "emit"
)

// PhaseError is a fatal run error tagged with the phase it happened in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
