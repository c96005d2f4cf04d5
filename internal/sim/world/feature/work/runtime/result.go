package runtime

import "github.com/NeruoDissident/FracturedCity/internal/sim/jobs"

// Result is the shared engine contract. Continuing means progress was (or
// will be) made; Blocked is a transient stall the agent waits out in place;
// Failed means the job's target or inputs are gone for good and the state
// machine should abandon.
type Result struct {
	Kind ResultKind
	Code string // E_* reason for Blocked/Failed

	// MoveTo redirects the agent to a new position before the engine can
	// proceed (haul drop-off leg, hunt chase, equip pick-up).
	MoveTo *jobs.Vec3i
}

type ResultKind int

const (
	Continuing ResultKind = iota
	Completed
	Blocked
	Failed
)

func continuing() Result         { return Result{Kind: Continuing} }
func completed() Result          { return Result{Kind: Completed} }
func blocked(code string) Result { return Result{Kind: Blocked, Code: code} }
func failed(code string) Result  { return Result{Kind: Failed, Code: code} }
func moveTo(p jobs.Vec3i) Result { return Result{Kind: Continuing, MoveTo: &p} }
