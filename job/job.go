// Package job implements the unit of work routed between agents: a Job
// pairs a grammar.Command with the bookkeeping (id, timestamps, version,
// state, result) a Board needs to track it across hops and reconnects.
package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/grammar"
)

// Status is a job's lifecycle state. Complete and Error are terminal and
// absorbing: once reached, no further mutation is accepted for that id
// except an explicit Restart, which allocates a new Job entirely
// (spec.md §3).
type Status int

const (
	Pending Status = iota
	Running
	Complete
	Error
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Complete or Error.
func (s Status) Terminal() bool {
	return s == Complete || s == Error
}

// Job is one addressed, versioned unit of work. The zero value is not
// meaningful; construct one via New or Parse.
type Job struct {
	ID      uuid.UUID
	Created time.Time
	Updated time.Time
	Version uint64
	Command grammar.Command
	State   Status
	// Result is nil for Pending/Running jobs and always set once the job
	// reaches a terminal state: a JSON success payload for Complete, or a
	// plain error message for Error (invariant 3 in spec.md §8:
	// result.is_some ↔ state ∈ {Complete, Error}).
	Result *string
}

// New constructs a fresh, Pending job for command, without validating it.
// Callers that need to reject malformed commands should use Parse.
func New(command string) Job {
	now := time.Now().UTC()
	return Job{
		ID:      uuid.New(),
		Created: now,
		Updated: now,
		Version: 1,
		Command: grammar.NewCommand(command),
		State:   Pending,
	}
}

// Parse constructs a job from command, rejecting it up front if the
// command does not parse to a valid destination and instruction.
func Parse(command string) (Job, error) {
	j := New(command)
	if !j.Command.Valid() {
		return Job{}, fmt.Errorf("%w: invalid command %q", errs.ErrParse, command)
	}
	return j, nil
}

// Start transitions a Pending job to Running, bumping its version. It is a
// no-op error (ErrBoardInvalidTransition) to start a job that has already
// left Pending.
func (j *Job) Start() error {
	if j.State != Pending {
		return fmt.Errorf("%w: cannot start job %s in state %s", errs.ErrBoardInvalidTransition, j.ID, j.State)
	}
	j.State = Running
	j.touch()
	return nil
}

// Complete transitions the job to the Complete terminal state, JSON
// encoding result as the job's Result. Valid from Pending or Running.
func (j *Job) Complete(result any) error {
	if j.State.Terminal() {
		return fmt.Errorf("%w: cannot complete job %s already in terminal state %s", errs.ErrBoardInvalidTransition, j.ID, j.State)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("job: marshal result for %s: %w", j.ID, err)
	}
	str := string(payload)

	j.State = Complete
	j.Result = &str
	j.touch()
	return nil
}

// Fail transitions the job to the Error terminal state with message as its
// Result. Valid from Pending or Running.
func (j *Job) Fail(message string) error {
	if j.State.Terminal() {
		return fmt.Errorf("%w: cannot fail job %s already in terminal state %s", errs.ErrBoardInvalidTransition, j.ID, j.State)
	}

	j.State = Error
	j.Result = &message
	j.touch()
	return nil
}

// ResultAs decodes a Complete job's JSON result into v. It returns
// ErrJobRun wrapping the stored message if the job ended in Error, and
// ErrBoardInvalidTransition if the job has not yet reached a terminal
// state.
func (j Job) ResultAs(v any) error {
	switch j.State {
	case Pending, Running:
		return fmt.Errorf("%w: job %s has not reached a terminal state", errs.ErrBoardInvalidTransition, j.ID)
	case Error:
		msg := ""
		if j.Result != nil {
			msg = *j.Result
		}
		return fmt.Errorf("%w: %s", errs.ErrJobRun, msg)
	case Complete:
		if j.Result == nil {
			return fmt.Errorf("%w: job %s is complete with no result", errs.ErrBug, j.ID)
		}
		return json.Unmarshal([]byte(*j.Result), v)
	default:
		return fmt.Errorf("%w: job %s has unknown state %d", errs.ErrBug, j.ID, j.State)
	}
}

// Restart allocates a brand new job for the same command, matching
// spec.md §3: "terminal states ... any further state change requires an
// explicit restart that allocates a new job". The returned job shares no
// identity with j.
func (j Job) Restart() Job {
	return New(j.Command.String())
}

// touch bumps Version and sets Updated, the two fields every mutating
// method above must advance together so Board's monotonicity invariant
// holds.
func (j *Job) touch() {
	j.Version++
	j.Updated = time.Now().UTC()
}
