package agent

import (
	"context"
	"fmt"

	"github.com/openportal-go/openportal/job"
)

// NoopRunnable builds a Runnable for an agent that only routes jobs and
// never terminates any itself in this demo deployment (portal, provider,
// bridge, instance): it fails any job addressed to it as a final hop,
// since spec.md's five instruction verbs are all handled by an account or
// filesystem agent.
func NoopRunnable() Runnable {
	return func(ctx context.Context, j job.Job) (any, error) {
		return nil, fmt.Errorf("agent: no local handler for instruction %q", j.Command.Instruction.String())
	}
}
