// Command portal runs the OpenPortal entry-point agent: the originating
// peer administrators and other services submit jobs to, which it routes
// onward per each job's Destination.
package main

import (
	"github.com/openportal-go/openportal/agent"
)

func main() {
	agent.Main(agent.NewCLI("portal", agent.TypePortal, agent.NoopRunnable()))
}
