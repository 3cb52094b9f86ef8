// Command instance runs the OpenPortal instance agent: a routing hop
// between a provider and the account/filesystem agents backing one
// compute instance. It carries no instruction verbs of its own in this
// deployment.
package main

import (
	"github.com/openportal-go/openportal/agent"
)

func main() {
	agent.Main(agent.NewCLI("instance", agent.TypeInstance, agent.NoopRunnable()))
}
