// Command provider runs the OpenPortal provider agent: the relay between a
// portal and the account/instance/filesystem agents at one resource
// provider site.
package main

import (
	"github.com/openportal-go/openportal/agent"
)

func main() {
	agent.Main(agent.NewCLI("provider", agent.TypeProvider, agent.NoopRunnable()))
}
