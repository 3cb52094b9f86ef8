// Command bridge runs the OpenPortal bridge agent: a routing hop that
// federates two otherwise independent zones, relaying jobs across the
// boundary without terminating any itself.
package main

import (
	"github.com/openportal-go/openportal/agent"
)

func main() {
	agent.Main(agent.NewCLI("bridge", agent.TypeBridge, agent.NoopRunnable()))
}
