// Command account runs the OpenPortal account agent: the terminal
// recipient for add_user/remove_user/add_local_user/remove_local_user
// instructions, backed by an in-memory identity directory and scheduler
// accounting table.
package main

import (
	"github.com/openportal-go/openportal/adapters"
	"github.com/openportal-go/openportal/agent"
)

func main() {
	identities := adapters.NewInMemoryIdentityService()
	scheduler := adapters.NewInMemorySchedulerAccounts()

	agent.Main(agent.NewCLI("account", agent.TypeAccount, adapters.AccountRunnable(identities, scheduler)))
}
