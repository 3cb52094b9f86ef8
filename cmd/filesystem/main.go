// Command filesystem runs the OpenPortal filesystem agent: the terminal
// recipient for update_homedir (and home provisioning on add_user/
// remove_user), backed by an in-memory home-directory table.
package main

import (
	"github.com/openportal-go/openportal/adapters"
	"github.com/openportal-go/openportal/agent"
)

func main() {
	driver := adapters.NewInMemoryFilesystemDriver()

	agent.Main(agent.NewCLI("filesystem", agent.TypeFilesystem, adapters.FilesystemRunnable(driver)))
}
