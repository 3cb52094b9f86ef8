package adapters

import (
	"context"
	"fmt"

	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/job"
)

// AccountResult is the JSON-encoded success payload an account agent's
// Runnable returns for a completed job.
type AccountResult struct {
	OK bool `json:"ok"`
}

// AccountRunnable builds the agent.Runnable for an identity/account agent:
// add_user and remove_user against identities, add_local_user and
// remove_local_user against scheduler accounts (spec.md §3's instruction
// grammar; the account agent is the terminal recipient of both kinds since
// it owns both the identity directory and the scheduler association).
func AccountRunnable(identities IdentityService, scheduler SchedulerAccounts) func(ctx context.Context, j job.Job) (any, error) {
	return func(ctx context.Context, j job.Job) (any, error) {
		instr := j.Command.Instruction
		switch instr.Kind {
		case grammar.KindAddUser:
			if err := identities.AddUser(ctx, instr.User); err != nil {
				return nil, err
			}
			return AccountResult{OK: true}, nil

		case grammar.KindRemoveUser:
			if err := identities.RemoveUser(ctx, instr.User); err != nil {
				return nil, err
			}
			return AccountResult{OK: true}, nil

		case grammar.KindAddLocalUser:
			if err := identities.AddLocalMapping(ctx, instr.Mapping); err != nil {
				return nil, err
			}
			if err := scheduler.Grant(ctx, instr.Mapping); err != nil {
				return nil, err
			}
			return AccountResult{OK: true}, nil

		case grammar.KindRemoveLocalUser:
			if err := scheduler.Revoke(ctx, instr.Mapping); err != nil {
				return nil, err
			}
			if err := identities.RemoveLocalMapping(ctx, instr.Mapping); err != nil {
				return nil, err
			}
			return AccountResult{OK: true}, nil

		default:
			return nil, fmt.Errorf("adapters: account agent cannot handle instruction %q", instr.String())
		}
	}
}

// FilesystemResult is the JSON-encoded success payload a filesystem agent's
// Runnable returns.
type FilesystemResult struct {
	Path string `json:"path"`
}

// FilesystemRunnable builds the agent.Runnable for a filesystem agent:
// update_homedir relocates a user's home directory; add_user/remove_user
// provision or tear one down at a driver-chosen default path.
func FilesystemRunnable(driver FilesystemDriver) func(ctx context.Context, j job.Job) (any, error) {
	return func(ctx context.Context, j job.Job) (any, error) {
		instr := j.Command.Instruction
		switch instr.Kind {
		case grammar.KindAddUser:
			path := "/home/" + instr.User.Username
			if err := driver.CreateHome(ctx, instr.User, path); err != nil {
				return nil, err
			}
			return FilesystemResult{Path: path}, nil

		case grammar.KindRemoveUser:
			if err := driver.RemoveHome(ctx, instr.User); err != nil {
				return nil, err
			}
			return FilesystemResult{}, nil

		case grammar.KindUpdateHomeDir:
			if err := driver.UpdateHome(ctx, instr.User, instr.HomeDir); err != nil {
				return nil, err
			}
			return FilesystemResult{Path: instr.HomeDir}, nil

		default:
			return nil, fmt.Errorf("adapters: filesystem agent cannot handle instruction %q", instr.String())
		}
	}
}
