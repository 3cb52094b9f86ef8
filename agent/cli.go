package agent

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openportal-go/openportal/board"
	"github.com/openportal-go/openportal/config"
	"github.com/openportal-go/openportal/health"
	"github.com/openportal-go/openportal/invitation"
)

// hostIP extracts the listen IP from a host URL, falling back to the
// loopback address for hostnames like "localhost" that net.ParseIP cannot
// resolve without a DNS lookup this CLI has no business performing.
func hostIP(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "127.0.0.1"
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil {
		return ip.String()
	}
	return "127.0.0.1"
}

// ExitUsage matches spec.md §6's "64 usage" exit code for malformed CLI
// invocations, following the sysexits.h convention cobra itself does not
// enforce. Every RunE sets cmd.SilenceUsage once it starts real work, so
// Execute (see cmd/*/main.go) can tell a flag/argument error, which cobra
// returns before RunE ever runs, from a runtime failure: SilenceUsage
// still false on return means the error is a usage error.
const ExitUsage = 64

// defaultConfigPath returns <user-config-dir>/openportal/<agent>-config.toml
// (spec.md §6), used whenever --config is not given.
func defaultConfigPath(agentName string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "openportal", agentName+"-config.toml"), nil
}

// NewCLI builds the uniform per-agent cobra command surface spec.md §6
// describes: init/client/server management subcommands plus a default
// run action, shared by every cmd/<agent> binary and parameterised only by
// the agent's own name, announced Type, and Runnable.
func NewCLI(binaryName string, agentType Type, runnable Runnable) *cobra.Command {
	var configPath string
	var listenAddr string

	root := &cobra.Command{
		Use:   binaryName,
		Short: fmt.Sprintf("%s OpenPortal agent", binaryName),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := resolveConfigPath(configPath, binaryName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			rt := New(cfg, agentType, runnable)
			rt.registerHealthChecks()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return rt.Run(ctx, listenAddr)
		},
	}
	root.SilenceErrors = true
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to this agent's config file (default: user config dir)")
	root.Flags().StringVar(&listenAddr, "listen", ":8443", "address to accept inbound peer connections on")

	root.AddCommand(
		newInitCmd(binaryName, &configPath),
		newClientCmd(binaryName, &configPath),
		newServerCmd(binaryName, &configPath),
	)
	return root
}

// Main runs root to completion and exits the process per spec.md §6: 0 on
// success, ExitUsage on a flag/argument error (cobra rejected the
// invocation before any RunE ran), 1 on any other failure.
func Main(root *cobra.Command) {
	cmd, err := root.ExecuteC()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	if cmd != nil && !cmd.SilenceUsage {
		os.Exit(ExitUsage)
	}
	os.Exit(1)
}

func resolveConfigPath(flag, binaryName string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return defaultConfigPath(binaryName)
}

func newInitCmd(binaryName string, configPath *string) *cobra.Command {
	var service, host, encryptionEnvVar string
	var port uint16
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "create a new service configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := resolveConfigPath(*configPath, binaryName)
			if err != nil {
				return err
			}
			if force {
				_ = os.Remove(path)
			}
			cfg, err := config.Create(path, service, host, hostIP(host), port)
			if err != nil {
				return err
			}
			if encryptionEnvVar != "" {
				cfg.SetEnvironmentEncryption(encryptionEnvVar)
			} else {
				cfg.SetSimpleEncryption()
			}
			return cfg.Save(path)
		},
	}
	cmd.Flags().StringVar(&service, "service", binaryName, "this service's name")
	cmd.Flags().StringVar(&host, "host", "ws://127.0.0.1:8443", "listen URL")
	cmd.Flags().Uint16Var(&port, "port", 8443, "listen port")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&encryptionEnvVar, "encryption-env", "", "name of an environment variable holding this service's config-encryption key (default: a per-service derived key)")
	return cmd
}

func newClientCmd(binaryName string, configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "manage inbound client entries"}

	var name, ip, out string
	add := &cobra.Command{
		Use:   "add",
		Short: "permit a named peer to connect, writing its invitation file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := resolveConfigPath(*configPath, binaryName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			inv, err := cfg.AddClient(name, ip)
			if err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			if out == "" {
				out = name + "-invitation.toml"
			}
			return inv.Save(out)
		},
	}
	add.Flags().StringVar(&name, "name", "", "name of the peer permitted to connect")
	add.Flags().StringVar(&ip, "ip", "", "IP address or CIDR range the peer connects from")
	add.Flags().StringVar(&out, "out", "", "path to write the invitation file to")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("ip")

	var removeName string
	remove := &cobra.Command{
		Use:   "remove",
		Short: "revoke a named client entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := resolveConfigPath(*configPath, binaryName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg.RemoveClient(removeName)
			return cfg.Save(path)
		},
	}
	remove.Flags().StringVar(&removeName, "name", "", "name of the client entry to remove")
	_ = remove.MarkFlagRequired("name")

	cmd.AddCommand(add, remove)
	return cmd
}

func newServerCmd(binaryName string, configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "server", Short: "manage outbound server entries"}

	var file string
	add := &cobra.Command{
		Use:   "add",
		Short: "consume an invitation file, authorising this agent to dial that peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := resolveConfigPath(*configPath, binaryName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			inv, err := invitation.Load(file)
			if err != nil {
				return err
			}
			if err := cfg.AddServer(inv); err != nil {
				return err
			}
			return cfg.Save(path)
		},
	}
	add.Flags().StringVar(&file, "file", "", "path to the invitation file to consume")
	_ = add.MarkFlagRequired("file")

	var removeName string
	remove := &cobra.Command{
		Use:   "remove",
		Short: "drop a named server entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path, err := resolveConfigPath(*configPath, binaryName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg.RemoveServer(removeName)
			return cfg.Save(path)
		},
	}
	remove.Flags().StringVar(&removeName, "name", "", "name of the server entry to remove")
	_ = remove.MarkFlagRequired("name")

	cmd.AddCommand(add, remove)
	return cmd
}

// registerHealthChecks wires the generic health package to this runtime's
// own connectivity and backlog state for every currently configured peer.
func (rt *Runtime) registerHealthChecks() {
	for _, s := range rt.Config.Servers {
		rt.registerPeerHealth(s.Name)
	}
	for _, c := range rt.Config.Clients {
		rt.registerPeerHealth(c.Name)
	}
}

func (rt *Runtime) registerPeerHealth(peer string) {
	rt.Health.RegisterCheck("peer:"+peer, health.PeerConnectivityCheck(peer, rt.Connected))
	rt.Health.RegisterCheck("backlog:"+peer, health.BoardBacklogCheck(peer, board.DefaultTerminalCapacity, func() int {
		return rt.PendingCount(peer)
	}))
}
