// Command meshd runs one node of a mesh network: a daemon exchanging
// ping/sync envelopes with its peers over the wire protocol implemented in
// internal/wire, plus a CLI for starting/stopping the daemon and managing
// its peer set.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tenzoki/meshd/internal/config"
	"github.com/tenzoki/meshd/internal/displayname"
	"github.com/tenzoki/meshd/internal/mesh"
	"github.com/tenzoki/meshd/internal/paradigm"
	"github.com/tenzoki/meshd/internal/paradigms/node"
	"github.com/tenzoki/meshd/internal/paths"
	"github.com/tenzoki/meshd/internal/peer"
	"github.com/tenzoki/meshd/internal/reply"
	"github.com/tenzoki/meshd/internal/schema"
	"github.com/tenzoki/meshd/internal/server"
)

// noCommandExitCode is errno.EINVAL, the exit code the original daemon
// raises when invoked with no subcommand at all (kitten/__init__.py's
// main(), exercised by test_init.py::TestMain::test_setup_no_args).
const noCommandExitCode = 22

var (
	flagPort       int
	flagDataDir    string
	flagDebug      bool
	flagConfigPath string
)

func main() {
	root := &cobra.Command{
		Use:   "meshd",
		Short: "meshd runs and manages a mesh network node",
		// A bare "meshd" with no subcommand is a distinct, deliberate
		// failure mode (not a default start): print help and exit 22,
		// same as the original's argparse dest="command" == nil case.
		// "meshd server" with no further subcommand is unrelated — that
		// one does default to starting the daemon, via serverCmd's own
		// RunE below.
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			os.Exit(noCommandExitCode)
			return nil
		},
	}
	root.PersistentFlags().IntVar(&flagPort, "port", config.DefaultPort, "port this node listens on")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override the XDG-resolved data directory")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a YAML config file (default: XDG config dir)")

	root.AddCommand(serverCmd())
	root.AddCommand(nodeCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func serverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "start or stop this node's daemon",
		// "meshd server" alone defaults to starting the daemon, the same
		// way "meshd server start" does.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerStart()
		},
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerStart()
		},
	}
	stop := &cobra.Command{
		Use:   "stop",
		Short: "signal a running daemon on --port to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerStop()
		},
	}

	cmd.AddCommand(start, stop)
	return cmd
}

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "inspect or grow this node's peer set",
	}

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "list known peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeList(filter)
		},
	}
	list.Flags().StringVar(&filter, "filter", "", "only show peers whose address contains this substring")

	add := &cobra.Command{
		Use:   "add <address>",
		Short: "ping, register, and sync with a new peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeAdd(args[0])
		},
	}

	cmd.AddCommand(list, add)
	return cmd
}

// settings is the resolved view of flags layered over the YAML config file
// loaded from --config (or its XDG default): a flag set to a non-default
// value wins, otherwise the config file's value is used, otherwise the
// built-in default. A flag left at its default (--port 5555, --debug off)
// counts as unset, even when given explicitly. --data-dir, when given, is
// used as the cache directory too.
type settings struct {
	port     int
	dataDir  string
	cacheDir string
	debug    bool
	poolSize int
}

func resolveSettings() (*settings, error) {
	cfgPath := flagConfigPath
	if cfgPath == "" {
		cfgPath = paths.ConfigFilePath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("meshd: loading config: %w", err)
	}

	s := &settings{
		port:     flagPort,
		dataDir:  flagDataDir,
		cacheDir: flagDataDir,
		debug:    flagDebug,
		poolSize: cfg.PoolSize,
	}
	if flagPort == config.DefaultPort && cfg.Port != 0 {
		s.port = cfg.Port
	}
	if flagDataDir == "" {
		if cfg.DataDir != "" {
			s.dataDir = cfg.DataDir
		} else {
			s.dataDir = paths.DataDir()
		}
		if cfg.CacheDir != "" {
			s.cacheDir = cfg.CacheDir
		} else {
			s.cacheDir = paths.CacheDir()
		}
	}
	if cfg.Debug {
		s.debug = true
	}
	return s, nil
}

func selfAddress(port int) string {
	return fmt.Sprintf("localhost:%d", port)
}

func buildRegistry(store peer.Store, creator node.Creator) (*paradigm.Registry, *schema.Validator) {
	registry := paradigm.NewRegistry()
	registry.Register(node.New(store, creator))
	validator := schema.NewValidator(registry)
	return registry, validator
}

func openStore(dataDir string) (*peer.BadgerStore, error) {
	return peer.NewBadgerStore(peer.DefaultBadgerConfig(dataDir))
}

func runServerStart() error {
	s, err := resolveSettings()
	if err != nil {
		return err
	}
	if s.debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	store, err := openStore(s.dataDir)
	if err != nil {
		return fmt.Errorf("meshd: opening peer store: %w", err)
	}
	defer store.Close()

	replies := reply.NewRegistry()
	peerService := mesh.NewPeerService(store, selfAddress(s.port), replies)

	registry, validator := buildRegistry(store, peerService)
	srv := server.New(s.port, s.cacheDir, registry, validator, replies, s.poolSize)

	log.Printf("meshd: starting on port %d (data dir %s, pool size %d)", s.port, s.dataDir, srv.PoolSize)
	return srv.Start()
}

func runServerStop() error {
	s, err := resolveSettings()
	if err != nil {
		return err
	}

	path := server.PidfilePath(s.cacheDir, s.port)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("meshd: no running server found for port %d: %w", s.port, err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return fmt.Errorf("meshd: malformed pidfile %s: %w", path, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("meshd: finding process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("meshd: signaling process %d: %w", pid, err)
	}

	log.Printf("meshd: sent shutdown signal to pid %d", pid)
	return nil
}

func runNodeList(filter string) error {
	s, err := resolveSettings()
	if err != nil {
		return err
	}

	store, err := openStore(s.dataDir)
	if err != nil {
		return fmt.Errorf("meshd: opening peer store: %w", err)
	}
	defer store.Close()

	peers, err := store.List()
	if err != nil {
		return fmt.Errorf("meshd: listing peers: %w", err)
	}

	for _, p := range peers {
		if filter != "" && !strings.Contains(p.Address, filter) {
			continue
		}
		fmt.Printf("%s\t%s\tlast seen %s\n", displayname.For(p.Address), p.Address, p.LastSeenAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runNodeAdd(address string) error {
	s, err := resolveSettings()
	if err != nil {
		return err
	}

	store, err := openStore(s.dataDir)
	if err != nil {
		return fmt.Errorf("meshd: opening peer store: %w", err)
	}
	defer store.Close()

	replies := reply.NewRegistry()
	peerService := mesh.NewPeerService(store, selfAddress(s.port), replies)

	if err := peerService.Create(address, true); err != nil {
		return fmt.Errorf("meshd: adding peer %s: %w", address, err)
	}

	log.Printf("meshd: added peer %s", peer.Normalize(address))
	return nil
}
