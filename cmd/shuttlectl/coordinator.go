package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shuttle-mr/shuttle/pkg/api"
	"github.com/shuttle-mr/shuttle/pkg/config"
	"github.com/shuttle-mr/shuttle/pkg/coordgroup"
	"github.com/shuttle-mr/shuttle/pkg/dfs"
	"github.com/shuttle-mr/shuttle/pkg/metrics"
	"github.com/shuttle-mr/shuttle/pkg/nameservice"
	"github.com/shuttle-mr/shuttle/pkg/reconciler"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Coordinator node operations",
}

var coordinatorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a coordinator, bootstrapping a new Raft group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCoordinator(cmd, false)
	},
}

var coordinatorJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Start a coordinator and join an existing Raft group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCoordinator(cmd, true)
	},
}

// flagOrFile returns the flag's value unless the user left it at its
// default and the config file supplied an override for it.
func flagOrFile(cmd *cobra.Command, name, fileVal string) string {
	val, _ := cmd.Flags().GetString(name)
	if !cmd.Flags().Changed(name) {
		return config.OverrideString(fileVal, val)
	}
	return val
}

func runCoordinator(cmd *cobra.Command, join bool) error {
	configPath, _ := cmd.Flags().GetString("config")
	fileCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	nodeID := flagOrFile(cmd, "node-id", fileCfg.Coordinator.NodeID)
	bindAddr := flagOrFile(cmd, "bind-addr", fileCfg.Coordinator.BindAddr)
	rpcAddr := flagOrFile(cmd, "rpc-addr", fileCfg.Coordinator.RPCAddr)
	dataDir := flagOrFile(cmd, "data-dir", fileCfg.Coordinator.DataDir)
	dfsRoot := flagOrFile(cmd, "dfs-root", fileCfg.Coordinator.DFSRoot)
	metricsAddr := flagOrFile(cmd, "metrics-addr", fileCfg.Coordinator.MetricsAddr)
	leader, _ := cmd.Flags().GetString("leader")
	token, _ := cmd.Flags().GetString("token")

	if join && (leader == "" || token == "") {
		return fmt.Errorf("--leader and --token are required to join")
	}

	registry := nameservice.NewRegistry()

	mgr, err := coordgroup.NewManager(&coordgroup.Config{
		NodeID:   nodeID,
		BindAddr: bindAddr,
		RPCAddr:  rpcAddr,
		DataDir:  dataDir,
		Registry: registry,
	})
	if err != nil {
		return fmt.Errorf("create coordinator: %w", err)
	}

	if join {
		if err := mgr.Join(leader, token); err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
		fmt.Println("✓ Joined coordinator group")
	} else {
		if err := mgr.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		fmt.Println("✓ Coordinator group bootstrapped")
	}

	fs, err := dfs.NewLocal(dfsRoot)
	if err != nil {
		return fmt.Errorf("open DFS root %s: %w", dfsRoot, err)
	}

	apiServer, err := api.NewServer(mgr, registry, fs)
	if err != nil {
		return fmt.Errorf("create coordinator RPC server: %w", err)
	}
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(rpcAddr); err != nil {
			errCh <- fmt.Errorf("coordinator RPC server: %w", err)
		}
	}()
	time.Sleep(200 * time.Millisecond)
	fmt.Printf("✓ Coordinator RPC listening on %s\n", rpcAddr)

	recon := reconciler.New(mgr.Store())
	recon.OnWorkerDown(func(workerID string) {
		fmt.Printf("worker %s marked down by reconciler\n", workerID)
	})
	recon.Start()

	collector := metrics.NewCollector(mgr.Store(), mgr)
	collector.Start()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("raft", true, "bootstrapped")
	metrics.RegisterComponent("rpc", true, "ready")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)

	if !join {
		workerToken, _ := mgr.GenerateJoinToken("worker")
		fmt.Println()
		fmt.Println("Worker join token (valid 24h):")
		fmt.Printf("  %s\n", workerToken.Token)
		coordinatorToken, _ := mgr.GenerateJoinToken("coordinator")
		fmt.Println("Coordinator join token (valid 24h):")
		fmt.Printf("  %s\n", coordinatorToken.Token)
		fmt.Println()
	}

	fmt.Println("Coordinator is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	}

	recon.Stop()
	collector.Stop()
	apiServer.Stop()
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("✓ Shutdown complete")
	return nil
}

func init() {
	coordinatorCmd.AddCommand(coordinatorStartCmd)
	coordinatorCmd.AddCommand(coordinatorJoinCmd)

	for _, c := range []*cobra.Command{coordinatorStartCmd, coordinatorJoinCmd} {
		c.Flags().String("config", "", "Path to a YAML config file (flags take precedence)")
		c.Flags().String("node-id", "coordinator-1", "Unique coordinator node ID")
		c.Flags().String("bind-addr", "127.0.0.1:7946", "Address for Raft communication")
		c.Flags().String("rpc-addr", "127.0.0.1:7070", "Address for the coordinator gRPC service")
		c.Flags().String("data-dir", "./shuttle-data", "Data directory for Raft/job/worker state")
		c.Flags().String("dfs-root", "./shuttle-dfs", "Root directory for the local DFS backend")
		c.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus metrics/health endpoints")
	}

	coordinatorJoinCmd.Flags().String("leader", "", "Address of an existing coordinator group member")
	coordinatorJoinCmd.Flags().String("token", "", "Join token issued by the leader")
}
