package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shuttle-mr/shuttle/pkg/config"
	"github.com/shuttle-mr/shuttle/pkg/dfs"
	"github.com/shuttle-mr/shuttle/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker node operations",
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a worker that pulls units for one (job, node) pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		fileCfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		jobID, _ := cmd.Flags().GetString("job-id")
		nodeIndex, _ := cmd.Flags().GetInt("node-index")
		workerID := flagOrFile(cmd, "worker-id", fileCfg.Worker.WorkerID)
		if workerID == "" {
			workerID = "worker-" + uuid.NewString()
		}
		coordinatorAddr := flagOrFile(cmd, "coordinator", fileCfg.Worker.CoordinatorAddr)
		listenAddr := flagOrFile(cmd, "listen-addr", fileCfg.Worker.ListenAddr)
		advertiseAddr := flagOrFile(cmd, "advertise-addr", fileCfg.Worker.AdvertiseAddr)
		dataDir := flagOrFile(cmd, "data-dir", fileCfg.Worker.DataDir)
		containerdSocket := flagOrFile(cmd, "containerd-socket", fileCfg.Worker.ContainerdSocket)
		image := flagOrFile(cmd, "image", fileCfg.Worker.Image)

		if jobID == "" {
			return fmt.Errorf("--job-id is required")
		}
		if advertiseAddr == "" {
			advertiseAddr = listenAddr
		}

		fs, err := dfs.NewLocal(dataDir)
		if err != nil {
			return fmt.Errorf("open DFS root %s: %w", dataDir, err)
		}

		w, err := worker.NewWorker(worker.Config{
			JobID:            jobID,
			NodeIndex:        nodeIndex,
			WorkerID:         workerID,
			CoordinatorAddr:  coordinatorAddr,
			ListenAddr:       listenAddr,
			AdvertiseAddr:    advertiseAddr,
			DataDir:          dataDir,
			ContainerdSocket: containerdSocket,
			Image:            image,
		}, fs)
		if err != nil {
			return fmt.Errorf("create worker: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			if err := w.Start(); err != nil {
				errCh <- err
			}
		}()
		fmt.Printf("✓ Worker %s pulling node %d of job %s\n", workerID, nodeIndex, jobID)
		fmt.Println("Worker is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nworker stopped: %v\n", err)
		}

		w.Stop()
		fmt.Println("✓ Worker stopped")
		return nil
	},
}

func init() {
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().String("config", "", "Path to a YAML config file (flags take precedence)")
	workerStartCmd.Flags().String("job-id", "", "ID of the job to pull units for (required)")
	workerStartCmd.Flags().Int("node-index", 0, "Index of the DAG node this worker serves")
	workerStartCmd.Flags().String("worker-id", "", "Unique worker ID (default: generated)")
	workerStartCmd.Flags().String("coordinator", "127.0.0.1:7070", "Coordinator RPC address")
	workerStartCmd.Flags().String("listen-addr", ":7080", "Address the worker's own RPC server listens on")
	workerStartCmd.Flags().String("advertise-addr", "", "Address to advertise to the coordinator (default: listen-addr)")
	workerStartCmd.Flags().String("data-dir", "./shuttle-worker-data", "Scratch and DFS staging directory")
	workerStartCmd.Flags().String("containerd-socket", "/run/containerd/containerd.sock", "containerd socket path")
	workerStartCmd.Flags().String("image", "shuttle-job:latest", "Container image running the node's Command")
}
