package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/shuttle-mr/shuttle/pkg/partition"
	"github.com/shuttle-mr/shuttle/pkg/rpc"
	"github.com/shuttle-mr/shuttle/pkg/sortfile"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// sortfileCmd, partitionCmd and queryCmd give operators direct
// command-line inspection tools: a way to dump a sort file,
// check where a key would partition, and ask a live worker what it's
// doing, all without submitting a job.

var sortfileCmd = &cobra.Command{
	Use:   "sortfile <file>",
	Short: "Dump the records of a sort file written by a worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open sort file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat sort file: %w", err)
		}

		startKey, _ := cmd.Flags().GetString("start-key")
		endKey, _ := cmd.Flags().GetString("end-key")

		rd := sortfile.NewReader(f, info.Size())
		if err := rd.LoadIndex(); err != nil {
			return fmt.Errorf("load sort file index: %w", err)
		}

		it := rd.Scan([]byte(startKey), []byte(endKey))
		for !it.Done() {
			fmt.Printf("%s\t%s\n", it.Key(), it.Value())
			it.Next()
		}
		return it.Err()
	},
}

var partitionCmd = &cobra.Command{
	Use:   "partition <line>",
	Short: "Show which partition a map output line routes to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme, _ := cmd.Flags().GetString("scheme")
		separator, _ := cmd.Flags().GetString("separator")
		keyFields, _ := cmd.Flags().GetInt("key-fields")
		partitionFields, _ := cmd.Flags().GetInt("partition-fields")
		dest, _ := cmd.Flags().GetInt("partitions")

		p := partition.New(types.PartitionScheme(scheme), separator, keyFields, partitionFields, dest)
		key, part := p.Calc([]byte(args[0]))
		fmt.Printf("key=%q partition=%d\n", key, part)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <worker-addr> <job-id> <node-index> <unit-no> <attempt>",
	Short: "Ask a worker directly whether it still considers itself on an attempt",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := args[0]
		jobID := args[1]
		nodeIndex, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid node-index: %w", err)
		}
		unitNo, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("invalid unit-no: %w", err)
		}
		attempt, err := strconv.Atoi(args[4])
		if err != nil {
			return fmt.Errorf("invalid attempt: %w", err)
		}

		opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, rpc.DialOptions()...)
		conn, err := grpc.NewClient(addr, opts...)
		if err != nil {
			return fmt.Errorf("dial worker: %w", err)
		}
		defer conn.Close()

		wc := rpc.NewWorkerClient(conn)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		resp, err := wc.QueryAttempt(ctx, &rpc.QueryAttemptRequest{
			JobID:     jobID,
			NodeIndex: nodeIndex,
			UnitNo:    unitNo,
			Attempt:   attempt,
		})
		if err != nil {
			return fmt.Errorf("query attempt: %w", err)
		}
		fmt.Printf("on_unit=%v\n", resp.OnUnit)
		return nil
	},
}

func init() {
	sortfileCmd.Flags().String("start-key", "", "Inclusive start key for the scan (default: beginning of file)")
	sortfileCmd.Flags().String("end-key", "", "Exclusive end key for the scan (default: end of file)")

	partitionCmd.Flags().String("scheme", string(types.PartitionSchemeKeyField), "Partition scheme: key_field or int_hash")
	partitionCmd.Flags().String("separator", "\t", "Field separator for key_field scheme")
	partitionCmd.Flags().Int("key-fields", 1, "Number of leading fields making up the key")
	partitionCmd.Flags().Int("partition-fields", 1, "Number of key fields used to compute the partition")
	partitionCmd.Flags().Int("partitions", 1, "Number of partitions (reduce node count)")
}
