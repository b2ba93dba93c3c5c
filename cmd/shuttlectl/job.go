package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shuttle-mr/shuttle/pkg/client"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Submit and inspect jobs",
}

// jobDescriptor is the on-disk YAML shape accepted by `job submit`. It
// mirrors types.Job/types.Node directly rather than wrapping it in a
// kind/apiVersion manifest envelope: a job here is a DAG description, not
// a cluster resource with a reconciled desired state.
type jobDescriptor struct {
	Name  string           `yaml:"name"`
	Nodes []nodeDescriptor `yaml:"nodes"`
}

type nodeDescriptor struct {
	Index           int                   `yaml:"index"`
	Name            string                `yaml:"name"`
	Kind            types.NodeKind        `yaml:"kind"`
	InputFormat     types.InputFormat     `yaml:"inputFormat"`
	PartitionScheme types.PartitionScheme `yaml:"partitionScheme"`
	PartitionCount  int                   `yaml:"partitionCount"`
	InputPaths      []string              `yaml:"inputPaths"`
	OutputPath      string                `yaml:"outputPath"`
	Command         []string              `yaml:"command"`
	Next            []int                 `yaml:"next"`
	Pre             []int                 `yaml:"pre"`
	Resource        types.ResourceKind    `yaml:"resource"`
	BlockSizeBytes  int64                 `yaml:"blockSizeBytes"`
	LinesPerUnit    int                   `yaml:"linesPerUnit"`
	Combine         bool                  `yaml:"combine"`
}

func loadJobDescriptor(path string) (*types.Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	var desc jobDescriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}

	job := &types.Job{Name: desc.Name}
	for _, n := range desc.Nodes {
		job.Nodes = append(job.Nodes, &types.Node{
			Index:           n.Index,
			Name:            n.Name,
			Kind:            n.Kind,
			InputFormat:     n.InputFormat,
			PartitionScheme: n.PartitionScheme,
			PartitionCount:  n.PartitionCount,
			InputPaths:      n.InputPaths,
			OutputPath:      n.OutputPath,
			Command:         n.Command,
			Next:            n.Next,
			Pre:             n.Pre,
			Resource:        n.Resource,
			BlockSizeBytes:  n.BlockSizeBytes,
			LinesPerUnit:    n.LinesPerUnit,
			Combine:         n.Combine,
		})
	}
	return job, nil
}

func dialClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("coordinator")
	insecure, _ := cmd.Flags().GetBool("insecure")
	if insecure {
		return client.NewInsecureClient(addr)
	}
	return client.NewClient(addr)
}

var jobSubmitCmd = &cobra.Command{
	Use:   "submit <file.yaml>",
	Short: "Submit a job DAG described in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := loadJobDescriptor(args[0])
		if err != nil {
			return err
		}
		c, err := dialClient(cmd)
		if err != nil {
			return fmt.Errorf("connect to coordinator: %w", err)
		}
		defer c.Close()

		jobID, err := c.SubmitJob(job)
		if err != nil {
			return fmt.Errorf("submit job: %w", err)
		}
		fmt.Printf("✓ Job submitted: %s\n", jobID)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient(cmd)
		if err != nil {
			return fmt.Errorf("connect to coordinator: %w", err)
		}
		defer c.Close()

		jobs, err := c.ListJobs()
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB ID\tNAME\tSTATE\tNODES")
		for _, j := range jobs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", j.ID, j.Name, j.State, len(j.Nodes))
		}
		return tw.Flush()
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job's per-node progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient(cmd)
		if err != nil {
			return fmt.Errorf("connect to coordinator: %w", err)
		}
		defer c.Close()

		resp, err := c.ShowJob(args[0])
		if err != nil {
			return fmt.Errorf("show job: %w", err)
		}

		fmt.Printf("Job:   %s (%s)\n", resp.Job.Name, resp.Job.ID)
		fmt.Printf("State: %s\n", resp.Job.State)
		if resp.Job.Error != "" {
			fmt.Printf("Error: %s\n", resp.Job.Error)
		}
		fmt.Println()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NODE\tNAME\tSTATE\tTOTAL\tPENDING\tRUNNING\tDONE\tFAILED\tKILLED")
		for _, n := range resp.Overview {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
				n.NodeIndex, n.NodeName, n.State, n.Total, n.Pending, n.Running, n.Done, n.Failed, n.Killed)
		}
		return tw.Flush()
	},
}

var jobKillCmd = &cobra.Command{
	Use:   "kill <job-id>",
	Short: "Kill a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient(cmd)
		if err != nil {
			return fmt.Errorf("connect to coordinator: %w", err)
		}
		defer c.Close()

		if err := c.KillJob(args[0]); err != nil {
			return fmt.Errorf("kill job: %w", err)
		}
		fmt.Printf("✓ Job %s killed\n", args[0])
		return nil
	},
}

func init() {
	jobCmd.AddCommand(jobSubmitCmd, jobListCmd, jobShowCmd, jobKillCmd)

	for _, c := range []*cobra.Command{jobSubmitCmd, jobListCmd, jobShowCmd, jobKillCmd} {
		c.Flags().String("coordinator", "127.0.0.1:7070", "Coordinator RPC address")
		c.Flags().Bool("insecure", false, "Skip mTLS, dial the coordinator in plaintext")
	}
}
