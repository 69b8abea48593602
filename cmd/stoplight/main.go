package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/stoplight/pkg/client"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stoplight",
	Short: "Interact with the stoplightd daemon",
	RunE:  runStoplight,
}

func init() {
	rootCmd.Flags().StringP("add_job", "a", "", "Add a new job with this directory")
	rootCmd.Flags().BoolP("status", "s", false, "Get a brief status report from the daemon")
	rootCmd.Flags().String("addr", client.DefaultAddr, "stoplightd control plane address")
}

// runStoplight mirrors the original combined CLI's two independent
// flags: -a/--add_job submits a job, -s/--status prints a report.
// Neither flag requires the other; both may be given in one invocation.
func runStoplight(cmd *cobra.Command, args []string) error {
	addJobDir, _ := cmd.Flags().GetString("add_job")
	wantStatus, _ := cmd.Flags().GetBool("status")
	addr, _ := cmd.Flags().GetString("addr")

	c := client.New(addr)

	if addJobDir != "" {
		if err := c.AddJob(addJobDir); err != nil {
			return fmt.Errorf("adding job: %w", err)
		}
		fmt.Println("Job added successfully.")
	}

	if wantStatus {
		if err := printStatus(c); err != nil {
			return err
		}
	}

	return nil
}

func printStatus(c *client.Client) error {
	snapshot, err := c.Status()
	if err != nil {
		return fmt.Errorf("getting status: %w", err)
	}

	fmt.Printf("Running Jobs: (%d)\n", len(snapshot.Running))
	for _, j := range snapshot.Running {
		fmt.Printf("\t%s (%q)\n", j.Name, j.Description)
	}
	fmt.Printf("Pending Jobs: (%d)\n", len(snapshot.Pending))
	for _, j := range snapshot.Pending {
		fmt.Printf("\t%s (%q)\n", j.Name, j.Description)
	}
	return nil
}
