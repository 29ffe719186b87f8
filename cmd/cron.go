package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/liteclaw/internal/config"
	"github.com/nextlevelbuilder/liteclaw/internal/store/sqlite"
)

// cron subcommands operate directly on the job store, so they work
// whether or not the gateway is running.
func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(cronListCmd(), cronDeleteCmd())
	return cmd
}

func openJobStore() *sqlite.Store {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	db, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	return db
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			db := openJobStore()
			defer db.Close()

			jobs, err := db.ListJobs(cmd.Context(), false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "list jobs: %v\n", err)
				os.Exit(1)
			}
			if len(jobs) == 0 {
				fmt.Println("No scheduled jobs.")
				return
			}
			for _, j := range jobs {
				state := "active"
				if !j.IsActive {
					state = "inactive"
				}
				last := "never"
				if j.LastRun != nil {
					last = j.LastRun.Format("2006-01-02 15:04")
				}
				fmt.Printf("%s  [%s]  %s  (%s: %s)  last run: %s\n", j.ID, state, j.Name, j.ScheduleType, j.ScheduleValue, last)
			}
		},
	}
}

func cronDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a scheduled job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			db := openJobStore()
			defer db.Close()

			if err := db.DeleteJob(cmd.Context(), args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "delete job: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Job %s deleted.\n", args[0])
		},
	}
}
