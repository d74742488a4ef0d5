package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/portmgr/pkg/audit"
	"github.com/newtron-network/portmgr/pkg/auth"
	"github.com/newtron-network/portmgr/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View audit logs of port configuration changes.

Every write is logged with:
  - Timestamp
  - User who made the change
  - Device and port affected
  - Operation and the fields written
  - Result and duration

Examples:
  portctl audit list --port 12
  portctl audit list --last 24h
  portctl audit list --user alice --failures`,
}

var (
	auditDevice   string
	auditPort     string
	auditUser     string
	auditOp       string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermAuditView, auditPort); err != nil {
			return err
		}
		filter := audit.Filter{
			Device:      auditDevice,
			Port:        auditPort,
			User:        auditUser,
			Operation:   auditOp,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return printJSON(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "USER", "DEVICE", "PORT", "OPERATION", "FIELDS", "STATUS")
		for _, event := range events {
			status := green("ok")
			if !event.Success {
				status = red(event.Status)
			}
			if len(event.Skipped) > 0 {
				status += " " + yellow("skipped "+fieldList(event.Skipped))
			}
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Device,
				event.Port,
				event.Operation,
				fieldList(sortedKeys(event.Fields)),
				status,
			)
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device")
	auditListCmd.Flags().StringVar(&auditPort, "port", "", "Filter by device port")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditOp, "op", "", "Filter by operation (port.add, port.modify, ...)")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}
