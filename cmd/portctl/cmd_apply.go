package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/portmgr/pkg/auth"
	"github.com/newtron-network/portmgr/pkg/cli"
	"github.com/newtron-network/portmgr/pkg/port"
	"github.com/newtron-network/portmgr/pkg/profile"
	"github.com/newtron-network/portmgr/pkg/util"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply <profile.yaml>",
	Short: "Apply a port profile",
	Long: `Drive the ports named in a YAML profile to the state it describes.
Missing ports are added, differing fields are modified and ports marked
absent are removed. Ports already in the desired state are left alone, so
applying a profile twice changes nothing the second time.

The profile's device and policy are used unless -d or --strict is given.

Examples:
  portctl apply leaf-uplinks.yaml --dry-run
  portctl apply leaf-uplinks.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Parse(args[0])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("device") {
			p.Device = deviceID
		} else {
			deviceID = p.Device
		}
		if !applyDryRun {
			if err := checkPermission(auth.PermProfileApply, args[0]); err != nil {
				return err
			}
		}
		var opts []port.Option
		if !cmd.Flags().Changed("strict") && p.Policy != "" {
			opts = append(opts, port.WithPolicy(p.ErrorPolicy()))
		}

		return withSession(func(ctx context.Context, s *session) error {
			results, applyErr := profile.Apply(ctx, s.tbl, p, profile.Options{DryRun: applyDryRun})
			if jsonOutput {
				if err := printJSON(applyResults(results)); err != nil {
					return err
				}
				return applyErr
			}

			t := cli.NewTable("PORT", "ACTION", "FIELDS", "STATUS")
			for _, r := range results {
				t.Row(strconv.FormatUint(uint64(r.Port), 10), string(r.Action), fieldList(r.Changed), cli.Status(r.Err))
			}
			t.Flush()

			if applyDryRun {
				fmt.Println("\n" + yellow("DRY-RUN: No changes applied."))
			}
			return applyErr
		}, opts...)
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Show what would change without writing")
}

type applyResult struct {
	Port    uint32   `json:"dev_port"`
	Action  string   `json:"action"`
	Changed []string `json:"changed,omitempty"`
	Status  string   `json:"status"`
	Error   string   `json:"error,omitempty"`
}

func applyResults(results []profile.Result) []applyResult {
	out := make([]applyResult, 0, len(results))
	for _, r := range results {
		ar := applyResult{
			Port:    uint32(r.Port),
			Action:  string(r.Action),
			Changed: r.Changed,
			Status:  util.StatusName(r.Err),
		}
		if r.Err != nil {
			ar.Error = r.Err.Error()
		}
		out = append(out, ar)
	}
	return out
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist the running config on the switch",
	Long: `Run 'config save' on the switch over SSH so the port configuration
survives a reboot. Requires --ssh-host.

Examples:
  portctl --ssh-host leaf1 --ssh-user admin save`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simPorts > 0 || sshHost == "" {
			return fmt.Errorf("save requires --ssh-host")
		}
		if err := checkPermission(auth.PermConfigSave, ""); err != nil {
			return err
		}
		return withSession(func(ctx context.Context, s *session) error {
			fmt.Print("Saving configuration... ")
			if err := s.sonic.Tunnel().SaveConfig(ctx); err != nil {
				fmt.Println(red("FAILED"))
				return fmt.Errorf("config save failed: %w", err)
			}
			fmt.Println(green("saved."))
			return nil
		})
	},
}
