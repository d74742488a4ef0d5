package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/portmgr/pkg/auth"
	"github.com/newtron-network/portmgr/pkg/cli"
	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/port"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List provisioned ports",
	Long: `List every provisioned port of the device with its speed, lanes,
FEC, admin and link state.

Examples:
  portctl list
  portctl --sim 32 list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			rows, err := enumerate(ctx, s, listFields)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(rows)
			}
			if len(rows) == 0 {
				fmt.Println("No ports provisioned")
				return nil
			}

			t := cli.NewTable("PORT", "NAME", "SPEED", "LANES", "FEC", "ADMIN", "LINK", "MTU", "MEDIA")
			for _, r := range rows {
				t.Row(
					strconv.FormatUint(uint64(r.Port), 10),
					r.get(port.FieldPortName),
					shortLabel(r.get(port.FieldSpeed)),
					r.get(port.FieldLanes),
					shortLabel(r.get(port.FieldFEC)),
					enabledLabel(r.flag(port.FieldPortEnable)),
					cli.UpDown(r.flag(port.FieldPortUp)),
					r.get(port.FieldTxMTU),
					shortLabel(r.get(port.FieldMediaType)),
				)
			}
			t.Flush()
			fmt.Printf("\n%d port(s)\n", len(rows))
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <port>",
	Short: "Show every field of a port",
	Long: `Show every field of the selected ports.

Examples:
  portctl show 1/0
  portctl show 0-12
  portctl show hdl:3/0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			ports, err := selectPorts(ctx, s, args)
			if err != nil {
				return err
			}
			rows, err := readPorts(ctx, s, ports, nil)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(rows)
			}
			for i, r := range rows {
				if i > 0 {
					fmt.Println()
				}
				fmt.Println(bold("Port " + portLabel(ctx, s, r.Port)))
				for _, d := range port.Schema.Descriptors() {
					v := r.get(d.ID)
					if v == "" {
						v = cli.Dim("-")
					}
					fmt.Printf("  %s %s\n", cli.DotPad(d.Name, 28), v)
				}
			}
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <port> <field>...",
	Short: "Read fields of a port",
	Long: `Read selected fields of the selected ports.

Examples:
  portctl get 1/0 speed fec
  portctl get all port_up,port_enable`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := fieldIDs(args[1:])
		if err != nil {
			return err
		}
		return withSession(func(ctx context.Context, s *session) error {
			ports, err := selectPorts(ctx, s, args[:1])
			if err != nil {
				return err
			}
			rows, err := readPorts(ctx, s, ports, ids)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(rows)
			}

			t := cli.NewTable(append([]string{"PORT"}, descriptorNames(ids)...)...)
			for _, r := range rows {
				cells := []string{strconv.FormatUint(uint64(r.Port), 10)}
				for _, id := range ids {
					cells = append(cells, r.get(id))
				}
				t.Row(cells...)
			}
			t.Flush()
			return nil
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <port> <field=value>...",
	Short: "Provision a port",
	Long: `Provision the selected ports. $SPEED and $FEC are required; $N_LANES
defaults to the lane count of the speed. The remaining fields are applied
after the port is added.

Examples:
  portctl add 12 speed=BF_SPEED_100G fec=BF_FEC_TYP_RS
  portctl add fp:3 speed=BF_SPEED_25G fec=BF_FEC_TYP_NONE n_lanes=1 port_enable=true`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseFields(args[1:])
		if err != nil {
			return err
		}
		return writePorts(args[0], "add", auth.PermPortAdd, func(ctx context.Context, s *session, p hal.DevPort) error {
			return s.tbl.EntryAdd(ctx, s.dev, port.NewKey(p), data)
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <port> <field=value>...",
	Short: "Modify port fields",
	Long: `Modify fields of the selected ports. Paired fields ($TX_MTU/$RX_MTU,
$TX_PFC_MAP/$RX_PFC_MAP, $TX/RX_PAUSE_FRAME_EN and the serdes taps) are
applied together; an incomplete pair is skipped, or rejected with --strict.

Examples:
  portctl set 1/0 tx_mtu=9100 rx_mtu=9100
  portctl set 0-12 port_enable=false
  portctl set 1/0 speed=BF_SPEED_40G n_lanes=4 --strict`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseFields(args[1:])
		if err != nil {
			return err
		}
		return writePorts(args[0], "set", auth.PermPortModify, func(ctx context.Context, s *session, p hal.DevPort) error {
			return s.tbl.EntryMod(ctx, s.dev, port.NewKey(p), data)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <port>",
	Short: "Remove a port",
	Long: `Remove the selected ports from the device.

Examples:
  portctl delete 1/0
  portctl delete 16-31`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writePorts(args[0], "delete", auth.PermPortDelete, func(ctx context.Context, s *session, p hal.DevPort) error {
			return s.tbl.EntryDel(ctx, s.dev, port.NewKey(p))
		})
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every port",
	Long: `Remove every provisioned port of the device.

Examples:
  portctl clear --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("clear removes every port of device %d: rerun with --yes", deviceID)
		}
		if err := checkPermission(auth.PermPortClear, "all"); err != nil {
			return err
		}
		return withSession(func(ctx context.Context, s *session) error {
			n, err := s.tbl.UsageGet(ctx, s.dev)
			if err != nil {
				return err
			}
			if err := s.tbl.EntryClear(ctx, s.dev); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Removed %d port(s) from device %d\n", n, s.dev)
			}
			return nil
		})
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm removing every port")
}

// writePorts checks perm, resolves sel and runs op on every selected port.
func writePorts(sel, verb string, perm auth.Permission, op func(context.Context, *session, hal.DevPort) error) error {
	if err := checkPermission(perm, sel); err != nil {
		return err
	}
	return withSession(func(ctx context.Context, s *session) error {
		ports, err := selectPorts(ctx, s, []string{sel})
		if err != nil {
			return err
		}
		return writeAll(ctx, s, ports, verb, func(ctx context.Context, p hal.DevPort) error {
			return op(ctx, s, p)
		})
	})
}

// descriptorNames lists the field names of ids.
func descriptorNames(ids []field.ID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if d, ok := port.Schema.Descriptor(id); ok {
			names = append(names, d.Name)
		}
	}
	return names
}
