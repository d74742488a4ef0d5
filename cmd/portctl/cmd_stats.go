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

var (
	statsClear   bool
	statsNonZero bool
)

var statsCmd = &cobra.Command{
	Use:   "stats <port>",
	Short: "Show or clear MAC counters",
	Long: `Show the MAC counters of the selected ports, or reset them with --clear.

Examples:
  portctl stats 1/0
  portctl stats all --nonzero
  portctl stats 0-12 --clear`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsClear {
			return writePorts(args[0], "clear stats", auth.PermStatsClear, func(ctx context.Context, s *session, p hal.DevPort) error {
				st := s.tbl.PortStat()
				data, err := st.DataAllocate()
				if err != nil {
					return err
				}
				for _, id := range data.Active() {
					if err := data.SetU64(id, 0); err != nil {
						return err
					}
				}
				return st.EntryMod(ctx, s.dev, port.NewKey(p), data)
			})
		}

		return withSession(func(ctx context.Context, s *session) error {
			ports, err := selectPorts(ctx, s, args)
			if err != nil {
				return err
			}
			st := s.tbl.PortStat()
			type portStats struct {
				Port     hal.DevPort       `json:"dev_port"`
				Counters map[string]uint64 `json:"counters"`
			}
			var all []portStats
			for _, p := range ports {
				data, err := st.DataAllocate()
				if err != nil {
					return err
				}
				if err := st.EntryGet(ctx, s.dev, port.NewKey(p), data); err != nil {
					return fmt.Errorf("port %d: %w", p, err)
				}
				all = append(all, portStats{Port: p, Counters: counters(data)})
			}
			if jsonOutput {
				return printJSON(all)
			}

			for i, ps := range all {
				if i > 0 {
					fmt.Println()
				}
				fmt.Println(bold("Port " + portLabel(ctx, s, ps.Port)))
				t := cli.NewTable("COUNTER", "VALUE").WithPrefix("  ")
				for _, name := range hal.CounterNames {
					v := ps.Counters[name]
					if statsNonZero && v == 0 {
						continue
					}
					t.Row(name, strconv.FormatUint(v, 10))
				}
				t.Flush()
			}
			return nil
		})
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsClear, "clear", false, "Reset the counters to zero")
	statsCmd.Flags().BoolVar(&statsNonZero, "nonzero", false, "Only print counters that are not zero")
}

// counters maps counter names to values for a filled $PORT_STAT container.
func counters(data *field.Data) map[string]uint64 {
	out := make(map[string]uint64, len(hal.CounterNames))
	for _, name := range hal.CounterNames {
		id, _ := port.StatField(name)
		if v, err := data.GetU64(id); err == nil {
			out[name] = v
		}
	}
	return out
}
