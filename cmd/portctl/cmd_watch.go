package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/port"
)

var watchTimeout time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [port]",
	Short: "Print link state changes",
	Long: `Subscribe to port status notifications and print every link
transition until interrupted. With a port selector only those ports are
printed.

Examples:
  portctl watch
  portctl watch 0-12 --timeout 30s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			var only map[hal.DevPort]bool
			if len(args) == 1 {
				ports, err := selectPorts(ctx, s, args)
				if err != nil {
					return err
				}
				only = make(map[hal.DevPort]bool, len(ports))
				for _, p := range ports {
					only[p] = true
				}
			}
			if watchTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, watchTimeout)
				defer cancel()
			}

			err := s.tbl.AttributeSet(ctx, s.dev, port.PortStatusChange{
				Enabled:  true,
				Callback: printStatus(s, only),
			})
			if err != nil {
				return fmt.Errorf("subscribing to port status: %w", err)
			}
			defer s.tbl.AttributeReset(context.Background(), s.dev)

			if !jsonOutput {
				fmt.Printf("Watching link state on device %d (Ctrl-C to stop)\n", s.dev)
			}
			<-ctx.Done()
			return nil
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Stop after this long")
}

type statusLine struct {
	Time time.Time   `json:"time"`
	Dev  hal.DevID   `json:"dev"`
	Port hal.DevPort `json:"dev_port"`
	Up   bool        `json:"up"`
}

func printStatus(s *session, only map[hal.DevPort]bool) port.StatusCallback {
	return func(dev hal.DevID, p hal.DevPort, up bool, _ any) {
		if only != nil && !only[p] {
			return
		}
		line := statusLine{Time: time.Now(), Dev: dev, Port: p, Up: up}
		if jsonOutput {
			_ = printJSON(line)
			return
		}
		state := red("down")
		if up {
			state = green("up")
		}
		fmt.Printf("%s  port %-14s %s\n", line.Time.Format("15:04:05.000"), portLabel(context.Background(), s, p), state)
	}
}
