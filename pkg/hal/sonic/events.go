package sonic

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// keyspaceChannel is the notification pattern for STATE_DB port entries.
func keyspaceChannel() string {
	return fmt.Sprintf("__keyspace@%d__:%s|*", StateDB, tablePortState)
}

// SubscribeStatus streams link transitions of dev to ch until ctx is done.
// Transitions come from keyspace notifications on STATE_DB PORT_TABLE; the
// last seen oper_status per port filters out writes that leave it unchanged.
func (d *Driver) SubscribeStatus(ctx context.Context, dev hal.DevID, ch chan<- hal.StatusEvent) error {
	if err := d.checkDev(dev); err != nil {
		return err
	}
	// SONiC images ship with notifications enabled; a plain redis-server
	// needs them switched on.
	if err := d.state.client.ConfigSet(ctx, "notify-keyspace-events", "Kh").Err(); err != nil {
		util.WithDevice(uint32(dev)).Warnf("enabling keyspace notifications: %v", err)
	}

	sub := d.state.client.PSubscribe(ctx, keyspaceChannel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("%w: subscribing to %s: %v", util.ErrNotConnected, keyspaceChannel(), err)
	}

	last, err := d.operSnapshot(ctx)
	if err != nil {
		sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		msgs := sub.Channel()
		prefix := strings.TrimSuffix(keyspaceChannel(), "*")
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				port, ok := parsePortKey(strings.TrimPrefix(m.Channel, prefix))
				if !ok {
					continue
				}
				up, err := d.operUp(ctx, port)
				if err != nil {
					util.WithPort(uint32(dev), uint32(port)).Warnf("reading oper_status: %v", err)
					continue
				}
				if prev, seen := last[port]; seen && prev == up {
					continue
				}
				last[port] = up
				select {
				case ch <- hal.StatusEvent{Dev: dev, Port: port, Up: up}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func (d *Driver) operUp(ctx context.Context, port hal.DevPort) (bool, error) {
	vals, err := d.state.Get(ctx, tablePortState, portKey(port))
	if err != nil {
		return false, err
	}
	s, err := parsePortState(vals)
	return s.OperUp, err
}

// operSnapshot reads the current oper_status of every PORT_TABLE entry.
func (d *Driver) operSnapshot(ctx context.Context) (map[hal.DevPort]bool, error) {
	keys, err := d.state.TableKeys(ctx, tablePortState)
	if err != nil {
		return nil, err
	}
	out := make(map[hal.DevPort]bool, len(keys))
	for _, k := range keys {
		port, ok := parsePortKey(k)
		if !ok {
			continue
		}
		up, err := d.operUp(ctx, port)
		if err != nil {
			return nil, err
		}
		out[port] = up
	}
	return out, nil
}
