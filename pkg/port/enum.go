package port

import (
	"context"
	"errors"

	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Entry is one key/data pair filled by an enumeration. Nil members are
// allocated on demand; data allocated that way carries every field.
type Entry struct {
	Key  *field.Data
	Data *field.Data
}

// walk returns up to n provisioned ports of dev in driver order, starting
// after *after or at the first port when after is nil. n <= 0 means no
// limit.
func walk(ctx context.Context, drv hal.PortDirectory, dev hal.DevID, after *hal.DevPort, n int) ([]hal.DevPort, error) {
	var (
		out  []hal.DevPort
		port hal.DevPort
		err  error
	)
	if after == nil {
		port, err = drv.FirstPort(ctx, dev)
	} else {
		port, err = drv.NextPort(ctx, dev, *after)
	}
	for err == nil {
		out = append(out, port)
		if n > 0 && len(out) == n {
			return out, nil
		}
		port, err = drv.NextPort(ctx, dev, port)
	}
	if errors.Is(err, util.ErrObjectNotFound) {
		return out, nil
	}
	return out, err
}

// Ports returns every provisioned port of dev in driver order.
func Ports(ctx context.Context, drv hal.PortDirectory, dev hal.DevID) ([]hal.DevPort, error) {
	return walk(ctx, drv, dev, nil, 0)
}

// EntryGetFirst reads the first port of dev, storing its identity in key.
func (t *Table) EntryGetFirst(ctx context.Context, dev hal.DevID, key, data *field.Data) error {
	ports, err := walk(ctx, t.drv, dev, nil, 1)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		return util.ErrObjectNotFound
	}
	if err := setKey(key, ports[0]); err != nil {
		return err
	}
	return t.EntryGet(ctx, dev, key, data)
}

// EntryGetNextN reads up to len(out) ports following the port in key and
// returns how many entries were filled. It reports ErrObjectNotFound, with
// zero entries, once the ports are exhausted.
func (t *Table) EntryGetNextN(ctx context.Context, dev hal.DevID, key *field.Data, out []Entry) (int, error) {
	after, err := KeyPort(key)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, util.NewFieldError("get-next-n", Schema.Name(), "no room for entries", util.ErrInvalidArgument)
	}
	ports, err := walk(ctx, t.drv, dev, &after, len(out))
	if err != nil {
		return 0, err
	}
	if len(ports) == 0 {
		return 0, util.ErrObjectNotFound
	}
	for i, port := range ports {
		e := &out[i]
		if e.Key == nil {
			e.Key = t.KeyAllocate()
		}
		if e.Data == nil {
			e.Data, _ = t.DataAllocate()
		}
		if err := setKey(e.Key, port); err != nil {
			return i, err
		}
		if err := t.EntryGet(ctx, dev, e.Key, e.Data); err != nil {
			return i, err
		}
	}
	return len(ports), nil
}

func setKey(key *field.Data, port hal.DevPort) error {
	if key == nil || key.Schema() != KeySchema {
		return util.NewFieldError("key", "$DEV_PORT", "not a $PORT key", util.ErrInvalidArgument)
	}
	return key.SetU32(KeyDevPort, uint32(port))
}
