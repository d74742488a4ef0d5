package port

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/newtron-network/portmgr/pkg/audit"
	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// StatSchema has one u64 field per MAC counter. Field i+1 is
// hal.CounterNames[i].
var StatSchema = field.MustSchema("$PORT_STAT", lo.Map(hal.CounterNames, func(name string, i int) field.Descriptor {
	return field.Descriptor{ID: field.ID(i + 1), Name: "$" + name, Type: field.TypeU64}
})...)

// StatField returns the field ID of a counter name without its "$".
func StatField(counter string) (field.ID, bool) {
	i := lo.IndexOf(hal.CounterNames, counter)
	return field.ID(i + 1), i >= 0
}

// Stats is the $PORT_STAT table: per-port MAC counters keyed like $PORT.
type Stats struct {
	t *Table
}

// PortStat returns the statistics table of t's driver.
func (t *Table) PortStat() *Stats { return &Stats{t: t} }

// KeyAllocate returns an empty port key.
func (s *Stats) KeyAllocate() *field.Data { return KeySchema.NewFullData() }

// DataAllocate returns a counter container over the given fields. No
// fields means every counter.
func (s *Stats) DataAllocate(active ...field.ID) (*field.Data, error) {
	return StatSchema.NewData(active...)
}

// EntryGet reads the counters of the port named by key.
func (s *Stats) EntryGet(ctx context.Context, dev hal.DevID, key, data *field.Data) error {
	port, err := KeyPort(key)
	if err != nil {
		return err
	}
	if data == nil || data.Schema() != StatSchema {
		return util.NewFieldError("get", StatSchema.Name(), "container belongs to another table", util.ErrInvalidArgument)
	}
	vals, err := s.t.drv.PortStats(ctx, dev, port)
	if err != nil {
		return err
	}
	data.Clear()
	for _, id := range data.Active() {
		i := int(id) - 1
		if i >= len(vals) {
			return fmt.Errorf("%w: driver returned %d counters", util.ErrNotSupported, len(vals))
		}
		if err := data.SetU64(id, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// EntryGetFirst reads the counters of the first port of dev.
func (s *Stats) EntryGetFirst(ctx context.Context, dev hal.DevID, key, data *field.Data) error {
	ports, err := walk(ctx, s.t.drv, dev, nil, 1)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		return util.ErrObjectNotFound
	}
	if err := setKey(key, ports[0]); err != nil {
		return err
	}
	return s.EntryGet(ctx, dev, key, data)
}

// EntryGetNextN reads the counters of up to len(out) ports after key.
func (s *Stats) EntryGetNextN(ctx context.Context, dev hal.DevID, key *field.Data, out []Entry) (int, error) {
	after, err := KeyPort(key)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, util.NewFieldError("get-next-n", StatSchema.Name(), "no room for entries", util.ErrInvalidArgument)
	}
	ports, err := walk(ctx, s.t.drv, dev, &after, len(out))
	if err != nil {
		return 0, err
	}
	if len(ports) == 0 {
		return 0, util.ErrObjectNotFound
	}
	for i, port := range ports {
		e := &out[i]
		if e.Key == nil {
			e.Key = s.KeyAllocate()
		}
		if e.Data == nil {
			e.Data, _ = s.DataAllocate()
		}
		if err := setKey(e.Key, port); err != nil {
			return i, err
		}
		if err := s.EntryGet(ctx, dev, e.Key, e.Data); err != nil {
			return i, err
		}
	}
	return len(ports), nil
}

// EntryMod clears the counters of one port. Every value in data must be
// zero; counters cannot be set to anything else.
func (s *Stats) EntryMod(ctx context.Context, dev hal.DevID, key, data *field.Data) (err error) {
	start := time.Now()
	port, err := KeyPort(key)
	if err != nil {
		return err
	}
	defer func() { s.t.record(audit.OpStatsClear, dev, &port, nil, nil, start, err) }()
	if data == nil || data.Schema() != StatSchema {
		return util.NewFieldError("modify", StatSchema.Name(), "container belongs to another table", util.ErrInvalidArgument)
	}
	for id, v := range data.Values() {
		if v != field.U64(0) {
			desc, _ := StatSchema.Descriptor(id)
			return util.NewFieldError("modify", desc.Name, "counters can only be cleared", util.ErrInvalidArgument)
		}
	}
	return s.t.drv.PortClearStats(ctx, dev, port)
}

// EntryClear clears the counters of every port of dev.
func (s *Stats) EntryClear(ctx context.Context, dev hal.DevID) (err error) {
	start := time.Now()
	defer func() { s.t.record(audit.OpStatsClear, dev, nil, nil, nil, start, err) }()
	ports, err := Ports(ctx, s.t.drv, dev)
	if err != nil {
		return err
	}
	for _, port := range ports {
		if err := s.t.drv.PortClearStats(ctx, dev, port); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stats) EntryAdd(context.Context, hal.DevID, *field.Data, *field.Data) error {
	return util.NewFieldError("add", StatSchema.Name(), "counters exist for every port", util.ErrNotSupported)
}

func (s *Stats) EntryDel(context.Context, hal.DevID, *field.Data) error {
	return util.NewFieldError("delete", StatSchema.Name(), "counters exist for every port", util.ErrNotSupported)
}
