package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/port"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Action is what Apply did (or would do) to one port.
type Action string

const (
	ActionAdd       Action = "add"
	ActionModify    Action = "modify"
	ActionDelete    Action = "delete"
	ActionUnchanged Action = "unchanged"
)

// Result reports the outcome for one port.
type Result struct {
	Port    hal.DevPort
	Action  Action
	Changed []string // field names written
	Err     error
}

// Options tune Apply.
type Options struct {
	// DryRun computes the actions without writing.
	DryRun bool
}

// Apply drives every selected port toward its profile state. Ports are
// handled independently: a failure is recorded in its Result and the rest
// still run. The returned error joins every per-port failure.
func Apply(ctx context.Context, tbl *port.Table, p *Profile, opts Options) ([]Result, error) {
	dev := p.Dev()
	log := util.WithDevice(uint32(dev)).WithField("profile", p.Name)

	var (
		results []Result
		errs    []error
	)
	for i := range p.Ports {
		spec := &p.Ports[i]
		ports, err := tbl.Select(ctx, dev, spec.Select)
		if err != nil {
			errs = append(errs, fmt.Errorf("select %q: %w", spec.Select, err))
			continue
		}
		for _, dp := range ports {
			r := applyPort(ctx, tbl, dev, dp, spec, opts)
			if r.Err != nil {
				log.WithField("port", dp).Errorf("%s failed: %v", r.Action, r.Err)
				errs = append(errs, fmt.Errorf("port %d: %w", dp, r.Err))
			} else {
				log.WithField("port", dp).Debugf("%s %v", r.Action, r.Changed)
			}
			results = append(results, r)
		}
	}
	return results, errors.Join(errs...)
}

func applyPort(ctx context.Context, tbl *port.Table, dev hal.DevID, dp hal.DevPort, spec *PortSpec, opts Options) Result {
	r := Result{Port: dp}
	key := port.NewKey(dp)

	ids := lo.Keys(spec.values)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cur, err := tbl.DataAllocate(ids...)
	if err != nil {
		r.Err = err
		return r
	}
	err = tbl.EntryGet(ctx, dev, key, cur)
	exists := err == nil
	if err != nil && !errors.Is(err, util.ErrObjectNotFound) {
		r.Err = err
		return r
	}

	var write []field.ID
	switch {
	case spec.State == StateAbsent && !exists:
		r.Action = ActionUnchanged
		return r
	case spec.State == StateAbsent:
		r.Action = ActionDelete
		if !opts.DryRun {
			r.Err = tbl.EntryDel(ctx, dev, key)
		}
		return r
	case !exists:
		r.Action = ActionAdd
		write = ids
	default:
		write = changed(cur, spec.values)
		if len(write) == 0 {
			r.Action = ActionUnchanged
			return r
		}
		r.Action = ActionModify
	}

	r.Changed = lo.Map(write, func(id field.ID, _ int) string {
		d, _ := port.Schema.Descriptor(id)
		return d.Name
	})
	if opts.DryRun {
		return r
	}

	data, err := tbl.DataAllocate(write...)
	if err != nil {
		r.Err = err
		return r
	}
	for _, id := range write {
		if err := data.Set(id, spec.values[id]); err != nil {
			r.Err = err
			return r
		}
	}
	if r.Action == ActionAdd {
		r.Err = tbl.EntryAdd(ctx, dev, key, data)
	} else {
		r.Err = tbl.EntryMod(ctx, dev, key, data)
	}
	return r
}

// changed returns the fields whose desired value differs from cur, widened
// so a write stays valid: a changed member pulls in the rest of its group
// and a lane change pulls in the speed.
func changed(cur *field.Data, want map[field.ID]field.Value) []field.ID {
	set := make(map[field.ID]bool)
	for id, v := range want {
		have, err := cur.Get(id)
		if err == nil && have == v {
			continue
		}
		set[id] = true
		for _, m := range port.Group(id) {
			if _, ok := want[m]; ok {
				set[m] = true
			}
		}
	}
	if set[port.FieldLanes] {
		if _, ok := want[port.FieldSpeed]; ok {
			set[port.FieldSpeed] = true
		}
	}
	out := lo.Keys(set)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
