package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/port"
	"github.com/newtron-network/portmgr/pkg/util"
)

// listFields are the columns of 'portctl list'.
var listFields = []field.ID{
	port.FieldPortName, port.FieldSpeed, port.FieldLanes, port.FieldFEC,
	port.FieldPortEnable, port.FieldPortUp, port.FieldTxMTU, port.FieldMediaType,
}

// enumBatch is how many ports list reads per EntryGetNextN call.
const enumBatch = 16

// parseFields turns name=value arguments into a $PORT data container.
// Unknown names and unparsable values are all reported in one error.
func parseFields(args []string) (*field.Data, error) {
	pairs, err := util.ParseAssignments(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidArgument, err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no field=value assignments", util.ErrInvalidArgument)
	}

	v := &util.ValidationBuilder{}
	values := make(map[field.ID]field.Value, len(pairs))
	for _, p := range pairs {
		d, ok := port.Schema.Lookup(p[0])
		if !ok {
			v.AddErrorf("unknown field %s", p[0])
			continue
		}
		val, err := field.ParseValue(d, p[1])
		if err != nil {
			v.AddErrorf("%v", err)
			continue
		}
		values[d.ID] = val
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	data, err := port.Schema.NewData(lo.Keys(values)...)
	if err != nil {
		return nil, err
	}
	for id, val := range values {
		if err := data.Set(id, val); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// portRow is one port and the fields read from it.
type portRow struct {
	Port   hal.DevPort       `json:"dev_port"`
	Fields map[string]string `json:"fields"`
	data   *field.Data
}

func (r portRow) get(id field.ID) string {
	v, err := r.data.Get(id)
	if err != nil {
		return ""
	}
	return v.String()
}

func (r portRow) flag(id field.ID) bool {
	b, err := r.data.GetBool(id)
	return err == nil && b
}

func newRow(p hal.DevPort, data *field.Data) portRow {
	return portRow{Port: p, Fields: data.Named(), data: data}
}

// enumerate reads ids from every provisioned port of the session's
// device, in ascending port order.
func enumerate(ctx context.Context, s *session, ids []field.ID) ([]portRow, error) {
	key := s.tbl.KeyAllocate()
	data, err := s.tbl.DataAllocate(ids...)
	if err != nil {
		return nil, err
	}
	if err := s.tbl.EntryGetFirst(ctx, s.dev, key, data); err != nil {
		if errors.Is(err, util.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, err
	}
	first, _ := port.KeyPort(key)
	rows := []portRow{newRow(first, data)}

	for after := first; ; {
		batch := make([]port.Entry, enumBatch)
		for i := range batch {
			if batch[i].Data, err = s.tbl.DataAllocate(ids...); err != nil {
				return nil, err
			}
		}
		n, err := s.tbl.EntryGetNextN(ctx, s.dev, port.NewKey(after), batch)
		for _, e := range batch[:n] {
			p, _ := port.KeyPort(e.Key)
			rows = append(rows, newRow(p, e.Data))
			after = p
		}
		if errors.Is(err, util.ErrObjectNotFound) || (err == nil && n < enumBatch) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// readPorts reads ids (every field when empty) from each port.
func readPorts(ctx context.Context, s *session, ports []hal.DevPort, ids []field.ID) ([]portRow, error) {
	rows := make([]portRow, 0, len(ports))
	for _, p := range ports {
		data, err := s.tbl.DataAllocate(ids...)
		if err != nil {
			return nil, err
		}
		if err := s.tbl.EntryGet(ctx, s.dev, port.NewKey(p), data); err != nil {
			return nil, fmt.Errorf("port %d: %w", p, err)
		}
		rows = append(rows, newRow(p, data))
	}
	return rows, nil
}

// fieldIDs resolves field names given on the command line.
func fieldIDs(names []string) ([]field.ID, error) {
	return port.Schema.IDsByName(lo.FlatMap(names, func(n string, _ int) []string {
		return util.SplitCommaSeparated(n)
	})...)
}

// writeAll runs op on every port, reporting each outcome, and joins the
// failures.
func writeAll(ctx context.Context, s *session, ports []hal.DevPort, verb string, op func(context.Context, hal.DevPort) error) error {
	var errs []error
	for _, p := range ports {
		err := op(ctx, p)
		if !jsonOutput {
			if err != nil {
				fmt.Printf("%s %s: %s %v\n", verb, portLabel(ctx, s, p), red("FAILED"), err)
			} else {
				fmt.Printf("%s %s: %s\n", verb, portLabel(ctx, s, p), green("ok"))
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("port %d: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// enabledLabel renders $PORT_ENABLE.
func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// shortLabel drops the BF_SPEED_ / BF_FEC_TYP_ style prefix of an enum
// label for table columns.
func shortLabel(label string) string {
	for _, p := range []string{"BF_SPEED_", "BF_FEC_TYP_", "BF_MEDIA_TYPE_", "PM_AN_", "BF_LPBK_", "PM_PORT_DIR_"} {
		if strings.HasPrefix(label, p) {
			return strings.TrimPrefix(label, p)
		}
	}
	return label
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
