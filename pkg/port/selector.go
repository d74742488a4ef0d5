package port

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Select resolves a port selector into device ports. Accepted forms:
//
//	all              every provisioned port
//	12  or  0-7,16   device port numbers
//	fp:<idx>         front-panel index
//	hdl:<conn>/<chnl> connector and channel
//	1/0              port name
//
// Named, fp: and hdl: selectors go through the lookup tables.
func (t *Table) Select(ctx context.Context, dev hal.DevID, sel string) ([]hal.DevPort, error) {
	sel = strings.TrimSpace(sel)
	switch {
	case sel == "":
		return nil, fmt.Errorf("%w: empty port selector", util.ErrInvalidArgument)
	case sel == "all":
		return Ports(ctx, t.drv, dev)
	case strings.HasPrefix(sel, "fp:"):
		idx, err := strconv.ParseUint(strings.TrimPrefix(sel, "fp:"), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad front-panel index in %q", util.ErrInvalidArgument, sel)
		}
		return t.lookupOne(ctx, dev, t.PortFpIdxInfo(), func(k *field.Data) error {
			return k.SetU32(FpIdxInfoIndex, uint32(idx))
		})
	case strings.HasPrefix(sel, "hdl:"):
		conn, chnl, ok := strings.Cut(strings.TrimPrefix(sel, "hdl:"), "/")
		c, err1 := strconv.ParseUint(conn, 10, 32)
		ch, err2 := strconv.ParseUint(chnl, 10, 32)
		if !ok || err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: handle selector %q is not hdl:<conn>/<chnl>", util.ErrInvalidArgument, sel)
		}
		return t.lookupOne(ctx, dev, t.PortHdlInfo(), func(k *field.Data) error {
			if err := k.SetU32(HdlInfoConn, uint32(c)); err != nil {
				return err
			}
			return k.SetU32(HdlInfoChnl, uint32(ch))
		})
	case util.IsRangeSpec(sel) || isNumber(sel):
		nums, err := util.ExpandPortRange(sel)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrInvalidArgument, err)
		}
		return lo.Map(nums, func(n uint32, _ int) hal.DevPort { return hal.DevPort(n) }), nil
	default:
		return t.lookupOne(ctx, dev, t.PortStrInfo(), func(k *field.Data) error {
			return k.SetString(StrInfoName, sel)
		})
	}
}

func (t *Table) lookupOne(ctx context.Context, dev hal.DevID, l *Lookup, fill func(*field.Data) error) ([]hal.DevPort, error) {
	key, data := l.KeyAllocate(), l.DataAllocate()
	if err := fill(key); err != nil {
		return nil, err
	}
	if err := l.EntryGet(ctx, dev, key, data); err != nil {
		return nil, err
	}
	port, err := data.GetU32(InfoDataDevPort)
	if err != nil {
		return nil, err
	}
	return []hal.DevPort{hal.DevPort(port)}, nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseUint(s, 10, 32)
	return err == nil
}
