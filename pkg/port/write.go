package port

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/newtron-network/portmgr/pkg/audit"
	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

type pair[T any] struct{ tx, rx T }

// plan is a write resolved from a container: every label parsed and every
// field group checked before the first driver call.
type plan struct {
	port hal.DevPort

	speed *hal.Speed
	lanes *uint32
	fec   *hal.FEC

	mtu    *pair[uint32]
	pfc    *pair[uint32]
	pause  *pair[bool]
	serdes *hal.SerdesParams

	autoneg    *hal.AutonegPolicy
	loopback   *hal.LoopbackMode
	prsrThresh *uint32
	ptpTx      *uint32
	ptpRx      *uint32
	dir        *hal.Direction
	media      *hal.MediaType
	recirc     *bool
	cutThrough *bool
	enable     *bool

	skipped []string
}

// step is one driver interaction of a write. Critical steps abort the
// write on failure whatever the policy.
type step struct {
	name     string
	critical bool
	run      func(ctx context.Context) error
}

func opt[T any](d *field.Data, id field.ID, get func(field.ID) (T, error)) (*T, error) {
	if !d.Has(id) {
		return nil, nil
	}
	v, err := get(id)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optLabel[T any](d *field.Data, id field.ID, parse func(string) (T, bool)) (*T, error) {
	s, err := opt(d, id, d.GetString)
	if err != nil || s == nil {
		return nil, err
	}
	v, ok := parse(*s)
	if !ok {
		desc, _ := Schema.Descriptor(id)
		return nil, util.NewFieldError("write", desc.Name, fmt.Sprintf("unknown label %q", *s), util.ErrInvalidArgument)
	}
	return &v, nil
}

func fieldNames(ids []field.ID) string {
	return strings.Join(lo.Map(ids, func(id field.ID, _ int) string {
		desc, _ := Schema.Descriptor(id)
		return desc.Name
	}), ",")
}

// group reports whether every member of ids is present. A partial group
// is handled by the policy: skipped with a warning or rejected.
func (t *Table) group(log *logrus.Entry, data *field.Data, ids []field.ID, p *plan) (bool, error) {
	n := lo.CountBy(ids, data.Has)
	switch n {
	case 0:
		return false, nil
	case len(ids):
		return true, nil
	}
	name := fieldNames(ids)
	if t.policy == PolicyStrict {
		return false, util.NewFieldError("write", name, "incomplete field group", util.ErrInvalidArgument)
	}
	log.Warnf("incomplete field group {%s}, skipping", name)
	p.skipped = append(p.skipped, name)
	return false, nil
}

func checkData(data *field.Data) error {
	if data == nil || data.Schema() != Schema {
		return util.NewFieldError("write", Schema.Name(), "container belongs to another table", util.ErrInvalidArgument)
	}
	for _, id := range data.SetIDs() {
		if desc, _ := Schema.Descriptor(id); desc.ReadOnly {
			return util.NewFieldError("write", desc.Name, "field is read-only", util.ErrNotSupported)
		}
	}
	return nil
}

// buildPlan resolves data into a plan without touching the driver.
func (t *Table) buildPlan(log *logrus.Entry, port hal.DevPort, data *field.Data) (*plan, error) {
	if err := checkData(data); err != nil {
		return nil, err
	}
	p := &plan{port: port}
	var err error
	labels := []func() error{
		func() error { p.speed, err = optLabel(data, FieldSpeed, hal.ParseSpeed); return err },
		func() error { p.fec, err = optLabel(data, FieldFEC, hal.ParseFEC); return err },
		func() error { p.autoneg, err = optLabel(data, FieldAutoneg, hal.ParseAutonegPolicy); return err },
		func() error { p.loopback, err = optLabel(data, FieldLoopback, hal.ParseLoopbackMode); return err },
		func() error { p.dir, err = optLabel(data, FieldDirection, hal.ParseDirection); return err },
		func() error { p.media, err = optLabel(data, FieldMediaType, hal.ParseMediaType); return err },
		func() error { p.lanes, err = opt(data, FieldLanes, data.GetU32); return err },
		func() error { p.prsrThresh, err = opt(data, FieldParserPriorityThresh, data.GetU32); return err },
		func() error { p.ptpTx, err = opt(data, FieldPTPTxDelta, data.GetU32); return err },
		func() error { p.ptpRx, err = opt(data, FieldPTPRxDelta, data.GetU32); return err },
		func() error { p.recirc, err = opt(data, FieldRecircEnable, data.GetBool); return err },
		func() error { p.cutThrough, err = opt(data, FieldCutThrough, data.GetBool); return err },
		func() error { p.enable, err = opt(data, FieldPortEnable, data.GetBool); return err },
	}
	for _, fn := range labels {
		if err := fn(); err != nil {
			return nil, err
		}
	}

	if ok, err := t.group(log, data, groupMTU, p); err != nil {
		return nil, err
	} else if ok {
		tx, _ := data.GetU32(FieldTxMTU)
		rx, _ := data.GetU32(FieldRxMTU)
		p.mtu = &pair[uint32]{tx, rx}
	}
	if ok, err := t.group(log, data, groupPFC, p); err != nil {
		return nil, err
	} else if ok {
		tx, _ := data.GetU32(FieldTxPFCMap)
		rx, _ := data.GetU32(FieldRxPFCMap)
		p.pfc = &pair[uint32]{tx, rx}
	}
	if ok, err := t.group(log, data, groupPause, p); err != nil {
		return nil, err
	} else if ok {
		tx, _ := data.GetBool(FieldTxPauseEnable)
		rx, _ := data.GetBool(FieldRxPauseEnable)
		p.pause = &pair[bool]{tx, rx}
	}
	if ok, err := t.group(log, data, groupSerdes, p); err != nil {
		return nil, err
	} else if ok {
		sp := hal.SerdesParams{}
		sp.Attn, _ = data.GetI64(FieldSerdesTxAttn)
		sp.Pre, _ = data.GetI64(FieldSerdesTxPre)
		sp.Post, _ = data.GetI64(FieldSerdesTxPost)
		p.serdes = &sp
	}
	return p, nil
}

// modifySteps returns the driver steps of a modify in their fixed order.
// withSpeed false leaves out the speed change and FEC, as after an add.
func (t *Table) modifySteps(dev hal.DevID, p *plan, withSpeed bool) []step {
	var steps []step
	port := p.port
	if withSpeed && p.speed != nil {
		steps = append(steps, step{"speed", true, func(ctx context.Context) error {
			return t.changeSpeed(ctx, dev, port, *p.speed, p.lanes, p.fec)
		}})
	}
	if withSpeed && p.fec != nil && p.speed == nil {
		steps = append(steps, step{"fec", true, func(ctx context.Context) error {
			return t.drv.PortSetFEC(ctx, dev, port, *p.fec)
		}})
	}
	if p.mtu != nil {
		steps = append(steps, step{"mtu", false, func(ctx context.Context) error {
			return t.drv.PortSetMTU(ctx, dev, port, p.mtu.tx, p.mtu.rx)
		}})
	}
	if p.pfc != nil {
		steps = append(steps, step{"pfc", false, func(ctx context.Context) error {
			return t.drv.PortSetPFC(ctx, dev, port, p.pfc.tx, p.pfc.rx)
		}})
	}
	if p.pause != nil {
		steps = append(steps, step{"pause", false, func(ctx context.Context) error {
			return t.drv.PortSetPause(ctx, dev, port, p.pause.tx, p.pause.rx)
		}})
	}
	if p.serdes != nil {
		steps = append(steps, step{"serdes", false, func(ctx context.Context) error {
			cur, err := t.drv.PortSerdesParams(ctx, dev, port)
			if err != nil {
				return err
			}
			cur.Attn, cur.Pre, cur.Post = p.serdes.Attn, p.serdes.Pre, p.serdes.Post
			return t.drv.PortSetSerdesParams(ctx, dev, port, cur)
		}})
	}
	if p.autoneg != nil {
		steps = append(steps, step{"autoneg", false, func(ctx context.Context) error {
			return t.drv.PortSetAutoneg(ctx, dev, port, *p.autoneg)
		}})
	}
	if p.loopback != nil {
		steps = append(steps, step{"loopback", false, func(ctx context.Context) error {
			return t.drv.PortSetLoopback(ctx, dev, port, *p.loopback)
		}})
	}
	if p.prsrThresh != nil {
		steps = append(steps, step{"parser-priority-threshold", false, func(ctx context.Context) error {
			if t.pipe == nil {
				return fmt.Errorf("%w: no pipeline backend", util.ErrNotSupported)
			}
			return t.pipe.SetParserPriorityThreshold(ctx, dev, port, *p.prsrThresh)
		}})
	}
	if p.ptpTx != nil {
		steps = append(steps, step{"ptp-tx-delta", false, func(ctx context.Context) error {
			return t.drv.PortSetPTPTxDelta(ctx, dev, port, *p.ptpTx)
		}})
	}
	if p.ptpRx != nil {
		steps = append(steps, step{"ptp-rx-delta", false, func(ctx context.Context) error {
			return t.drv.PortSetPTPRxDelta(ctx, dev, port, *p.ptpRx)
		}})
	}
	if p.dir != nil {
		steps = append(steps, step{"direction", false, func(ctx context.Context) error {
			return t.drv.PortSetDirection(ctx, dev, port, *p.dir)
		}})
	}
	if p.media != nil {
		steps = append(steps, step{"media-type", false, func(ctx context.Context) error {
			return t.drv.PortSetMediaType(ctx, dev, port, *p.media)
		}})
	}
	if p.recirc != nil {
		steps = append(steps, step{"recirculation", false, func(ctx context.Context) error {
			if t.pipe == nil {
				return fmt.Errorf("%w: no pipeline backend", util.ErrNotSupported)
			}
			return t.pipe.SetRecirculationEnabled(ctx, dev, port, *p.recirc)
		}})
	}
	if p.cutThrough != nil {
		steps = append(steps, step{"cut-through", false, func(ctx context.Context) error {
			return t.drv.PortSetCutThrough(ctx, dev, port, *p.cutThrough)
		}})
	}
	if p.enable != nil {
		steps = append(steps, step{"enable", true, func(ctx context.Context) error {
			return t.drv.PortEnable(ctx, dev, port, *p.enable)
		}})
	}
	return steps
}

func (t *Table) run(ctx context.Context, log *logrus.Entry, steps []step, p *plan) error {
	for _, s := range steps {
		log.Debugf("step %s", s.name)
		err := s.run(ctx)
		if err == nil {
			continue
		}
		if s.critical {
			log.Errorf("%s failed: %v", s.name, err)
			return err
		}
		if err := t.policy.tolerate(log, s.name, err, &p.skipped); err != nil {
			return err
		}
	}
	return nil
}

// changeSpeed rebuilds a port at a new speed. The port is disabled,
// deleted with its old lane count and added again; its autonegotiation
// policy survives the rebuild and it comes back enabled. The FEC is the
// requested one or, when none was requested, the port's current FEC.
func (t *Table) changeSpeed(ctx context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes *uint32, fec *hal.FEC) error {
	target, err := t.drv.PortFEC(ctx, dev, port)
	if err != nil {
		return err
	}
	if fec != nil {
		target = *fec
	}
	var n uint32
	if lanes != nil {
		n = *lanes
	} else if n, err = t.drv.DefaultLanes(ctx, dev, speed); err != nil {
		return err
	}
	if err := t.drv.ValidateSpeedLanesFEC(ctx, dev, speed, n, target); err != nil {
		return err
	}
	old, err := t.drv.PortLanes(ctx, dev, port)
	if err != nil {
		return err
	}
	if err := t.drv.PortEnable(ctx, dev, port, false); err != nil {
		return err
	}
	an, err := t.drv.PortAutoneg(ctx, dev, port)
	if err != nil {
		return err
	}
	if err := t.drv.PortDeleteWithLanes(ctx, dev, port, old); err != nil {
		return err
	}
	if err := t.drv.PortAddWithLanes(ctx, dev, port, speed, n, target); err != nil {
		return err
	}
	if err := t.drv.PortSetAutoneg(ctx, dev, port, an); err != nil {
		return err
	}
	return t.drv.PortEnable(ctx, dev, port, true)
}

func (t *Table) writeLog(op string, dev hal.DevID, port hal.DevPort) *logrus.Entry {
	return util.WithPort(uint32(dev), uint32(port)).WithField("operation", op)
}

// EntryAdd provisions the port named by key. SPEED and FEC are required;
// N_LANES selects the lane count, otherwise the driver default applies.
// The remaining fields are then applied as by EntryMod.
func (t *Table) EntryAdd(ctx context.Context, dev hal.DevID, key, data *field.Data) (err error) {
	start := time.Now()
	port, err := KeyPort(key)
	if err != nil {
		return err
	}
	var skipped []string
	defer func() {
		t.record(audit.OpPortAdd, dev, &port, named(data), skipped, start, err)
	}()
	log := t.writeLog("add", dev, port)

	if err := checkData(data); err != nil {
		return err
	}
	v := &util.ValidationBuilder{}
	v.Add(data.Has(FieldSpeed), "$SPEED is required")
	v.Add(data.Has(FieldFEC), "$FEC is required")
	if err := v.Build(); err != nil {
		return err
	}
	p, err := t.buildPlan(log, port, data)
	if err != nil {
		return err
	}
	skipped = p.skipped

	log.Debugf("add speed=%s fec=%s", *p.speed, *p.fec)
	if p.lanes != nil {
		err = t.drv.PortAddWithLanes(ctx, dev, port, *p.speed, *p.lanes, *p.fec)
	} else {
		err = t.drv.PortAdd(ctx, dev, port, *p.speed, *p.fec)
	}
	if err != nil {
		log.Errorf("add failed: %v", err)
		return err
	}
	err = t.run(ctx, log, t.modifySteps(dev, p, false), p)
	skipped = p.skipped
	return err
}

// EntryMod applies the fields present in data to an existing port, in a
// fixed order: speed, FEC, field groups, independent settings, cut-through
// and finally the administrative state.
func (t *Table) EntryMod(ctx context.Context, dev hal.DevID, key, data *field.Data) (err error) {
	start := time.Now()
	port, err := KeyPort(key)
	if err != nil {
		return err
	}
	var skipped []string
	defer func() {
		t.record(audit.OpPortModify, dev, &port, named(data), skipped, start, err)
	}()
	log := t.writeLog("modify", dev, port)

	p, err := t.buildPlan(log, port, data)
	if err != nil {
		return err
	}
	if p.lanes != nil && p.speed == nil {
		if t.policy == PolicyStrict {
			return util.NewFieldError("modify", "$N_LANES", "lane count needs $SPEED", util.ErrInvalidArgument)
		}
		log.Warnf("$N_LANES without $SPEED, skipping")
		p.skipped = append(p.skipped, "$N_LANES")
	}
	err = t.run(ctx, log, t.modifySteps(dev, p, true), p)
	skipped = p.skipped
	return err
}

// EntryDel removes the port named by key.
func (t *Table) EntryDel(ctx context.Context, dev hal.DevID, key *field.Data) (err error) {
	start := time.Now()
	port, err := KeyPort(key)
	if err != nil {
		return err
	}
	defer func() { t.record(audit.OpPortDelete, dev, &port, nil, nil, start, err) }()
	t.writeLog("delete", dev, port).Debug("delete")
	return t.drv.PortDelete(ctx, dev, port)
}

// EntryClear removes every port of dev.
func (t *Table) EntryClear(ctx context.Context, dev hal.DevID) (err error) {
	start := time.Now()
	defer func() { t.record(audit.OpPortClear, dev, nil, nil, nil, start, err) }()
	util.WithDevice(uint32(dev)).WithField("operation", "clear").Debug("delete all ports")
	return t.drv.PortDeleteAll(ctx, dev)
}

func named(data *field.Data) map[string]string {
	if data == nil {
		return nil
	}
	return data.Named()
}
