package fake

import (
	"context"
	"fmt"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

func (d *Driver) update(verb string, dev hal.DevID, port hal.DevPort, fn func(p *portState) error, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(verb, dev, port, args...); err != nil {
		return err
	}
	p, err := d.added(dev, port)
	if err != nil {
		return err
	}
	return fn(p)
}

func get[T any](d *Driver, verb string, dev hal.DevID, port hal.DevPort, fn func(p *portState) T) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	if err := d.record(verb, dev, port); err != nil {
		return zero, err
	}
	p, err := d.added(dev, port)
	if err != nil {
		return zero, err
	}
	return fn(p), nil
}

// add provisions a port. Callers hold d.mu.
func (d *Driver) add(dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32, fec hal.FEC) error {
	p, err := d.known(dev, port)
	if err != nil {
		return err
	}
	if p.added {
		return fmt.Errorf("%w: dev %d port %d already provisioned", util.ErrInvalidArgument, dev, port)
	}
	if err := hal.ValidateSpeedLanesFEC(speed, lanes, fec); err != nil {
		return err
	}
	p.resetConfig()
	p.added, p.speed, p.lanes, p.fec = true, speed, lanes, fec
	p.media = hal.MediaCopper
	return nil
}

func (d *Driver) PortAdd(_ context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, fec hal.FEC) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("PortAdd", dev, port, speed, fec); err != nil {
		return err
	}
	lanes, err := hal.DefaultLanes(speed)
	if err != nil {
		return err
	}
	return d.add(dev, port, speed, lanes, fec)
}

func (d *Driver) PortAddWithLanes(_ context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32, fec hal.FEC) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("PortAddWithLanes", dev, port, speed, lanes, fec); err != nil {
		return err
	}
	return d.add(dev, port, speed, lanes, fec)
}

func (d *Driver) PortDelete(_ context.Context, dev hal.DevID, port hal.DevPort) error {
	return d.update("PortDelete", dev, port, func(p *portState) error {
		p.added = false
		p.resetConfig()
		return nil
	})
}

func (d *Driver) PortDeleteWithLanes(_ context.Context, dev hal.DevID, port hal.DevPort, lanes uint32) error {
	return d.update("PortDeleteWithLanes", dev, port, func(p *portState) error {
		if p.lanes != lanes {
			return fmt.Errorf("%w: port %d holds %d lanes, not %d", util.ErrInvalidArgument, port, p.lanes, lanes)
		}
		p.added = false
		p.resetConfig()
		return nil
	}, lanes)
}

func (d *Driver) PortDeleteAll(_ context.Context, dev hal.DevID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("PortDeleteAll", dev, 0); err != nil {
		return err
	}
	for _, p := range d.ports[dev] {
		p.added = false
		p.resetConfig()
	}
	return nil
}

func (d *Driver) PortEnable(_ context.Context, dev hal.DevID, port hal.DevPort, enable bool) error {
	d.mu.Lock()
	if err := d.record("PortEnable", dev, port, enable); err != nil {
		d.mu.Unlock()
		return err
	}
	p, err := d.added(dev, port)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	p.enabled = enable
	changed := d.AutoLink && p.up != enable
	if changed {
		p.up = enable
	}
	d.mu.Unlock()
	if changed {
		d.EmitStatus(hal.StatusEvent{Dev: dev, Port: port, Up: enable})
	}
	return nil
}

func (d *Driver) PortIsEnabled(_ context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	return get(d, "PortIsEnabled", dev, port, func(p *portState) bool { return p.enabled })
}

func (d *Driver) PortSpeed(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.Speed, error) {
	return get(d, "PortSpeed", dev, port, func(p *portState) hal.Speed { return p.speed })
}

func (d *Driver) PortSetSpeed(_ context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed) error {
	return d.update("PortSetSpeed", dev, port, func(p *portState) error {
		lanes, err := hal.DefaultLanes(speed)
		if err != nil {
			return err
		}
		if err := hal.ValidateSpeedLanesFEC(speed, lanes, p.fec); err != nil {
			return err
		}
		p.speed, p.lanes = speed, lanes
		return nil
	}, speed)
}

func (d *Driver) PortSetSpeedWithLanes(_ context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32) error {
	return d.update("PortSetSpeedWithLanes", dev, port, func(p *portState) error {
		if err := hal.ValidateSpeedLanesFEC(speed, lanes, p.fec); err != nil {
			return err
		}
		p.speed, p.lanes = speed, lanes
		return nil
	}, speed, lanes)
}

func (d *Driver) PortLanes(_ context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	return get(d, "PortLanes", dev, port, func(p *portState) uint32 { return p.lanes })
}

func (d *Driver) DefaultLanes(_ context.Context, dev hal.DevID, speed hal.Speed) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("DefaultLanes", dev, 0, speed); err != nil {
		return 0, err
	}
	return hal.DefaultLanes(speed)
}

func (d *Driver) ValidateSpeedLanesFEC(_ context.Context, dev hal.DevID, speed hal.Speed, lanes uint32, fec hal.FEC) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("ValidateSpeedLanesFEC", dev, 0, speed, lanes, fec); err != nil {
		return err
	}
	return hal.ValidateSpeedLanesFEC(speed, lanes, fec)
}

func (d *Driver) PortFEC(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.FEC, error) {
	return get(d, "PortFEC", dev, port, func(p *portState) hal.FEC { return p.fec })
}

func (d *Driver) PortSetFEC(_ context.Context, dev hal.DevID, port hal.DevPort, fec hal.FEC) error {
	return d.update("PortSetFEC", dev, port, func(p *portState) error {
		if err := hal.ValidateSpeedLanesFEC(p.speed, p.lanes, fec); err != nil {
			return err
		}
		p.fec = fec
		return nil
	}, fec)
}

func (d *Driver) PortLoopback(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.LoopbackMode, error) {
	return get(d, "PortLoopback", dev, port, func(p *portState) hal.LoopbackMode { return p.loopback })
}

func (d *Driver) PortSetLoopback(_ context.Context, dev hal.DevID, port hal.DevPort, mode hal.LoopbackMode) error {
	return d.update("PortSetLoopback", dev, port, func(p *portState) error {
		p.loopback = mode
		return nil
	}, mode)
}

func (d *Driver) PortMTU(_ context.Context, dev hal.DevID, port hal.DevPort) (uint32, uint32, error) {
	v, err := get(d, "PortMTU", dev, port, func(p *portState) [2]uint32 { return [2]uint32{p.txMTU, p.rxMTU} })
	return v[0], v[1], err
}

func (d *Driver) PortSetMTU(_ context.Context, dev hal.DevID, port hal.DevPort, tx, rx uint32) error {
	return d.update("PortSetMTU", dev, port, func(p *portState) error {
		if tx > DefaultMTU || rx > DefaultMTU {
			return fmt.Errorf("%w: MTU above %d", util.ErrInvalidArgument, DefaultMTU)
		}
		p.txMTU, p.rxMTU = tx, rx
		return nil
	}, tx, rx)
}

func (d *Driver) PortPFC(_ context.Context, dev hal.DevID, port hal.DevPort) (uint32, uint32, error) {
	v, err := get(d, "PortPFC", dev, port, func(p *portState) [2]uint32 { return [2]uint32{p.txPFC, p.rxPFC} })
	return v[0], v[1], err
}

func (d *Driver) PortSetPFC(_ context.Context, dev hal.DevID, port hal.DevPort, tx, rx uint32) error {
	return d.update("PortSetPFC", dev, port, func(p *portState) error {
		p.txPFC, p.rxPFC = tx, rx
		return nil
	}, tx, rx)
}

func (d *Driver) PortPause(_ context.Context, dev hal.DevID, port hal.DevPort) (bool, bool, error) {
	v, err := get(d, "PortPause", dev, port, func(p *portState) [2]bool { return [2]bool{p.txPause, p.rxPause} })
	return v[0], v[1], err
}

func (d *Driver) PortSetPause(_ context.Context, dev hal.DevID, port hal.DevPort, tx, rx bool) error {
	return d.update("PortSetPause", dev, port, func(p *portState) error {
		p.txPause, p.rxPause = tx, rx
		return nil
	}, tx, rx)
}

func (d *Driver) PortCutThrough(_ context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	return get(d, "PortCutThrough", dev, port, func(p *portState) bool { return p.cutThrough })
}

func (d *Driver) PortSetCutThrough(_ context.Context, dev hal.DevID, port hal.DevPort, enable bool) error {
	return d.update("PortSetCutThrough", dev, port, func(p *portState) error {
		p.cutThrough = enable
		return nil
	}, enable)
}

func (d *Driver) PortSerdesParams(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.SerdesParams, error) {
	return get(d, "PortSerdesParams", dev, port, func(p *portState) hal.SerdesParams { return p.serdes })
}

func (d *Driver) PortSetSerdesParams(_ context.Context, dev hal.DevID, port hal.DevPort, sp hal.SerdesParams) error {
	return d.update("PortSetSerdesParams", dev, port, func(p *portState) error {
		p.serdes = sp
		return nil
	}, sp)
}

func (d *Driver) PortAutoneg(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.AutonegPolicy, error) {
	return get(d, "PortAutoneg", dev, port, func(p *portState) hal.AutonegPolicy { return p.autoneg })
}

func (d *Driver) PortSetAutoneg(_ context.Context, dev hal.DevID, port hal.DevPort, policy hal.AutonegPolicy) error {
	return d.update("PortSetAutoneg", dev, port, func(p *portState) error {
		p.autoneg = policy
		return nil
	}, policy)
}

func (d *Driver) PortMediaType(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.MediaType, error) {
	return get(d, "PortMediaType", dev, port, func(p *portState) hal.MediaType { return p.media })
}

func (d *Driver) PortSetMediaType(_ context.Context, dev hal.DevID, port hal.DevPort, media hal.MediaType) error {
	return d.update("PortSetMediaType", dev, port, func(p *portState) error {
		p.media = media
		return nil
	}, media)
}

func (d *Driver) PortDirection(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.Direction, error) {
	return get(d, "PortDirection", dev, port, func(p *portState) hal.Direction { return p.dir })
}

func (d *Driver) PortSetDirection(_ context.Context, dev hal.DevID, port hal.DevPort, dir hal.Direction) error {
	return d.update("PortSetDirection", dev, port, func(p *portState) error {
		p.dir = dir
		return nil
	}, dir)
}

func (d *Driver) PortPTPTxDelta(_ context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	return get(d, "PortPTPTxDelta", dev, port, func(p *portState) uint32 { return p.ptpTx })
}

func (d *Driver) PortSetPTPTxDelta(_ context.Context, dev hal.DevID, port hal.DevPort, delta uint32) error {
	return d.update("PortSetPTPTxDelta", dev, port, func(p *portState) error {
		p.ptpTx = delta
		return nil
	}, delta)
}

func (d *Driver) PortPTPRxDelta(_ context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	return get(d, "PortPTPRxDelta", dev, port, func(p *portState) uint32 { return p.ptpRx })
}

func (d *Driver) PortSetPTPRxDelta(_ context.Context, dev hal.DevID, port hal.DevPort, delta uint32) error {
	return d.update("PortSetPTPRxDelta", dev, port, func(p *portState) error {
		p.ptpRx = delta
		return nil
	}, delta)
}

func (d *Driver) PortPTPTimestamp(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.PTPTimestamp, error) {
	return get(d, "PortPTPTimestamp", dev, port, func(p *portState) hal.PTPTimestamp { return p.timestamp })
}

func (d *Driver) PortKind(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.PortKind, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("PortKind", dev, port); err != nil {
		return 0, err
	}
	if p := d.ports[dev][port]; p != nil && p.added {
		return hal.PortKindNormal, nil
	}
	if d.isRecirc(dev, port) {
		return hal.PortKindRecirculation, nil
	}
	return 0, fmt.Errorf("%w: dev %d port %d", util.ErrObjectNotFound, dev, port)
}

func (d *Driver) PortIsInternal(_ context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	return get(d, "PortIsInternal", dev, port, func(p *portState) bool { return p.internal })
}

func (d *Driver) PortOperState(_ context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	return get(d, "PortOperState", dev, port, func(p *portState) bool { return p.up })
}

func (d *Driver) FrontPanelHandle(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("FrontPanelHandle", dev, port); err != nil {
		return hal.Handle{}, err
	}
	p, err := d.known(dev, port)
	if err != nil {
		return hal.Handle{}, err
	}
	return p.handle, nil
}

func (d *Driver) findPort(verb string, dev hal.DevID, match func(p *portState) bool, args ...any) (hal.DevPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(verb, dev, 0, args...); err != nil {
		return 0, err
	}
	for port, p := range d.ports[dev] {
		if match(p) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: %v on dev %d", util.ErrObjectNotFound, args, dev)
}

func (d *Driver) FrontPanelToPort(_ context.Context, dev hal.DevID, h hal.Handle) (hal.DevPort, error) {
	return d.findPort("FrontPanelToPort", dev, func(p *portState) bool { return p.handle == h }, h)
}

func (d *Driver) NameToPort(_ context.Context, dev hal.DevID, name string) (hal.DevPort, error) {
	return d.findPort("NameToPort", dev, func(p *portState) bool { return p.name == name }, name)
}

func (d *Driver) FrontPanelIndexToPort(_ context.Context, dev hal.DevID, idx uint32) (hal.DevPort, error) {
	return d.findPort("FrontPanelIndexToPort", dev, func(p *portState) bool { return p.fpIndex == idx }, idx)
}

func (d *Driver) PortToName(_ context.Context, dev hal.DevID, port hal.DevPort) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("PortToName", dev, port); err != nil {
		return "", err
	}
	p, err := d.known(dev, port)
	if err != nil {
		return "", err
	}
	return p.name, nil
}

func (d *Driver) FirstPort(_ context.Context, dev hal.DevID) (hal.DevPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("FirstPort", dev, 0); err != nil {
		return 0, err
	}
	ports := d.provisioned(dev)
	if len(ports) == 0 {
		return 0, fmt.Errorf("%w: dev %d has no ports", util.ErrObjectNotFound, dev)
	}
	return ports[0], nil
}

func (d *Driver) NextPort(_ context.Context, dev hal.DevID, port hal.DevPort) (hal.DevPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("NextPort", dev, port); err != nil {
		return 0, err
	}
	for _, p := range d.provisioned(dev) {
		if p > port {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: no port after %d on dev %d", util.ErrObjectNotFound, port, dev)
}

func (d *Driver) RecircPorts(_ context.Context, dev hal.DevID) ([]hal.DevPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("RecircPorts", dev, 0); err != nil {
		return nil, err
	}
	out := make([]hal.DevPort, len(d.recirc[dev]))
	copy(out, d.recirc[dev])
	return out, nil
}

func (d *Driver) SubscribeStatus(ctx context.Context, dev hal.DevID, ch chan<- hal.StatusEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("SubscribeStatus", dev, 0); err != nil {
		return err
	}
	s := &subscriber{dev: dev, ch: ch, ctx: ctx}
	d.subs = append(d.subs, s)
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, x := range d.subs {
			if x == s {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				break
			}
		}
	}()
	return nil
}

func (d *Driver) PortStats(_ context.Context, dev hal.DevID, port hal.DevPort) ([]uint64, error) {
	return get(d, "PortStats", dev, port, func(p *portState) []uint64 {
		out := make([]uint64, len(p.stats))
		copy(out, p.stats)
		return out
	})
}

func (d *Driver) PortClearStats(_ context.Context, dev hal.DevID, port hal.DevPort) error {
	return d.update("PortClearStats", dev, port, func(p *portState) error {
		p.stats = make([]uint64, hal.NumCounters)
		return nil
	})
}

// Pipeline settings are kept for any known or recirculation port,
// provisioned or not.

func (d *Driver) pipelinePort(verb string, dev hal.DevID, port hal.DevPort, args ...any) (*pipeState, error) {
	if err := d.record(verb, dev, port, args...); err != nil {
		return nil, err
	}
	if d.ports[dev][port] == nil && !d.isRecirc(dev, port) {
		return nil, fmt.Errorf("%w: dev %d has no port %d", util.ErrObjectNotFound, dev, port)
	}
	if d.pipeline[dev] == nil {
		d.pipeline[dev] = make(map[hal.DevPort]*pipeState)
	}
	ps := d.pipeline[dev][port]
	if ps == nil {
		ps = &pipeState{}
		d.pipeline[dev][port] = ps
	}
	return ps, nil
}

func (d *Driver) ParserPriorityThreshold(_ context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ps, err := d.pipelinePort("ParserPriorityThreshold", dev, port)
	if err != nil {
		return 0, err
	}
	return ps.prsrThresh, nil
}

func (d *Driver) SetParserPriorityThreshold(_ context.Context, dev hal.DevID, port hal.DevPort, thresh uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ps, err := d.pipelinePort("SetParserPriorityThreshold", dev, port, thresh)
	if err != nil {
		return err
	}
	if thresh > 7 {
		return fmt.Errorf("%w: parser priority threshold %d above 7", util.ErrInvalidArgument, thresh)
	}
	ps.prsrThresh = thresh
	return nil
}

func (d *Driver) RecirculationEnabled(_ context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ps, err := d.pipelinePort("RecirculationEnabled", dev, port)
	if err != nil {
		return false, err
	}
	return ps.recircEn, nil
}

func (d *Driver) SetRecirculationEnabled(_ context.Context, dev hal.DevID, port hal.DevPort, enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ps, err := d.pipelinePort("SetRecirculationEnabled", dev, port, enable)
	if err != nil {
		return err
	}
	ps.recircEn = enable
	return nil
}
