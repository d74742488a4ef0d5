// Package sonic implements hal.Driver and hal.Pipeline over the Redis
// databases of a SONiC switch. Port configuration lives in CONFIG_DB,
// operational state in STATE_DB and MAC counters in COUNTERS_DB; the
// platform daemons program the hardware from there.
//
// One Redis instance serves one ASIC, so a Driver answers for a single
// device ID.
package sonic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Driver is a Redis-backed hal.Driver.
type Driver struct {
	dev      hal.DevID
	config   *dbClient
	state    *dbClient
	counters *dbClient
	tunnel   *SSHTunnel
}

var (
	_ hal.Driver   = (*Driver)(nil)
	_ hal.Pipeline = (*Driver)(nil)
)

// New returns a driver for device dev talking to Redis at addr.
func New(addr string, dev hal.DevID) *Driver {
	return &Driver{
		dev:      dev,
		config:   newDBClient(addr, ConfigDB, "|"),
		state:    newDBClient(addr, StateDB, "|"),
		counters: newDBClient(addr, CountersDB, ":"),
	}
}

// NewOverSSH opens an SSH tunnel to host and returns a driver using the
// switch's Redis through it. Close tears the tunnel down.
func NewOverSSH(host string, sshPort int, user, pass string, dev hal.DevID) (*Driver, error) {
	t, err := NewSSHTunnel(host, sshPort, user, pass)
	if err != nil {
		return nil, err
	}
	d := New(t.LocalAddr(), dev)
	d.tunnel = t
	return d, nil
}

// Connect checks that every database answers.
func (d *Driver) Connect(ctx context.Context) error {
	for _, c := range []*dbClient{d.config, d.state, d.counters} {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	util.WithDevice(uint32(d.dev)).Debug("connected to switch redis")
	return nil
}

// Close closes the Redis clients and the SSH tunnel, if any.
func (d *Driver) Close() error {
	var errs []string
	for _, c := range []*dbClient{d.config, d.state, d.counters} {
		if err := c.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if d.tunnel != nil {
		if err := d.tunnel.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing driver: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Tunnel returns the SSH tunnel, or nil for a direct connection.
func (d *Driver) Tunnel() *SSHTunnel { return d.tunnel }

func (d *Driver) checkDev(dev hal.DevID) error {
	if dev != d.dev {
		return fmt.Errorf("%w: device %d is not served by this switch (device %d)", util.ErrObjectNotFound, dev, d.dev)
	}
	return nil
}

func (d *Driver) portMap(ctx context.Context, dev hal.DevID, port hal.DevPort) (PortMapEntry, error) {
	if err := d.checkDev(dev); err != nil {
		return PortMapEntry{}, err
	}
	vals, err := d.config.Get(ctx, tablePortMap, portKey(port))
	if err != nil {
		return PortMapEntry{}, err
	}
	if len(vals) == 0 {
		return PortMapEntry{}, fmt.Errorf("%w: dev %d has no port %d", util.ErrObjectNotFound, dev, port)
	}
	return parsePortMap(vals)
}

func (d *Driver) port(ctx context.Context, dev hal.DevID, port hal.DevPort) (PortEntry, error) {
	if err := d.checkDev(dev); err != nil {
		return PortEntry{}, err
	}
	vals, err := d.config.Get(ctx, tablePort, portKey(port))
	if err != nil {
		return PortEntry{}, err
	}
	if len(vals) == 0 {
		return PortEntry{}, fmt.Errorf("%w: dev %d port %d is not provisioned", util.ErrObjectNotFound, dev, port)
	}
	return parsePort(vals)
}

// update writes fields of a provisioned port.
func (d *Driver) update(ctx context.Context, dev hal.DevID, port hal.DevPort, fields map[string]string) error {
	if _, err := d.port(ctx, dev, port); err != nil {
		return err
	}
	util.WithPort(uint32(dev), uint32(port)).Debugf("PORT set %v", fields)
	return d.config.Set(ctx, tablePort, portKey(port), fields)
}

// --- lifecycle ---

func (d *Driver) add(ctx context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32, fec hal.FEC) error {
	pm, err := d.portMap(ctx, dev, port)
	if err != nil {
		return err
	}
	if pm.Recirc {
		return fmt.Errorf("%w: port %d is a recirculation port", util.ErrInvalidArgument, port)
	}
	exists, err := d.config.Exists(ctx, tablePort, portKey(port))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: dev %d port %d already provisioned", util.ErrInvalidArgument, dev, port)
	}
	if err := hal.ValidateSpeedLanesFEC(speed, lanes, fec); err != nil {
		return err
	}
	e := PortEntry{
		Speed: speed,
		Lanes: lanes,
		FEC:   fec,
		TxMTU: DefaultMTU,
		RxMTU: DefaultMTU,
		Media: pm.Media,
	}
	util.WithPort(uint32(dev), uint32(port)).Debugf("PORT add %s/%d/%s", speed, lanes, fec)
	return d.config.Set(ctx, tablePort, portKey(port), e.Fields())
}

func (d *Driver) PortAdd(ctx context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, fec hal.FEC) error {
	lanes, err := hal.DefaultLanes(speed)
	if err != nil {
		return err
	}
	return d.add(ctx, dev, port, speed, lanes, fec)
}

func (d *Driver) PortAddWithLanes(ctx context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32, fec hal.FEC) error {
	return d.add(ctx, dev, port, speed, lanes, fec)
}

func (d *Driver) PortDelete(ctx context.Context, dev hal.DevID, port hal.DevPort) error {
	if _, err := d.port(ctx, dev, port); err != nil {
		return err
	}
	return d.config.Delete(ctx, tablePort, portKey(port))
}

func (d *Driver) PortDeleteWithLanes(ctx context.Context, dev hal.DevID, port hal.DevPort, lanes uint32) error {
	e, err := d.port(ctx, dev, port)
	if err != nil {
		return err
	}
	if e.Lanes != lanes {
		return fmt.Errorf("%w: port %d holds %d lanes, not %d", util.ErrInvalidArgument, port, e.Lanes, lanes)
	}
	return d.config.Delete(ctx, tablePort, portKey(port))
}

func (d *Driver) PortDeleteAll(ctx context.Context, dev hal.DevID) error {
	if err := d.checkDev(dev); err != nil {
		return err
	}
	keys, err := d.config.TableKeys(ctx, tablePort)
	if err != nil {
		return err
	}
	return d.config.DeleteAll(ctx, tablePort, keys)
}

func (d *Driver) PortEnable(ctx context.Context, dev hal.DevID, port hal.DevPort, enable bool) error {
	return d.update(ctx, dev, port, map[string]string{"admin_status": adminStatus(enable)})
}

func (d *Driver) PortIsEnabled(ctx context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	e, err := d.port(ctx, dev, port)
	return e.AdminUp, err
}

// --- speed, lanes, FEC ---

func (d *Driver) PortSpeed(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.Speed, error) {
	e, err := d.port(ctx, dev, port)
	return e.Speed, err
}

func (d *Driver) PortSetSpeed(ctx context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed) error {
	lanes, err := hal.DefaultLanes(speed)
	if err != nil {
		return err
	}
	return d.PortSetSpeedWithLanes(ctx, dev, port, speed, lanes)
}

func (d *Driver) PortSetSpeedWithLanes(ctx context.Context, dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32) error {
	e, err := d.port(ctx, dev, port)
	if err != nil {
		return err
	}
	if err := hal.ValidateSpeedLanesFEC(speed, lanes, e.FEC); err != nil {
		return err
	}
	return d.update(ctx, dev, port, map[string]string{"speed": speed.String(), "lanes": u32s(lanes)})
}

func (d *Driver) PortLanes(ctx context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	e, err := d.port(ctx, dev, port)
	return e.Lanes, err
}

func (d *Driver) DefaultLanes(_ context.Context, dev hal.DevID, speed hal.Speed) (uint32, error) {
	if err := d.checkDev(dev); err != nil {
		return 0, err
	}
	return hal.DefaultLanes(speed)
}

func (d *Driver) ValidateSpeedLanesFEC(_ context.Context, dev hal.DevID, speed hal.Speed, lanes uint32, fec hal.FEC) error {
	if err := d.checkDev(dev); err != nil {
		return err
	}
	return hal.ValidateSpeedLanesFEC(speed, lanes, fec)
}

func (d *Driver) PortFEC(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.FEC, error) {
	e, err := d.port(ctx, dev, port)
	return e.FEC, err
}

func (d *Driver) PortSetFEC(ctx context.Context, dev hal.DevID, port hal.DevPort, fec hal.FEC) error {
	e, err := d.port(ctx, dev, port)
	if err != nil {
		return err
	}
	if err := hal.ValidateSpeedLanesFEC(e.Speed, e.Lanes, fec); err != nil {
		return err
	}
	return d.update(ctx, dev, port, map[string]string{"fec": fec.String()})
}

// --- settings ---

func (d *Driver) PortLoopback(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.LoopbackMode, error) {
	e, err := d.port(ctx, dev, port)
	return e.Loopback, err
}

func (d *Driver) PortSetLoopback(ctx context.Context, dev hal.DevID, port hal.DevPort, mode hal.LoopbackMode) error {
	return d.update(ctx, dev, port, map[string]string{"loopback": mode.String()})
}

func (d *Driver) PortMTU(ctx context.Context, dev hal.DevID, port hal.DevPort) (uint32, uint32, error) {
	e, err := d.port(ctx, dev, port)
	return e.TxMTU, e.RxMTU, err
}

func (d *Driver) PortSetMTU(ctx context.Context, dev hal.DevID, port hal.DevPort, tx, rx uint32) error {
	return d.update(ctx, dev, port, map[string]string{"tx_mtu": u32s(tx), "rx_mtu": u32s(rx)})
}

func (d *Driver) PortPFC(ctx context.Context, dev hal.DevID, port hal.DevPort) (uint32, uint32, error) {
	e, err := d.port(ctx, dev, port)
	return e.TxPFCMap, e.RxPFCMap, err
}

func (d *Driver) PortSetPFC(ctx context.Context, dev hal.DevID, port hal.DevPort, tx, rx uint32) error {
	return d.update(ctx, dev, port, map[string]string{"tx_pfc_map": u32s(tx), "rx_pfc_map": u32s(rx)})
}

func (d *Driver) PortPause(ctx context.Context, dev hal.DevID, port hal.DevPort) (bool, bool, error) {
	e, err := d.port(ctx, dev, port)
	return e.TxPause, e.RxPause, err
}

func (d *Driver) PortSetPause(ctx context.Context, dev hal.DevID, port hal.DevPort, tx, rx bool) error {
	return d.update(ctx, dev, port, map[string]string{"tx_pause": bools(tx), "rx_pause": bools(rx)})
}

func (d *Driver) PortCutThrough(ctx context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	e, err := d.port(ctx, dev, port)
	return e.CutThrough, err
}

func (d *Driver) PortSetCutThrough(ctx context.Context, dev hal.DevID, port hal.DevPort, enable bool) error {
	return d.update(ctx, dev, port, map[string]string{"cut_through": bools(enable)})
}

func (d *Driver) PortSerdesParams(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.SerdesParams, error) {
	e, err := d.port(ctx, dev, port)
	return e.Serdes, err
}

func (d *Driver) PortSetSerdesParams(ctx context.Context, dev hal.DevID, port hal.DevPort, sp hal.SerdesParams) error {
	return d.update(ctx, dev, port, map[string]string{
		"serdes_attn":  i64s(sp.Attn),
		"serdes_pre":   i64s(sp.Pre),
		"serdes_pre2":  i64s(sp.Pre2),
		"serdes_post":  i64s(sp.Post),
		"serdes_post2": i64s(sp.Post2),
	})
}

func (d *Driver) PortAutoneg(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.AutonegPolicy, error) {
	e, err := d.port(ctx, dev, port)
	return e.Autoneg, err
}

func (d *Driver) PortSetAutoneg(ctx context.Context, dev hal.DevID, port hal.DevPort, policy hal.AutonegPolicy) error {
	return d.update(ctx, dev, port, map[string]string{"autoneg": policy.String()})
}

func (d *Driver) PortMediaType(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.MediaType, error) {
	e, err := d.port(ctx, dev, port)
	return e.Media, err
}

func (d *Driver) PortSetMediaType(ctx context.Context, dev hal.DevID, port hal.DevPort, media hal.MediaType) error {
	return d.update(ctx, dev, port, map[string]string{"media_type": media.String()})
}

func (d *Driver) PortDirection(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.Direction, error) {
	e, err := d.port(ctx, dev, port)
	return e.Direction, err
}

func (d *Driver) PortSetDirection(ctx context.Context, dev hal.DevID, port hal.DevPort, dir hal.Direction) error {
	return d.update(ctx, dev, port, map[string]string{"direction": dir.String()})
}

func (d *Driver) PortPTPTxDelta(ctx context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	e, err := d.port(ctx, dev, port)
	return e.PTPTxDelta, err
}

func (d *Driver) PortSetPTPTxDelta(ctx context.Context, dev hal.DevID, port hal.DevPort, delta uint32) error {
	return d.update(ctx, dev, port, map[string]string{"ptp_tx_delta": u32s(delta)})
}

func (d *Driver) PortPTPRxDelta(ctx context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	e, err := d.port(ctx, dev, port)
	return e.PTPRxDelta, err
}

func (d *Driver) PortSetPTPRxDelta(ctx context.Context, dev hal.DevID, port hal.DevPort, delta uint32) error {
	return d.update(ctx, dev, port, map[string]string{"ptp_rx_delta": u32s(delta)})
}

// --- state ---

func (d *Driver) portState(ctx context.Context, dev hal.DevID, port hal.DevPort) (PortStateEntry, error) {
	if _, err := d.port(ctx, dev, port); err != nil {
		return PortStateEntry{}, err
	}
	vals, err := d.state.Get(ctx, tablePortState, portKey(port))
	if err != nil {
		return PortStateEntry{}, err
	}
	return parsePortState(vals)
}

func (d *Driver) PortPTPTimestamp(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.PTPTimestamp, error) {
	s, err := d.portState(ctx, dev, port)
	return s.Timestamp, err
}

func (d *Driver) PortOperState(ctx context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	s, err := d.portState(ctx, dev, port)
	return s.OperUp, err
}

func (d *Driver) PortKind(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.PortKind, error) {
	if err := d.checkDev(dev); err != nil {
		return 0, err
	}
	exists, err := d.config.Exists(ctx, tablePort, portKey(port))
	if err != nil {
		return 0, err
	}
	if exists {
		return hal.PortKindNormal, nil
	}
	pm, err := d.portMap(ctx, dev, port)
	if err != nil {
		return 0, err
	}
	if pm.Recirc {
		return hal.PortKindRecirculation, nil
	}
	return 0, fmt.Errorf("%w: dev %d port %d is not provisioned", util.ErrObjectNotFound, dev, port)
}

func (d *Driver) PortIsInternal(ctx context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	pm, err := d.portMap(ctx, dev, port)
	return pm.Internal, err
}

// --- directory ---

func (d *Driver) FrontPanelHandle(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.Handle, error) {
	pm, err := d.portMap(ctx, dev, port)
	return hal.Handle{Conn: pm.Conn, Chnl: pm.Chnl}, err
}

func (d *Driver) PortToName(ctx context.Context, dev hal.DevID, port hal.DevPort) (string, error) {
	pm, err := d.portMap(ctx, dev, port)
	return pm.Name, err
}

// inventory reads every PORT_MAP entry keyed by device port.
func (d *Driver) inventory(ctx context.Context, dev hal.DevID) (map[hal.DevPort]PortMapEntry, error) {
	if err := d.checkDev(dev); err != nil {
		return nil, err
	}
	keys, err := d.config.TableKeys(ctx, tablePortMap)
	if err != nil {
		return nil, err
	}
	out := make(map[hal.DevPort]PortMapEntry, len(keys))
	for _, k := range keys {
		port, ok := parsePortKey(k)
		if !ok {
			util.WithDevice(uint32(dev)).Warnf("ignoring PORT_MAP key %q", k)
			continue
		}
		vals, err := d.config.Get(ctx, tablePortMap, k)
		if err != nil {
			return nil, err
		}
		pm, err := parsePortMap(vals)
		if err != nil {
			return nil, fmt.Errorf("PORT_MAP|%s: %w", k, err)
		}
		out[port] = pm
	}
	return out, nil
}

func (d *Driver) find(ctx context.Context, dev hal.DevID, what string, match func(PortMapEntry) bool) (hal.DevPort, error) {
	inv, err := d.inventory(ctx, dev)
	if err != nil {
		return 0, err
	}
	for port, pm := range inv {
		if !pm.Recirc && match(pm) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: no port with %s on dev %d", util.ErrObjectNotFound, what, dev)
}

func (d *Driver) FrontPanelToPort(ctx context.Context, dev hal.DevID, h hal.Handle) (hal.DevPort, error) {
	return d.find(ctx, dev, "handle "+h.String(), func(pm PortMapEntry) bool { return pm.Conn == h.Conn && pm.Chnl == h.Chnl })
}

func (d *Driver) NameToPort(ctx context.Context, dev hal.DevID, name string) (hal.DevPort, error) {
	return d.find(ctx, dev, "name "+name, func(pm PortMapEntry) bool { return pm.Name == name })
}

func (d *Driver) FrontPanelIndexToPort(ctx context.Context, dev hal.DevID, idx uint32) (hal.DevPort, error) {
	return d.find(ctx, dev, fmt.Sprintf("front-panel index %d", idx), func(pm PortMapEntry) bool { return pm.FPIndex == idx })
}

// provisioned returns the PORT keys in ascending order.
func (d *Driver) provisioned(ctx context.Context, dev hal.DevID) ([]hal.DevPort, error) {
	if err := d.checkDev(dev); err != nil {
		return nil, err
	}
	keys, err := d.config.TableKeys(ctx, tablePort)
	if err != nil {
		return nil, err
	}
	out := make([]hal.DevPort, 0, len(keys))
	for _, k := range keys {
		if port, ok := parsePortKey(k); ok {
			out = append(out, port)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (d *Driver) FirstPort(ctx context.Context, dev hal.DevID) (hal.DevPort, error) {
	ports, err := d.provisioned(ctx, dev)
	if err != nil {
		return 0, err
	}
	if len(ports) == 0 {
		return 0, fmt.Errorf("%w: dev %d has no ports", util.ErrObjectNotFound, dev)
	}
	return ports[0], nil
}

func (d *Driver) NextPort(ctx context.Context, dev hal.DevID, port hal.DevPort) (hal.DevPort, error) {
	ports, err := d.provisioned(ctx, dev)
	if err != nil {
		return 0, err
	}
	i := sort.Search(len(ports), func(i int) bool { return ports[i] > port })
	if i == len(ports) {
		return 0, fmt.Errorf("%w: no port after %d on dev %d", util.ErrObjectNotFound, port, dev)
	}
	return ports[i], nil
}

func (d *Driver) RecircPorts(ctx context.Context, dev hal.DevID) ([]hal.DevPort, error) {
	inv, err := d.inventory(ctx, dev)
	if err != nil {
		return nil, err
	}
	var out []hal.DevPort
	for port, pm := range inv {
		if pm.Recirc {
			out = append(out, port)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// --- counters ---

func (d *Driver) PortStats(ctx context.Context, dev hal.DevID, port hal.DevPort) ([]uint64, error) {
	if _, err := d.port(ctx, dev, port); err != nil {
		return nil, err
	}
	vals, err := d.counters.Get(ctx, tableCounters, portKey(port))
	if err != nil {
		return nil, err
	}
	return parseCounters(vals)
}

func (d *Driver) PortClearStats(ctx context.Context, dev hal.DevID, port hal.DevPort) error {
	if _, err := d.port(ctx, dev, port); err != nil {
		return err
	}
	zero := make(map[string]string, hal.NumCounters)
	for _, name := range hal.CounterNames {
		zero[name] = "0"
	}
	return d.counters.Set(ctx, tableCounters, portKey(port), zero)
}

// --- pipeline ---

func (d *Driver) pipeline(ctx context.Context, dev hal.DevID, port hal.DevPort) (PipelineEntry, error) {
	if _, err := d.portMap(ctx, dev, port); err != nil {
		return PipelineEntry{}, err
	}
	vals, err := d.config.Get(ctx, tablePipelinePort, portKey(port))
	if err != nil {
		return PipelineEntry{}, err
	}
	return parsePipeline(vals)
}

func (d *Driver) ParserPriorityThreshold(ctx context.Context, dev hal.DevID, port hal.DevPort) (uint32, error) {
	e, err := d.pipeline(ctx, dev, port)
	return e.PrsrPriThresh, err
}

func (d *Driver) SetParserPriorityThreshold(ctx context.Context, dev hal.DevID, port hal.DevPort, thresh uint32) error {
	if _, err := d.portMap(ctx, dev, port); err != nil {
		return err
	}
	if thresh > 7 {
		return fmt.Errorf("%w: parser priority threshold %d above 7", util.ErrInvalidArgument, thresh)
	}
	return d.config.Set(ctx, tablePipelinePort, portKey(port), map[string]string{"prsr_pri_thresh": u32s(thresh)})
}

func (d *Driver) RecirculationEnabled(ctx context.Context, dev hal.DevID, port hal.DevPort) (bool, error) {
	e, err := d.pipeline(ctx, dev, port)
	return e.RecircEnable, err
}

func (d *Driver) SetRecirculationEnabled(ctx context.Context, dev hal.DevID, port hal.DevPort, enable bool) error {
	if _, err := d.portMap(ctx, dev, port); err != nil {
		return err
	}
	return d.config.Set(ctx, tablePipelinePort, portKey(port), map[string]string{"recirc_en": bools(enable)})
}
