// Package fake provides an in-memory hal.Driver and hal.Pipeline that
// records every call. It backs the package tests and the simulated
// device of portctl --sim.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// RecircBase is the first device port Populate assigns to recirculation
// ports.
const RecircBase hal.DevPort = 448

// Call is one recorded driver invocation.
type Call struct {
	Verb string
	Dev  hal.DevID
	Port hal.DevPort
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%d/%d %v)", c.Verb, c.Dev, c.Port, c.Args)
}

// portState is everything the fake hardware remembers about a port.
type portState struct {
	name     string
	handle   hal.Handle
	fpIndex  uint32
	internal bool

	added      bool
	speed      hal.Speed
	lanes      uint32
	fec        hal.FEC
	enabled    bool
	autoneg    hal.AutonegPolicy
	loopback   hal.LoopbackMode
	txMTU      uint32
	rxMTU      uint32
	txPFC      uint32
	rxPFC      uint32
	txPause    bool
	rxPause    bool
	cutThrough bool
	serdes     hal.SerdesParams
	media      hal.MediaType
	dir        hal.Direction
	ptpTx      uint32
	ptpRx      uint32
	timestamp  hal.PTPTimestamp
	up         bool
	stats      []uint64
}

// pipeState is the pipeline side of a port.
type pipeState struct {
	prsrThresh uint32
	recircEn   bool
}

func (p *portState) resetConfig() {
	p.enabled = false
	p.autoneg = hal.AutonegDefault
	p.loopback = hal.LoopbackNone
	p.txMTU, p.rxMTU = DefaultMTU, DefaultMTU
	p.txPFC, p.rxPFC = 0, 0
	p.txPause, p.rxPause = false, false
	p.cutThrough = false
	p.serdes = hal.SerdesParams{}
	p.dir = hal.DirectionDefault
	p.ptpTx, p.ptpRx = 0, 0
	p.timestamp = hal.PTPTimestamp{}
	p.up = false
	p.stats = make([]uint64, hal.NumCounters)
}

// DefaultMTU is the MTU a freshly added port reports.
const DefaultMTU = 10240

type subscriber struct {
	dev hal.DevID
	ch  chan<- hal.StatusEvent
	ctx context.Context
}

// Driver is a recording in-memory driver. The zero value is not usable;
// call New.
type Driver struct {
	// AutoLink makes enable and disable drive the operational state and
	// emit a status event, as a cabled port would.
	AutoLink bool

	mu       sync.Mutex
	ports    map[hal.DevID]map[hal.DevPort]*portState
	recirc   map[hal.DevID][]hal.DevPort
	pipeline map[hal.DevID]map[hal.DevPort]*pipeState
	calls    []Call
	failures map[string]error
	subs     []*subscriber
}

var (
	_ hal.Driver   = (*Driver)(nil)
	_ hal.Pipeline = (*Driver)(nil)
)

// New returns an empty driver with no ports.
func New() *Driver {
	return &Driver{
		ports:    make(map[hal.DevID]map[hal.DevPort]*portState),
		recirc:   make(map[hal.DevID][]hal.DevPort),
		pipeline: make(map[hal.DevID]map[hal.DevPort]*pipeState),
		failures: make(map[string]error),
	}
}

// AddPlatformPort registers a port in the platform inventory without
// provisioning it.
func (d *Driver) AddPlatformPort(dev hal.DevID, port hal.DevPort, name string, h hal.Handle, fpIndex uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ports[dev] == nil {
		d.ports[dev] = make(map[hal.DevPort]*portState)
	}
	p := &portState{name: name, handle: h, fpIndex: fpIndex, media: hal.MediaUnknown}
	p.resetConfig()
	d.ports[dev][port] = p
}

// AddRecircPort registers a recirculation port.
func (d *Driver) AddRecircPort(dev hal.DevID, port hal.DevPort) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recirc[dev] = append(d.recirc[dev], port)
}

// Populate builds n front-panel ports on dev, named "<conn>/0" with dev
// ports 4 apart, each provisioned at 100G over 4 lanes with RS FEC, plus
// two recirculation ports starting at RecircBase.
func (d *Driver) Populate(dev hal.DevID, n int) {
	for i := 0; i < n; i++ {
		conn := uint32(i + 1)
		port := hal.DevPort(i * 4)
		d.AddPlatformPort(dev, port, fmt.Sprintf("%d/0", conn), hal.Handle{Conn: conn}, uint32(i))
		d.provision(dev, port, hal.Speed100G, 4, hal.FECReedSolomon)
	}
	d.AddRecircPort(dev, RecircBase)
	d.AddRecircPort(dev, RecircBase+1)
}

// Provision adds a port directly, bypassing call recording.
func (d *Driver) Provision(dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32, fec hal.FEC) {
	d.provision(dev, port, speed, lanes, fec)
}

func (d *Driver) provision(dev hal.DevID, port hal.DevPort, speed hal.Speed, lanes uint32, fec hal.FEC) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.ports[dev][port]
	if p == nil {
		return
	}
	p.added, p.speed, p.lanes, p.fec = true, speed, lanes, fec
	p.media = hal.MediaCopper
}

// FailOn makes every later call of verb return err. A nil err clears it.
func (d *Driver) FailOn(verb string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, verb)
		return
	}
	d.failures[verb] = err
}

// Calls returns a copy of the call log.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Verbs returns the verbs of the call log in order.
func (d *Driver) Verbs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Verb
	}
	return out
}

// Count returns how many times verb was called.
func (d *Driver) Count(verb string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Verb == verb {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (d *Driver) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// SetOperState changes the link state of a port and notifies subscribers.
func (d *Driver) SetOperState(dev hal.DevID, port hal.DevPort, up bool) {
	d.mu.Lock()
	if p := d.ports[dev][port]; p != nil {
		p.up = up
	}
	d.mu.Unlock()
	d.EmitStatus(hal.StatusEvent{Dev: dev, Port: port, Up: up})
}

// SetCounters overwrites the statistics of a port.
func (d *Driver) SetCounters(dev hal.DevID, port hal.DevPort, vals []uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.ports[dev][port]; p != nil {
		copy(p.stats, vals)
	}
}

// SetTimestamp stores the captured PTP timestamp of a port.
func (d *Driver) SetTimestamp(dev hal.DevID, port hal.DevPort, ts hal.PTPTimestamp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.ports[dev][port]; p != nil {
		p.timestamp = ts
	}
}

// SetInternal marks a port as internal.
func (d *Driver) SetInternal(dev hal.DevID, port hal.DevPort, internal bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.ports[dev][port]; p != nil {
		p.internal = internal
	}
}

// EmitStatus delivers ev to every live subscriber of its device.
func (d *Driver) EmitStatus(ev hal.StatusEvent) {
	d.mu.Lock()
	subs := make([]*subscriber, 0, len(d.subs))
	for _, s := range d.subs {
		if s.dev == ev.Dev {
			subs = append(subs, s)
		}
	}
	d.mu.Unlock()
	for _, s := range subs {
		select {
		case s.ch <- ev:
		case <-s.ctx.Done():
		}
	}
}

// record logs a call and returns the injected failure for verb, if any.
// Callers hold d.mu.
func (d *Driver) record(verb string, dev hal.DevID, port hal.DevPort, args ...any) error {
	d.calls = append(d.calls, Call{Verb: verb, Dev: dev, Port: port, Args: args})
	return d.failures[verb]
}

// added returns a provisioned port. Callers hold d.mu.
func (d *Driver) added(dev hal.DevID, port hal.DevPort) (*portState, error) {
	p := d.ports[dev][port]
	if p == nil || !p.added {
		return nil, fmt.Errorf("%w: dev %d port %d is not provisioned", util.ErrObjectNotFound, dev, port)
	}
	return p, nil
}

func (d *Driver) known(dev hal.DevID, port hal.DevPort) (*portState, error) {
	p := d.ports[dev][port]
	if p == nil {
		return nil, fmt.Errorf("%w: dev %d has no port %d", util.ErrObjectNotFound, dev, port)
	}
	return p, nil
}

// provisioned returns the added ports of dev in ascending order. Callers
// hold d.mu.
func (d *Driver) provisioned(dev hal.DevID) []hal.DevPort {
	var out []hal.DevPort
	for port, p := range d.ports[dev] {
		if p.added {
			out = append(out, port)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d *Driver) isRecirc(dev hal.DevID, port hal.DevPort) bool {
	for _, r := range d.recirc[dev] {
		if r == port {
			return true
		}
	}
	return false
}
