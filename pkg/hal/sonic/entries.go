package sonic

import (
	"fmt"
	"strconv"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Table names.
const (
	tablePortMap      = "PORT_MAP"
	tablePort         = "PORT"
	tablePipelinePort = "PIPELINE_PORT"
	tablePortState    = "PORT_TABLE"
	tableCounters     = "COUNTERS"
)

// DefaultMTU is the MTU written for a newly added port.
const DefaultMTU = 9100

// PortMapEntry is the platform inventory record of a device port
// (CONFIG_DB PORT_MAP). portmgr never writes it.
type PortMapEntry struct {
	Name     string
	Conn     uint32
	Chnl     uint32
	FPIndex  uint32
	Internal bool
	Recirc   bool
	Media    hal.MediaType
}

// PortEntry is the configuration of a provisioned port (CONFIG_DB PORT).
type PortEntry struct {
	Speed      hal.Speed
	Lanes      uint32
	FEC        hal.FEC
	AdminUp    bool
	Autoneg    hal.AutonegPolicy
	Loopback   hal.LoopbackMode
	TxMTU      uint32
	RxMTU      uint32
	TxPFCMap   uint32
	RxPFCMap   uint32
	TxPause    bool
	RxPause    bool
	CutThrough bool
	Direction  hal.Direction
	Media      hal.MediaType
	Serdes     hal.SerdesParams
	PTPTxDelta uint32
	PTPRxDelta uint32
}

// PipelineEntry holds pipeline settings of a port (CONFIG_DB PIPELINE_PORT).
type PipelineEntry struct {
	PrsrPriThresh uint32
	RecircEnable  bool
}

// PortStateEntry is the operational state of a port (STATE_DB PORT_TABLE).
type PortStateEntry struct {
	OperUp    bool
	Timestamp hal.PTPTimestamp
}

// fieldReader decodes hash values, remembering the first failure.
type fieldReader struct {
	vals map[string]string
	err  error
}

func (r *fieldReader) fail(name, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: field %s=%q: %v", util.ErrInvalidArgument, name, v, err)
	}
}

func (r *fieldReader) str(name string) string { return r.vals[name] }

func (r *fieldReader) u32(name string) uint32 {
	v, ok := r.vals[name]
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		r.fail(name, v, err)
	}
	return uint32(n)
}

func (r *fieldReader) u64(name string) uint64 {
	v, ok := r.vals[name]
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.fail(name, v, err)
	}
	return n
}

func (r *fieldReader) i64(name string) int64 {
	v, ok := r.vals[name]
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		r.fail(name, v, err)
	}
	return n
}

func (r *fieldReader) boolean(name string) bool {
	v, ok := r.vals[name]
	if !ok || v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, v, err)
	}
	return b
}

func label[T any](r *fieldReader, name string, parse func(string) (T, bool), def T) T {
	v, ok := r.vals[name]
	if !ok || v == "" {
		return def
	}
	x, ok := parse(v)
	if !ok {
		r.fail(name, v, fmt.Errorf("unknown label"))
	}
	return x
}

func parsePortMap(vals map[string]string) (PortMapEntry, error) {
	r := &fieldReader{vals: vals}
	e := PortMapEntry{
		Name:     r.str("name"),
		Conn:     r.u32("conn"),
		Chnl:     r.u32("chnl"),
		FPIndex:  r.u32("fp_index"),
		Internal: r.boolean("internal"),
		Recirc:   r.boolean("recirc"),
		Media:    label(r, "media_type", hal.ParseMediaType, hal.MediaUnknown),
	}
	return e, r.err
}

func parsePort(vals map[string]string) (PortEntry, error) {
	r := &fieldReader{vals: vals}
	e := PortEntry{
		Speed:      label(r, "speed", hal.ParseSpeed, hal.SpeedNone),
		Lanes:      r.u32("lanes"),
		FEC:        label(r, "fec", hal.ParseFEC, hal.FECNone),
		AdminUp:    r.str("admin_status") == "up",
		Autoneg:    label(r, "autoneg", hal.ParseAutonegPolicy, hal.AutonegDefault),
		Loopback:   label(r, "loopback", hal.ParseLoopbackMode, hal.LoopbackNone),
		TxMTU:      r.u32("tx_mtu"),
		RxMTU:      r.u32("rx_mtu"),
		TxPFCMap:   r.u32("tx_pfc_map"),
		RxPFCMap:   r.u32("rx_pfc_map"),
		TxPause:    r.boolean("tx_pause"),
		RxPause:    r.boolean("rx_pause"),
		CutThrough: r.boolean("cut_through"),
		Direction:  label(r, "direction", hal.ParseDirection, hal.DirectionDefault),
		Media:      label(r, "media_type", hal.ParseMediaType, hal.MediaUnknown),
		Serdes: hal.SerdesParams{
			Attn:  r.i64("serdes_attn"),
			Pre:   r.i64("serdes_pre"),
			Pre2:  r.i64("serdes_pre2"),
			Post:  r.i64("serdes_post"),
			Post2: r.i64("serdes_post2"),
		},
		PTPTxDelta: r.u32("ptp_tx_delta"),
		PTPRxDelta: r.u32("ptp_rx_delta"),
	}
	return e, r.err
}

func adminStatus(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

func u32s(v uint32) string         { return strconv.FormatUint(uint64(v), 10) }
func i64s(v int64) string          { return strconv.FormatInt(v, 10) }
func bools(v bool) string          { return strconv.FormatBool(v) }
func u64s(v uint64) string         { return strconv.FormatUint(v, 10) }
func portKey(p hal.DevPort) string { return strconv.FormatUint(uint64(p), 10) }

// Fields returns the CONFIG_DB hash of e.
func (e PortEntry) Fields() map[string]string {
	return map[string]string{
		"speed":        e.Speed.String(),
		"lanes":        u32s(e.Lanes),
		"fec":          e.FEC.String(),
		"admin_status": adminStatus(e.AdminUp),
		"autoneg":      e.Autoneg.String(),
		"loopback":     e.Loopback.String(),
		"tx_mtu":       u32s(e.TxMTU),
		"rx_mtu":       u32s(e.RxMTU),
		"tx_pfc_map":   u32s(e.TxPFCMap),
		"rx_pfc_map":   u32s(e.RxPFCMap),
		"tx_pause":     bools(e.TxPause),
		"rx_pause":     bools(e.RxPause),
		"cut_through":  bools(e.CutThrough),
		"direction":    e.Direction.String(),
		"media_type":   e.Media.String(),
		"serdes_attn":  i64s(e.Serdes.Attn),
		"serdes_pre":   i64s(e.Serdes.Pre),
		"serdes_pre2":  i64s(e.Serdes.Pre2),
		"serdes_post":  i64s(e.Serdes.Post),
		"serdes_post2": i64s(e.Serdes.Post2),
		"ptp_tx_delta": u32s(e.PTPTxDelta),
		"ptp_rx_delta": u32s(e.PTPRxDelta),
	}
}

func parsePipeline(vals map[string]string) (PipelineEntry, error) {
	r := &fieldReader{vals: vals}
	e := PipelineEntry{
		PrsrPriThresh: r.u32("prsr_pri_thresh"),
		RecircEnable:  r.boolean("recirc_en"),
	}
	return e, r.err
}

func parsePortState(vals map[string]string) (PortStateEntry, error) {
	r := &fieldReader{vals: vals}
	e := PortStateEntry{
		OperUp: r.str("oper_status") == "up",
		Timestamp: hal.PTPTimestamp{
			ID:    r.u32("ts_id"),
			Value: r.u64("ts_value"),
			Valid: r.boolean("ts_valid"),
		},
	}
	return e, r.err
}

// parseCounters orders a COUNTERS_DB hash like hal.CounterNames. Missing
// counters read as zero.
func parseCounters(vals map[string]string) ([]uint64, error) {
	r := &fieldReader{vals: vals}
	out := make([]uint64, hal.NumCounters)
	for i, name := range hal.CounterNames {
		out[i] = r.u64(name)
	}
	return out, r.err
}

func parsePortKey(key string) (hal.DevPort, bool) {
	n, err := strconv.ParseUint(key, 10, 32)
	return hal.DevPort(n), err == nil
}
