// Package hal defines the hardware control facade the port manager drives.
// A Driver programs MAC, serdes and timestamping hardware for the ports of
// one or more ASIC devices; Pipeline carries the few per-port settings that
// live in the packet pipeline rather than the port hardware.
//
// Every verb takes a context and returns an error. Drivers report
// util.ErrObjectNotFound for ports they do not know and util.ErrInvalidArgument
// for values the hardware rejects; anything else is an opaque driver error
// the caller passes through unchanged.
package hal

import (
	"context"
	"fmt"
)

// DevID identifies one ASIC device.
type DevID uint32

// DevPort is the canonical port identifier within a device.
type DevPort uint32

// Handle is a front-panel connector/channel pair.
type Handle struct {
	Conn uint32
	Chnl uint32
}

func (h Handle) String() string { return fmt.Sprintf("%d/%d", h.Conn, h.Chnl) }

// SerdesParams are the transmit equalization coefficients of a port.
type SerdesParams struct {
	Attn  int64
	Pre   int64
	Pre2  int64
	Post  int64
	Post2 int64
}

// PTPTimestamp is the last captured 1588 transmit timestamp of a port.
type PTPTimestamp struct {
	ID    uint32
	Value uint64
	Valid bool
}

// StatusEvent reports a link state transition.
type StatusEvent struct {
	Dev  DevID
	Port DevPort
	Up   bool
}

// PortKind tells a hardware port from a recirculation port.
type PortKind uint8

const (
	PortKindNormal PortKind = iota + 1
	PortKindRecirculation
)

func (k PortKind) String() string {
	switch k {
	case PortKindNormal:
		return "normal"
	case PortKindRecirculation:
		return "recirculation"
	default:
		return "unknown"
	}
}

// PortLifecycle creates, removes and administratively enables ports.
type PortLifecycle interface {
	PortAdd(ctx context.Context, dev DevID, port DevPort, speed Speed, fec FEC) error
	PortAddWithLanes(ctx context.Context, dev DevID, port DevPort, speed Speed, lanes uint32, fec FEC) error
	PortDelete(ctx context.Context, dev DevID, port DevPort) error
	// PortDeleteWithLanes removes a port that was built on the given lane
	// count, releasing exactly those lanes.
	PortDeleteWithLanes(ctx context.Context, dev DevID, port DevPort, lanes uint32) error
	PortDeleteAll(ctx context.Context, dev DevID) error
	PortEnable(ctx context.Context, dev DevID, port DevPort, enable bool) error
	PortIsEnabled(ctx context.Context, dev DevID, port DevPort) (bool, error)
}

// PortSpeedControl covers the speed, lane and FEC settings of a port.
type PortSpeedControl interface {
	PortSpeed(ctx context.Context, dev DevID, port DevPort) (Speed, error)
	PortSetSpeed(ctx context.Context, dev DevID, port DevPort, speed Speed) error
	PortSetSpeedWithLanes(ctx context.Context, dev DevID, port DevPort, speed Speed, lanes uint32) error
	PortLanes(ctx context.Context, dev DevID, port DevPort) (uint32, error)
	DefaultLanes(ctx context.Context, dev DevID, speed Speed) (uint32, error)
	ValidateSpeedLanesFEC(ctx context.Context, dev DevID, speed Speed, lanes uint32, fec FEC) error
	PortFEC(ctx context.Context, dev DevID, port DevPort) (FEC, error)
	PortSetFEC(ctx context.Context, dev DevID, port DevPort, fec FEC) error
}

// PortSettings covers the remaining per-port hardware settings.
type PortSettings interface {
	PortLoopback(ctx context.Context, dev DevID, port DevPort) (LoopbackMode, error)
	PortSetLoopback(ctx context.Context, dev DevID, port DevPort, mode LoopbackMode) error
	PortMTU(ctx context.Context, dev DevID, port DevPort) (tx, rx uint32, err error)
	PortSetMTU(ctx context.Context, dev DevID, port DevPort, tx, rx uint32) error
	PortPFC(ctx context.Context, dev DevID, port DevPort) (tx, rx uint32, err error)
	PortSetPFC(ctx context.Context, dev DevID, port DevPort, tx, rx uint32) error
	PortPause(ctx context.Context, dev DevID, port DevPort) (tx, rx bool, err error)
	PortSetPause(ctx context.Context, dev DevID, port DevPort, tx, rx bool) error
	PortCutThrough(ctx context.Context, dev DevID, port DevPort) (bool, error)
	PortSetCutThrough(ctx context.Context, dev DevID, port DevPort, enable bool) error
	PortSerdesParams(ctx context.Context, dev DevID, port DevPort) (SerdesParams, error)
	PortSetSerdesParams(ctx context.Context, dev DevID, port DevPort, p SerdesParams) error
	PortAutoneg(ctx context.Context, dev DevID, port DevPort) (AutonegPolicy, error)
	PortSetAutoneg(ctx context.Context, dev DevID, port DevPort, policy AutonegPolicy) error
	PortMediaType(ctx context.Context, dev DevID, port DevPort) (MediaType, error)
	PortSetMediaType(ctx context.Context, dev DevID, port DevPort, media MediaType) error
	PortDirection(ctx context.Context, dev DevID, port DevPort) (Direction, error)
	PortSetDirection(ctx context.Context, dev DevID, port DevPort, dir Direction) error
	PortPTPTxDelta(ctx context.Context, dev DevID, port DevPort) (uint32, error)
	PortSetPTPTxDelta(ctx context.Context, dev DevID, port DevPort, delta uint32) error
	PortPTPRxDelta(ctx context.Context, dev DevID, port DevPort) (uint32, error)
	PortSetPTPRxDelta(ctx context.Context, dev DevID, port DevPort, delta uint32) error
	PortPTPTimestamp(ctx context.Context, dev DevID, port DevPort) (PTPTimestamp, error)
}

// PortState reports read-only hardware state.
type PortState interface {
	// PortKind returns util.ErrObjectNotFound when port is neither a
	// provisioned hardware port nor a recirculation port.
	PortKind(ctx context.Context, dev DevID, port DevPort) (PortKind, error)
	PortIsInternal(ctx context.Context, dev DevID, port DevPort) (bool, error)
	PortOperState(ctx context.Context, dev DevID, port DevPort) (up bool, err error)
}

// PortDirectory translates between port identities and walks the
// provisioned ports.
type PortDirectory interface {
	FrontPanelHandle(ctx context.Context, dev DevID, port DevPort) (Handle, error)
	FrontPanelToPort(ctx context.Context, dev DevID, h Handle) (DevPort, error)
	PortToName(ctx context.Context, dev DevID, port DevPort) (string, error)
	NameToPort(ctx context.Context, dev DevID, name string) (DevPort, error)
	FrontPanelIndexToPort(ctx context.Context, dev DevID, idx uint32) (DevPort, error)
	// FirstPort and NextPort iterate provisioned ports in ascending order
	// and return util.ErrObjectNotFound when there are none left.
	FirstPort(ctx context.Context, dev DevID) (DevPort, error)
	NextPort(ctx context.Context, dev DevID, port DevPort) (DevPort, error)
	RecircPorts(ctx context.Context, dev DevID) ([]DevPort, error)
}

// PortEvents delivers link state changes.
type PortEvents interface {
	// SubscribeStatus sends every link transition on dev to ch until ctx
	// is cancelled. Sends block; the receiver must keep draining ch.
	SubscribeStatus(ctx context.Context, dev DevID, ch chan<- StatusEvent) error
}

// PortCounters reads and clears the per-port statistics array. The slice
// is indexed like CounterNames.
type PortCounters interface {
	PortStats(ctx context.Context, dev DevID, port DevPort) ([]uint64, error)
	PortClearStats(ctx context.Context, dev DevID, port DevPort) error
}

// Driver is the complete hardware control facade.
type Driver interface {
	PortLifecycle
	PortSpeedControl
	PortSettings
	PortState
	PortDirectory
	PortEvents
	PortCounters
}

// Pipeline holds per-port settings owned by the packet pipeline.
type Pipeline interface {
	ParserPriorityThreshold(ctx context.Context, dev DevID, port DevPort) (uint32, error)
	SetParserPriorityThreshold(ctx context.Context, dev DevID, port DevPort, thresh uint32) error
	RecirculationEnabled(ctx context.Context, dev DevID, port DevPort) (bool, error)
	SetRecirculationEnabled(ctx context.Context, dev DevID, port DevPort, enable bool) error
}

// CounterNames lists the per-port MAC counters in the order drivers return
// them.
var CounterNames = []string{
	"FramesReceivedOK",
	"FramesReceivedAll",
	"FramesReceivedwithFCSError",
	"OctetsReceivedinGoodFrames",
	"OctetsReceived",
	"FramesReceivedwithUnicastAddresses",
	"FramesReceivedwithMulticastAddresses",
	"FramesReceivedwithBroadcastAddresses",
	"ReceivedPFCFrames",
	"FramesDroppedBufferFull",
	"FramesTransmittedOK",
	"FramesTransmittedAll",
	"FramesTransmittedwithError",
	"OctetsTransmittedwithouterror",
	"OctetsTransmittedTotal",
	"FramesTransmittedUnicast",
	"FramesTransmittedMulticast",
	"FramesTransmittedBroadcast",
	"TransmittedPFCFrames",
	"FramesTruncated",
}

// NumCounters is len(CounterNames).
var NumCounters = len(CounterNames)
