package hal

import "strconv"

// Speed is a MAC speed setting.
type Speed uint8

const (
	SpeedNone Speed = iota
	Speed1G
	Speed10G
	Speed25G
	Speed40G
	Speed40GR2
	Speed50G
	Speed100G
	Speed200G
	Speed400G
)

// FEC is a forward-error-correction mode.
type FEC uint8

const (
	FECNone FEC = iota
	FECFirecode
	FECReedSolomon
)

// LoopbackMode selects where a port loops traffic back.
type LoopbackMode uint8

const (
	LoopbackNone LoopbackMode = iota
	LoopbackMACNear
	LoopbackMACFar
	LoopbackPCSNear
	LoopbackSerdesNear
	LoopbackSerdesFar
	LoopbackPipe
)

// AutonegPolicy controls link autonegotiation.
type AutonegPolicy uint8

const (
	AutonegDefault AutonegPolicy = iota
	AutonegForceEnable
	AutonegForceDisable
)

// Direction restricts a port to one data direction.
type Direction uint8

const (
	DirectionDefault Direction = iota
	DirectionTxOnly
	DirectionRxOnly
	DirectionDecoupled
)

// MediaType is the cable type attached to a port.
type MediaType uint8

const (
	MediaCopper MediaType = iota
	MediaOptical
	MediaUnknown
)

// enum is the underlying type of every label-mapped hardware setting.
type enum interface{ ~uint8 }

// labelPair binds a table label to an enum value. Tables are ordered so
// that the first pair for a value is its canonical label.
type labelPair[T enum] struct {
	label string
	value T
}

func lookupLabel[T enum](pairs []labelPair[T], label string) (T, bool) {
	for _, p := range pairs {
		if p.label == label {
			return p.value, true
		}
	}
	var zero T
	return zero, false
}

func labelOf[T enum](pairs []labelPair[T], v T) string {
	for _, p := range pairs {
		if p.value == v {
			return p.label
		}
	}
	return "UNKNOWN(" + strconv.Itoa(int(v)) + ")"
}

func labelsOf[T enum](pairs []labelPair[T]) []string {
	seen := make(map[T]bool, len(pairs))
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if seen[p.value] {
			continue
		}
		seen[p.value] = true
		out = append(out, p.label)
	}
	return out
}

var speedLabels = []labelPair[Speed]{
	{"BF_SPEED_NONE", SpeedNone},
	{"BF_SPEED_1G", Speed1G},
	{"BF_SPEED_10G", Speed10G},
	{"BF_SPEED_25G", Speed25G},
	{"BF_SPEED_40G", Speed40G},
	{"BF_SPEED_40G_R2", Speed40GR2},
	{"BF_SPEED_50G", Speed50G},
	{"BF_SPEED_100G", Speed100G},
	{"BF_SPEED_200G", Speed200G},
	{"BF_SPEED_400G", Speed400G},
}

var fecLabels = []labelPair[FEC]{
	{"BF_FEC_TYP_NONE", FECNone},
	{"BF_FEC_TYP_FIRECODE", FECFirecode},
	{"BF_FEC_TYP_REED_SOLOMON", FECReedSolomon},
	{"BF_FEC_TYP_FC", FECFirecode},
	{"BF_FEC_TYP_RS", FECReedSolomon},
}

var loopbackLabels = []labelPair[LoopbackMode]{
	{"BF_LPBK_NONE", LoopbackNone},
	{"BF_LPBK_MAC_NEAR", LoopbackMACNear},
	{"BF_LPBK_MAC_FAR", LoopbackMACFar},
	{"BF_LPBK_PCS_NEAR", LoopbackPCSNear},
	{"BF_LPBK_SERDES_NEAR", LoopbackSerdesNear},
	{"BF_LPBK_SERDES_FAR", LoopbackSerdesFar},
	{"BF_LPBK_PIPE", LoopbackPipe},
}

var autonegLabels = []labelPair[AutonegPolicy]{
	{"PM_AN_DEFAULT", AutonegDefault},
	{"PM_AN_FORCE_ENABLE", AutonegForceEnable},
	{"PM_AN_FORCE_DISABLE", AutonegForceDisable},
}

var directionLabels = []labelPair[Direction]{
	{"PM_PORT_DIR_DEFAULT", DirectionDefault},
	{"PM_PORT_DIR_TX_ONLY", DirectionTxOnly},
	{"PM_PORT_DIR_RX_ONLY", DirectionRxOnly},
	{"PM_PORT_DIR_DECOUPLED", DirectionDecoupled},
}

var mediaLabels = []labelPair[MediaType]{
	{"BF_MEDIA_TYPE_COPPER", MediaCopper},
	{"BF_MEDIA_TYPE_OPTICAL", MediaOptical},
	{"BF_MEDIA_TYPE_UNKNOWN", MediaUnknown},
}

func ParseSpeed(label string) (Speed, bool)                 { return lookupLabel(speedLabels, label) }
func ParseFEC(label string) (FEC, bool)                     { return lookupLabel(fecLabels, label) }
func ParseLoopbackMode(label string) (LoopbackMode, bool)   { return lookupLabel(loopbackLabels, label) }
func ParseAutonegPolicy(label string) (AutonegPolicy, bool) { return lookupLabel(autonegLabels, label) }
func ParseDirection(label string) (Direction, bool)         { return lookupLabel(directionLabels, label) }
func ParseMediaType(label string) (MediaType, bool)         { return lookupLabel(mediaLabels, label) }

func (s Speed) String() string         { return labelOf(speedLabels, s) }
func (f FEC) String() string           { return labelOf(fecLabels, f) }
func (m LoopbackMode) String() string  { return labelOf(loopbackLabels, m) }
func (a AutonegPolicy) String() string { return labelOf(autonegLabels, a) }
func (d Direction) String() string     { return labelOf(directionLabels, d) }
func (m MediaType) String() string     { return labelOf(mediaLabels, m) }

// SpeedLabels lists the canonical speed labels.
func SpeedLabels() []string { return labelsOf(speedLabels) }

// FECLabels lists the canonical FEC labels.
func FECLabels() []string { return labelsOf(fecLabels) }

// LoopbackLabels lists the loopback mode labels.
func LoopbackLabels() []string { return labelsOf(loopbackLabels) }

// AutonegLabels lists the autonegotiation policy labels.
func AutonegLabels() []string { return labelsOf(autonegLabels) }

// DirectionLabels lists the port direction labels.
func DirectionLabels() []string { return labelsOf(directionLabels) }

// MediaLabels lists the media type labels.
func MediaLabels() []string { return labelsOf(mediaLabels) }
