package hal

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/newtron-network/portmgr/pkg/util"
)

// laneRule lists the lane counts a speed can run on. The first entry is the
// default used when a caller does not ask for a lane count.
type laneRule struct {
	speed Speed
	lanes []uint32
}

var laneRules = []laneRule{
	{Speed1G, []uint32{1}},
	{Speed10G, []uint32{1}},
	{Speed25G, []uint32{1}},
	{Speed40G, []uint32{4}},
	{Speed40GR2, []uint32{2}},
	{Speed50G, []uint32{2, 1}},
	{Speed100G, []uint32{4, 2, 1}},
	{Speed200G, []uint32{4, 8, 2}},
	{Speed400G, []uint32{8, 4}},
}

func lanesFor(s Speed) ([]uint32, bool) {
	for _, r := range laneRules {
		if r.speed == s {
			return r.lanes, true
		}
	}
	return nil, false
}

// DefaultLanes returns the lane count a port of speed s is built with when
// no explicit count is requested.
func DefaultLanes(s Speed) (uint32, error) {
	lanes, ok := lanesFor(s)
	if !ok {
		return 0, fmt.Errorf("%w: no lane mapping for %s", util.ErrInvalidArgument, s)
	}
	return lanes[0], nil
}

// perLaneGbps is the serdes rate a (speed, lanes) pair implies.
func perLaneGbps(s Speed, lanes uint32) uint32 {
	var total uint32
	switch s {
	case Speed1G:
		total = 1
	case Speed10G:
		total = 10
	case Speed25G:
		total = 25
	case Speed40G, Speed40GR2:
		total = 40
	case Speed50G:
		total = 50
	case Speed100G:
		total = 100
	case Speed200G:
		total = 200
	case Speed400G:
		total = 400
	}
	if lanes == 0 {
		return 0
	}
	return total / lanes
}

// ValidateSpeedLanesFEC checks that a port can run speed s over the given
// number of lanes with FEC mode f. PAM4 lanes (50G and above per lane)
// require Reed-Solomon FEC; Firecode is only defined for NRZ lanes of 10G
// and 25G.
func ValidateSpeedLanesFEC(s Speed, lanes uint32, f FEC) error {
	allowed, ok := lanesFor(s)
	if !ok {
		return fmt.Errorf("%w: speed %s cannot be provisioned", util.ErrInvalidArgument, s)
	}
	if !lo.Contains(allowed, lanes) {
		return fmt.Errorf("%w: %s does not run on %d lane(s)", util.ErrInvalidArgument, s, lanes)
	}
	rate := perLaneGbps(s, lanes)
	switch f {
	case FECNone:
		if rate >= 50 {
			return fmt.Errorf("%w: %s over %d lane(s) requires %s", util.ErrInvalidArgument, s, lanes, FECReedSolomon)
		}
	case FECFirecode:
		if rate != 10 && rate != 25 {
			return fmt.Errorf("%w: %s is not supported for %s over %d lane(s)", util.ErrInvalidArgument, f, s, lanes)
		}
	case FECReedSolomon:
		if rate < 25 {
			return fmt.Errorf("%w: %s is not supported for %s over %d lane(s)", util.ErrInvalidArgument, f, s, lanes)
		}
	default:
		return fmt.Errorf("%w: unknown FEC mode %s", util.ErrInvalidArgument, f)
	}
	return nil
}
