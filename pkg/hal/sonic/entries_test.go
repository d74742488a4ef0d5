package sonic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

func TestParsePort_RoundTrip(t *testing.T) {
	want := PortEntry{
		Speed:      hal.Speed25G,
		Lanes:      1,
		FEC:        hal.FECFirecode,
		AdminUp:    true,
		Autoneg:    hal.AutonegForceDisable,
		Loopback:   hal.LoopbackMACNear,
		TxMTU:      1500,
		RxMTU:      9000,
		TxPFCMap:   0x0f,
		RxPFCMap:   0xf0,
		RxPause:    true,
		CutThrough: true,
		Direction:  hal.DirectionTxOnly,
		Media:      hal.MediaOptical,
		Serdes:     hal.SerdesParams{Attn: -3, Pre: 2, Pre2: 1, Post: -7, Post2: 4},
		PTPTxDelta: 12,
		PTPRxDelta: 34,
	}
	got, err := parsePort(want.Fields())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParsePort_Defaults(t *testing.T) {
	got, err := parsePort(map[string]string{"speed": "BF_SPEED_10G", "lanes": "1"})
	require.NoError(t, err)
	assert.Equal(t, hal.Speed10G, got.Speed)
	assert.Equal(t, hal.FECNone, got.FEC)
	assert.Equal(t, hal.AutonegDefault, got.Autoneg)
	assert.Equal(t, hal.DirectionDefault, got.Direction)
	assert.Equal(t, hal.MediaUnknown, got.Media)
	assert.False(t, got.AdminUp)
}

func TestParsePort_Malformed(t *testing.T) {
	tests := []struct {
		name string
		vals map[string]string
	}{
		{"bad speed label", map[string]string{"speed": "fast"}},
		{"non-numeric mtu", map[string]string{"tx_mtu": "jumbo"}},
		{"negative lanes", map[string]string{"lanes": "-1"}},
		{"bad bool", map[string]string{"tx_pause": "maybe"}},
		{"serdes overflow", map[string]string{"serdes_attn": "9999999999"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePort(tt.vals)
			assert.ErrorIs(t, err, util.ErrInvalidArgument)
		})
	}
}

func TestParsePortMap(t *testing.T) {
	got, err := parsePortMap(map[string]string{
		"name": "7/2", "conn": "7", "chnl": "2", "fp_index": "6",
		"internal": "true", "media_type": "BF_MEDIA_TYPE_COPPER",
	})
	require.NoError(t, err)
	assert.Equal(t, PortMapEntry{Name: "7/2", Conn: 7, Chnl: 2, FPIndex: 6, Internal: true, Media: hal.MediaCopper}, got)
}

func TestParsePortState(t *testing.T) {
	got, err := parsePortState(map[string]string{
		"oper_status": "up", "ts_id": "3", "ts_value": "1234567890123", "ts_valid": "true",
	})
	require.NoError(t, err)
	assert.True(t, got.OperUp)
	assert.Equal(t, hal.PTPTimestamp{ID: 3, Value: 1234567890123, Valid: true}, got.Timestamp)

	got, err = parsePortState(nil)
	require.NoError(t, err)
	assert.False(t, got.OperUp, "missing entry reads as down")
}

func TestParseCounters(t *testing.T) {
	got, err := parseCounters(map[string]string{
		hal.CounterNames[0]: "10",
		hal.CounterNames[3]: "1500",
		"SomethingElse":     "99",
	})
	require.NoError(t, err)
	require.Len(t, got, hal.NumCounters)
	assert.Equal(t, uint64(10), got[0])
	assert.Equal(t, uint64(1500), got[3])
	assert.Equal(t, uint64(0), got[1])

	_, err = parseCounters(map[string]string{hal.CounterNames[0]: "-1"})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestParsePortKey(t *testing.T) {
	p, ok := parsePortKey("448")
	assert.True(t, ok)
	assert.Equal(t, hal.DevPort(448), p)

	_, ok = parsePortKey("Ethernet0")
	assert.False(t, ok)
}

func TestKeyspaceChannel(t *testing.T) {
	assert.Equal(t, "__keyspace@6__:PORT_TABLE|*", keyspaceChannel())
}
