//go:build integration

package sonic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/portmgr/internal/testutil"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/hal/sonic"
	"github.com/newtron-network/portmgr/pkg/util"
)

func connected(t *testing.T) *sonic.Driver {
	t.Helper()
	testutil.SkipIfNoRedis(t)
	testutil.SetupSwitch(t, "testdata/configdb.json")

	d := sonic.New(testutil.RedisAddr(), 0)
	require.NoError(t, d.Connect(testutil.Context(t)))
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDriverAddWritesDefaults(t *testing.T) {
	d := connected(t)
	ctx := testutil.Context(t)

	require.NoError(t, d.PortAdd(ctx, 0, 4, hal.Speed25G, hal.FECNone))

	vals := testutil.ReadEntry(t, testutil.RedisAddr(), testutil.ConfigDB, "PORT", "4")
	assert.Equal(t, "BF_SPEED_25G", vals["speed"])
	assert.Equal(t, "1", vals["lanes"])
	assert.Equal(t, "down", vals["admin_status"])
	assert.Equal(t, "9100", vals["tx_mtu"])
	assert.Equal(t, "BF_MEDIA_TYPE_OPTICAL", vals["media_type"], "media comes from PORT_MAP")

	assert.ErrorIs(t, d.PortAdd(ctx, 0, 4, hal.Speed25G, hal.FECNone), util.ErrInvalidArgument, "already provisioned")
	assert.ErrorIs(t, d.PortAdd(ctx, 0, 12, hal.Speed25G, hal.FECNone), util.ErrObjectNotFound, "not in PORT_MAP")
	assert.ErrorIs(t, d.PortAdd(ctx, 0, 448, hal.Speed25G, hal.FECNone), util.ErrInvalidArgument, "recirculation port")
	assert.ErrorIs(t, d.PortAdd(ctx, 0, 8, hal.Speed400G, hal.FECNone), util.ErrInvalidArgument, "PAM4 lanes need RS FEC")
}

func TestDriverSetters(t *testing.T) {
	d := connected(t)
	ctx := testutil.Context(t)

	require.NoError(t, d.PortSetMTU(ctx, 0, 0, 1500, 9000))
	require.NoError(t, d.PortSetPause(ctx, 0, 0, true, false))
	require.NoError(t, d.PortSetSerdesParams(ctx, 0, 0, hal.SerdesParams{Attn: -2, Pre: 1, Post: 3}))

	tx, rx, err := d.PortMTU(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1500), tx)
	assert.Equal(t, uint32(9000), rx)

	txp, rxp, err := d.PortPause(ctx, 0, 0)
	require.NoError(t, err)
	assert.True(t, txp)
	assert.False(t, rxp)

	sp, err := d.PortSerdesParams(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, hal.SerdesParams{Attn: -2, Pre: 1, Post: 3}, sp)

	assert.ErrorIs(t, d.PortSetMTU(ctx, 0, 4, 1500, 1500), util.ErrObjectNotFound, "not provisioned")
}

func TestDriverDeleteWithLanes(t *testing.T) {
	d := connected(t)
	ctx := testutil.Context(t)

	assert.ErrorIs(t, d.PortDeleteWithLanes(ctx, 0, 0, 2), util.ErrInvalidArgument)
	require.NoError(t, d.PortDeleteWithLanes(ctx, 0, 0, 4))
	assert.False(t, testutil.EntryExists(t, testutil.RedisAddr(), testutil.ConfigDB, "PORT", "0"))
}

func TestDriverDirectory(t *testing.T) {
	d := connected(t)
	ctx := testutil.Context(t)

	require.NoError(t, d.PortAdd(ctx, 0, 8, hal.Speed10G, hal.FECNone))

	first, err := d.FirstPort(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, hal.DevPort(0), first)
	next, err := d.NextPort(ctx, 0, first)
	require.NoError(t, err)
	assert.Equal(t, hal.DevPort(8), next)
	_, err = d.NextPort(ctx, 0, next)
	assert.ErrorIs(t, err, util.ErrObjectNotFound)

	port, err := d.NameToPort(ctx, 0, "2/0")
	require.NoError(t, err)
	assert.Equal(t, hal.DevPort(4), port)
	port, err = d.FrontPanelToPort(ctx, 0, hal.Handle{Conn: 3})
	require.NoError(t, err)
	assert.Equal(t, hal.DevPort(8), port)
	port, err = d.FrontPanelIndexToPort(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, hal.DevPort(0), port)

	kind, err := d.PortKind(ctx, 0, 448)
	require.NoError(t, err)
	assert.Equal(t, hal.PortKindRecirculation, kind)
	_, err = d.PortKind(ctx, 0, 4)
	assert.ErrorIs(t, err, util.ErrObjectNotFound)

	internal, err := d.PortIsInternal(ctx, 0, 8)
	require.NoError(t, err)
	assert.True(t, internal)

	_, err = d.FirstPort(ctx, 1)
	assert.ErrorIs(t, err, util.ErrObjectNotFound, "one device per switch")
}

func TestDriverCounters(t *testing.T) {
	d := connected(t)
	ctx := testutil.Context(t)
	addr := testutil.RedisAddr()

	testutil.WriteSingleEntry(t, addr, testutil.CountersDB, "COUNTERS", "0", map[string]string{
		hal.CounterNames[0]: "42",
	})
	stats, err := d.PortStats(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), stats[0])

	require.NoError(t, d.PortClearStats(ctx, 0, 0))
	stats, err = d.PortStats(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, make([]uint64, hal.NumCounters), stats)
}

func TestDriverPipeline(t *testing.T) {
	d := connected(t)
	ctx := testutil.Context(t)

	require.NoError(t, d.SetRecirculationEnabled(ctx, 0, 448, true))
	en, err := d.RecirculationEnabled(ctx, 0, 448)
	require.NoError(t, err)
	assert.True(t, en)

	require.NoError(t, d.SetParserPriorityThreshold(ctx, 0, 0, 5))
	th, err := d.ParserPriorityThreshold(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), th)
	assert.ErrorIs(t, d.SetParserPriorityThreshold(ctx, 0, 0, 8), util.ErrInvalidArgument)
}

func TestDriverSubscribeStatus(t *testing.T) {
	d := connected(t)
	ctx := testutil.Context(t)
	addr := testutil.RedisAddr()

	testutil.WriteSingleEntry(t, addr, testutil.StateDB, "PORT_TABLE", "0", map[string]string{"oper_status": "down"})

	ch := make(chan hal.StatusEvent, 4)
	require.NoError(t, d.SubscribeStatus(ctx, 0, ch))

	testutil.WriteSingleEntry(t, addr, testutil.StateDB, "PORT_TABLE", "0", map[string]string{"oper_status": "up"})
	select {
	case ev := <-ch:
		assert.Equal(t, hal.StatusEvent{Dev: 0, Port: 0, Up: true}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no status event")
	}

	testutil.WriteSingleEntry(t, addr, testutil.StateDB, "PORT_TABLE", "0", map[string]string{"oper_status": "up", "ts_id": "1"})
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v for unchanged oper_status", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
