package port

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/portmgr/pkg/audit"
	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/hal/fake"
	"github.com/newtron-network/portmgr/pkg/util"
)

func TestEntryGet_Wildcard(t *testing.T) {
	ctx := context.Background()
	tbl, drv, _ := newTable(t, 2)
	require.NoError(t, drv.PortSetMTU(ctx, 0, 4, 9000, 9100))
	require.NoError(t, drv.PortSetSerdesParams(ctx, 0, 4, hal.SerdesParams{Attn: 1, Pre: 2, Pre2: 3, Post: 4, Post2: 5}))
	drv.SetTimestamp(0, 4, hal.PTPTimestamp{ID: 9, Value: 123456789, Valid: true})
	drv.ResetCalls()

	d, err := tbl.DataAllocate()
	require.NoError(t, err)
	require.NoError(t, tbl.EntryGet(ctx, 0, NewKey(4), d))

	assert.Equal(t, Schema.Len(), d.Len(), "every field filled")
	assert.Equal(t, 1, drv.Count("PortMTU"), "paired fields share one query")
	assert.Equal(t, 1, drv.Count("PortSerdesParams"))
	assert.Equal(t, 1, drv.Count("PortPTPTimestamp"))
	assert.Equal(t, 1, drv.Count("FrontPanelHandle"))

	named := d.Named()
	assert.Equal(t, "BF_SPEED_100G", named["$SPEED"])
	assert.Equal(t, "BF_FEC_TYP_REED_SOLOMON", named["$FEC"])
	assert.Equal(t, "4", named["$N_LANES"])
	assert.Equal(t, "9000", named["$TX_MTU"])
	assert.Equal(t, "9100", named["$RX_MTU"])
	assert.Equal(t, "3", named["$SDS_TX_PRE2"])
	assert.Equal(t, "123456789", named["$TIMESTAMP_1588_VALUE"])
	assert.Equal(t, "true", named["$TIMESTAMP_1588_VALID"])
	assert.Equal(t, "2/0", named["$PORT_NAME"])
	assert.Equal(t, "2", named["$CONN_ID"])
	assert.Equal(t, "true", named["$PORT_VALID"])
}

func TestEntryGet_ActiveSubset(t *testing.T) {
	ctx := context.Background()
	tbl, drv, _ := newTable(t, 1)

	d, err := tbl.DataAllocate(FieldPortEnable, FieldTxPauseEnable)
	require.NoError(t, err)
	require.NoError(t, tbl.EntryGet(ctx, 0, NewKey(0), d))
	assert.Equal(t, []string{"PortKind", "PortIsEnabled", "PortPause"}, drv.Verbs())

	_, err = d.GetU32(FieldTxMTU)
	assert.ErrorIs(t, err, util.ErrInvalidArgument, "inactive fields stay unreadable")
}

func TestEntryGet_Recirculation(t *testing.T) {
	ctx := context.Background()
	tbl, drv, _ := newTable(t, 1)
	require.NoError(t, drv.SetRecirculationEnabled(ctx, 0, fake.RecircBase, true))
	drv.ResetCalls()

	d, err := tbl.DataAllocate()
	require.NoError(t, err)
	require.NoError(t, tbl.EntryGet(ctx, 0, NewKey(fake.RecircBase), d))
	assert.ElementsMatch(t, []string{"PortKind", "ParserPriorityThreshold", "RecirculationEnabled"}, drv.Verbs(),
		"no port hardware is queried")

	en, err := d.GetBool(FieldPortEnable)
	require.NoError(t, err)
	assert.True(t, en)
	up, err := d.GetBool(FieldPortUp)
	require.NoError(t, err)
	assert.True(t, up)
	recirc, err := d.GetBool(FieldRecircEnable)
	require.NoError(t, err)
	assert.True(t, recirc)
	media, err := d.GetString(FieldMediaType)
	require.NoError(t, err)
	assert.Equal(t, "BF_MEDIA_TYPE_UNKNOWN", media)
	name, err := d.GetString(FieldPortName)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestEntryGet_Errors(t *testing.T) {
	ctx := context.Background()
	tbl, _, _ := newTable(t, 1)

	d, err := tbl.DataAllocate()
	require.NoError(t, err)
	assert.ErrorIs(t, tbl.EntryGet(ctx, 0, NewKey(100), d), util.ErrObjectNotFound)
	assert.ErrorIs(t, tbl.EntryGet(ctx, 0, NewKey(0), StatSchema.NewFullData()), util.ErrInvalidArgument)

	noPipe := New(tbl.Driver(), nil)
	defer noPipe.Close()
	p, err := noPipe.DataAllocate(FieldParserPriorityThresh)
	require.NoError(t, err)
	assert.ErrorIs(t, noPipe.EntryGet(ctx, 0, NewKey(0), p), util.ErrNotSupported)
}

func TestReadBack(t *testing.T) {
	ctx := context.Background()
	tbl, _, _ := newTable(t, 1)

	w := data(t, tbl, func(d *field.Data) {
		require.NoError(t, d.SetString(FieldLoopback, "BF_LPBK_PCS_NEAR"))
		require.NoError(t, d.SetU32(FieldTxPFCMap, 0x81))
		require.NoError(t, d.SetU32(FieldRxPFCMap, 0x18))
		require.NoError(t, d.SetU32(FieldPTPTxDelta, 300))
		require.NoError(t, d.SetBool(FieldPortEnable, true))
	})
	require.NoError(t, tbl.EntryMod(ctx, 0, NewKey(0), w))

	r, err := tbl.DataAllocate(w.SetIDs()...)
	require.NoError(t, err)
	require.NoError(t, tbl.EntryGet(ctx, 0, NewKey(0), r))
	assert.Equal(t, w.Values(), r.Values())

	b, err := r.GetBytes(FieldTxPFCMap, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81}, b)
}

func TestEnumeration(t *testing.T) {
	ctx := context.Background()
	tbl, _, _ := newTable(t, 3)

	key := tbl.KeyAllocate()
	first, err := tbl.DataAllocate(FieldPortName)
	require.NoError(t, err)
	require.NoError(t, tbl.EntryGetFirst(ctx, 0, key, first))
	port, err := KeyPort(key)
	require.NoError(t, err)
	assert.Equal(t, hal.DevPort(0), port)

	seen := []hal.DevPort{port}
	for {
		out := make([]Entry, 1)
		n, err := tbl.EntryGetNextN(ctx, 0, key, out)
		if err != nil {
			assert.ErrorIs(t, err, util.ErrObjectNotFound)
			assert.Zero(t, n)
			break
		}
		require.Equal(t, 1, n)
		p, err := KeyPort(out[0].Key)
		require.NoError(t, err)
		seen = append(seen, p)
		key = out[0].Key
	}
	assert.Equal(t, []hal.DevPort{0, 4, 8}, seen, "each port exactly once")

	out := make([]Entry, 8)
	n, err := tbl.EntryGetNextN(ctx, 0, NewKey(0), out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	name, err := out[1].Data.GetString(FieldPortName)
	require.NoError(t, err)
	assert.Equal(t, "3/0", name)

	_, err = tbl.EntryGetNextN(ctx, 0, NewKey(0), nil)
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestEnumeration_Empty(t *testing.T) {
	ctx := context.Background()
	tbl, _, _ := newTable(t, 0)
	d, err := tbl.DataAllocate()
	require.NoError(t, err)
	assert.ErrorIs(t, tbl.EntryGetFirst(ctx, 0, tbl.KeyAllocate(), d), util.ErrObjectNotFound)
	n, err := tbl.UsageGet(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLookupTables(t *testing.T) {
	ctx := context.Background()
	tbl, _, _ := newTable(t, 3)

	byName := tbl.PortStrInfo()
	k := byName.KeyAllocate()
	require.NoError(t, k.SetString(StrInfoName, "2/0"))
	d := byName.DataAllocate()
	require.NoError(t, byName.EntryGet(ctx, 0, k, d))
	port, err := d.GetU32(InfoDataDevPort)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), port)

	byHdl := tbl.PortHdlInfo()
	k = byHdl.KeyAllocate()
	require.NoError(t, k.SetU32(HdlInfoConn, 3))
	pd, err := tbl.DataAllocate(FieldPortName)
	require.NoError(t, err)
	resolved, err := byHdl.Resolve(ctx, 0, k, pd)
	require.NoError(t, err)
	assert.Equal(t, hal.DevPort(8), resolved)
	name, err := pd.GetString(FieldPortName)
	require.NoError(t, err)
	assert.Equal(t, "3/0", name)

	byIdx := tbl.PortFpIdxInfo()
	k = byIdx.KeyAllocate()
	require.NoError(t, k.SetU32(FpIdxInfoIndex, 7))
	assert.ErrorIs(t, byIdx.EntryGet(ctx, 0, k, byIdx.DataAllocate()), util.ErrObjectNotFound)
	assert.ErrorIs(t, byIdx.EntryGet(ctx, 0, byName.KeyAllocate(), byIdx.DataAllocate()), util.ErrInvalidArgument)

	for _, err := range []error{
		byName.EntryAdd(ctx, 0, k, d),
		byName.EntryMod(ctx, 0, k, d),
		byName.EntryDel(ctx, 0, k),
		byName.EntryClear(ctx, 0),
		byName.EntryGetFirst(ctx, 0, k, d),
	} {
		assert.ErrorIs(t, err, util.ErrNotSupported)
	}
	_, err = byName.EntryGetNextN(ctx, 0, k, make([]Entry, 1))
	assert.ErrorIs(t, err, util.ErrNotSupported)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	tbl, drv, log := newTable(t, 2)
	stats := tbl.PortStat()

	vals := make([]uint64, hal.NumCounters)
	for i := range vals {
		vals[i] = uint64(i + 1)
	}
	drv.SetCounters(0, 4, vals)

	id, ok := StatField("FramesTransmittedOK")
	require.True(t, ok)
	_, ok = StatField("Bogus")
	assert.False(t, ok)

	d, err := stats.DataAllocate()
	require.NoError(t, err)
	require.NoError(t, stats.EntryGet(ctx, 0, NewKey(4), d))
	v, err := d.GetU64(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), v)

	key := stats.KeyAllocate()
	require.NoError(t, stats.EntryGetFirst(ctx, 0, key, d))
	out := make([]Entry, 4)
	n, err := stats.EntryGetNextN(ctx, 0, key, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	v, err = out[0].Data.GetU64(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), v)

	bad, err := stats.DataAllocate(id)
	require.NoError(t, err)
	require.NoError(t, bad.SetU64(id, 5))
	assert.ErrorIs(t, stats.EntryMod(ctx, 0, NewKey(4), bad), util.ErrInvalidArgument)

	zero, err := stats.DataAllocate(id)
	require.NoError(t, err)
	require.NoError(t, zero.SetU64(id, 0))
	require.NoError(t, stats.EntryMod(ctx, 0, NewKey(4), zero))
	assert.Equal(t, audit.OpStatsClear, log.last().Operation)
	require.NoError(t, stats.EntryGet(ctx, 0, NewKey(4), d))
	v, err = d.GetU64(id)
	require.NoError(t, err)
	assert.Zero(t, v)

	drv.SetCounters(0, 0, vals)
	drv.SetCounters(0, 4, vals)
	require.NoError(t, stats.EntryClear(ctx, 0))
	assert.Equal(t, 3, drv.Count("PortClearStats"))

	assert.ErrorIs(t, stats.EntryAdd(ctx, 0, key, d), util.ErrNotSupported)
	assert.ErrorIs(t, stats.EntryDel(ctx, 0, key), util.ErrNotSupported)
}

func TestStatusSubscription(t *testing.T) {
	ctx := context.Background()
	tbl, drv, _ := newTable(t, 2)
	drv.AutoLink = true

	type event struct {
		port hal.DevPort
		up   bool
	}
	events := make(chan event, 8)
	cb := func(dev hal.DevID, port hal.DevPort, up bool, cookie any) {
		assert.Equal(t, "cookie", cookie)
		// Callbacks may read the attribute back.
		attr, err := tbl.AttributeGet(ctx, dev)
		assert.NoError(t, err)
		assert.True(t, attr.Enabled)
		events <- event{port, up}
	}

	assert.ErrorIs(t, tbl.AttributeSet(ctx, 0, PortStatusChange{Enabled: true}), util.ErrInvalidArgument)
	require.NoError(t, tbl.AttributeSet(ctx, 0, PortStatusChange{Enabled: true, Callback: cb, Cookie: "cookie"}))
	assert.Equal(t, 1, drv.Count("SubscribeStatus"))

	require.NoError(t, drv.PortEnable(ctx, 0, 4, true))
	select {
	case ev := <-events:
		assert.Equal(t, event{4, true}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}

	require.NoError(t, tbl.AttributeReset(ctx, 0))
	attr, err := tbl.AttributeGet(ctx, 0)
	require.NoError(t, err)
	assert.False(t, attr.Enabled)
	assert.Nil(t, attr.Callback)
	assert.Nil(t, attr.Cookie)

	drv.SetOperState(0, 4, false)
	select {
	case ev := <-events:
		t.Fatalf("callback after reset: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, tbl.AttributeSet(ctx, 0, PortStatusChange{Enabled: true, Callback: cb, Cookie: "cookie"}))
	assert.Equal(t, 1, drv.Count("SubscribeStatus"), "one driver subscription per device")
}

func TestStatusSubscription_NoTornTriple(t *testing.T) {
	ctx := context.Background()
	tbl, drv, _ := newTable(t, 1)

	var mismatches, calls atomic.Int64
	mk := func(i int) PortStatusChange {
		return PortStatusChange{Enabled: true, Cookie: i, Callback: func(_ hal.DevID, _ hal.DevPort, _ bool, cookie any) {
			calls.Add(1)
			if cookie.(int) != i {
				mismatches.Add(1)
			}
		}}
	}
	require.NoError(t, tbl.AttributeSet(ctx, 0, mk(0)))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, tbl.AttributeSet(ctx, 0, mk(w*100+i)))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			drv.SetOperState(0, 0, i%2 == 0)
		}
	}()
	wg.Wait()

	assert.Eventually(t, func() bool { return calls.Load() == 200 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, mismatches.Load())
}

func TestStatusClosed(t *testing.T) {
	ctx := context.Background()
	drv := fake.New()
	tbl := New(drv, drv)
	require.NoError(t, tbl.Close())

	assert.ErrorIs(t, tbl.AttributeSet(ctx, 0, PortStatusChange{}), util.ErrNotConnected)
	_, err := tbl.AttributeGet(ctx, 0)
	assert.ErrorIs(t, err, util.ErrNotConnected)
}
