package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

func TestIteration(t *testing.T) {
	ctx := context.Background()
	d := New()
	d.Populate(0, 3)

	var got []hal.DevPort
	port, err := d.FirstPort(ctx, 0)
	for err == nil {
		got = append(got, port)
		port, err = d.NextPort(ctx, 0, port)
	}
	assert.ErrorIs(t, err, util.ErrObjectNotFound)
	assert.Equal(t, []hal.DevPort{0, 4, 8}, got)

	_, err = d.FirstPort(ctx, 9)
	assert.ErrorIs(t, err, util.ErrObjectNotFound)
}

func TestPortKind(t *testing.T) {
	ctx := context.Background()
	d := New()
	d.Populate(0, 1)
	d.AddPlatformPort(0, 100, "9/0", hal.Handle{Conn: 9}, 8)

	k, err := d.PortKind(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, hal.PortKindNormal, k)

	k, err = d.PortKind(ctx, 0, RecircBase)
	require.NoError(t, err)
	assert.Equal(t, hal.PortKindRecirculation, k)

	_, err = d.PortKind(ctx, 0, 100)
	assert.ErrorIs(t, err, util.ErrObjectNotFound, "inventory port that was never added")

	d.SetInternal(0, 0, true)
	internal, err := d.PortIsInternal(ctx, 0, 0)
	require.NoError(t, err)
	assert.True(t, internal)
}

func TestAddResetsConfig(t *testing.T) {
	ctx := context.Background()
	d := New()
	d.Populate(0, 1)

	require.NoError(t, d.PortSetAutoneg(ctx, 0, 0, hal.AutonegForceDisable))
	require.NoError(t, d.PortEnable(ctx, 0, 0, true))

	assert.ErrorIs(t, d.PortDeleteWithLanes(ctx, 0, 0, 2), util.ErrInvalidArgument, "wrong lane count")
	require.NoError(t, d.PortDeleteWithLanes(ctx, 0, 0, 4))
	require.NoError(t, d.PortAddWithLanes(ctx, 0, 0, hal.Speed25G, 1, hal.FECNone))

	an, err := d.PortAutoneg(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, hal.AutonegDefault, an)
	en, err := d.PortIsEnabled(ctx, 0, 0)
	require.NoError(t, err)
	assert.False(t, en)

	assert.ErrorIs(t, d.PortAddWithLanes(ctx, 0, 0, hal.Speed25G, 1, hal.FECNone), util.ErrInvalidArgument, "already added")
}

func TestFailOn(t *testing.T) {
	ctx := context.Background()
	d := New()
	d.Populate(0, 1)
	boom := errors.New("boom")

	d.FailOn("PortSetLoopback", boom)
	assert.ErrorIs(t, d.PortSetLoopback(ctx, 0, 0, hal.LoopbackMACNear), boom)
	assert.Equal(t, 1, d.Count("PortSetLoopback"), "failed calls are still recorded")

	d.FailOn("PortSetLoopback", nil)
	assert.NoError(t, d.PortSetLoopback(ctx, 0, 0, hal.LoopbackMACNear))
}

func TestSubscribeStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := New()
	d.Populate(0, 2)
	d.AutoLink = true

	ch := make(chan hal.StatusEvent, 4)
	require.NoError(t, d.SubscribeStatus(ctx, 0, ch))

	require.NoError(t, d.PortEnable(ctx, 0, 4, true))
	select {
	case ev := <-ch:
		assert.Equal(t, hal.StatusEvent{Dev: 0, Port: 4, Up: true}, ev)
	case <-time.After(time.Second):
		t.Fatal("no status event")
	}

	d.EmitStatus(hal.StatusEvent{Dev: 1, Port: 4})
	assert.Empty(t, ch, "events for other devices are not delivered")

	cancel()
	assert.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.subs) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPipelineOnRecircPort(t *testing.T) {
	ctx := context.Background()
	d := New()
	d.Populate(0, 1)

	require.NoError(t, d.SetRecirculationEnabled(ctx, 0, RecircBase, true))
	en, err := d.RecirculationEnabled(ctx, 0, RecircBase)
	require.NoError(t, err)
	assert.True(t, en)

	assert.ErrorIs(t, d.SetParserPriorityThreshold(ctx, 0, 0, 8), util.ErrInvalidArgument)
	_, err = d.ParserPriorityThreshold(ctx, 0, 999)
	assert.ErrorIs(t, err, util.ErrObjectNotFound)
}
