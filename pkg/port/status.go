package port

import (
	"context"
	"fmt"
	"sync"

	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// StatusCallback receives a link transition together with the cookie
// registered alongside it.
type StatusCallback func(dev hal.DevID, port hal.DevPort, up bool, cookie any)

// PortStatusChange is the port status notification attribute of the
// table. The zero value means no subscription.
type PortStatusChange struct {
	Enabled  bool
	Callback StatusCallback
	Cookie   any
}

func (a PortStatusChange) isZero() bool {
	return !a.Enabled && a.Callback == nil && a.Cookie == nil
}

type setRequest struct {
	dev   hal.DevID
	attr  PortStatusChange
	reply chan error
}

type getRequest struct {
	dev   hal.DevID
	reply chan PortStatusChange
}

type delivery struct {
	attr PortStatusChange
	ev   hal.StatusEvent
}

// statusOwner is the only holder of the subscription attributes. Requests
// and driver events are serialized through its loop, and callbacks run on
// a separate goroutine so they may call back into the table.
type statusOwner struct {
	drv      hal.PortEvents
	set      chan setRequest
	get      chan getRequest
	events   chan hal.StatusEvent
	dispatch chan delivery
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newStatusOwner(drv hal.PortEvents) *statusOwner {
	ctx, cancel := context.WithCancel(context.Background())
	o := &statusOwner{
		drv:      drv,
		set:      make(chan setRequest),
		get:      make(chan getRequest),
		events:   make(chan hal.StatusEvent, 64),
		dispatch: make(chan delivery),
		ctx:      ctx,
		cancel:   cancel,
	}
	o.wg.Add(2)
	go o.loop()
	go o.deliver()
	return o
}

func (o *statusOwner) loop() {
	defer o.wg.Done()
	attrs := make(map[hal.DevID]PortStatusChange)
	subscribed := make(map[hal.DevID]bool)
	var pending []delivery

	for {
		var out chan delivery
		var next delivery
		if len(pending) > 0 {
			out, next = o.dispatch, pending[0]
		}
		select {
		case <-o.ctx.Done():
			return
		case r := <-o.set:
			if r.attr.Enabled && !subscribed[r.dev] {
				if err := o.drv.SubscribeStatus(o.ctx, r.dev, o.events); err != nil {
					r.reply <- err
					continue
				}
				subscribed[r.dev] = true
			}
			if r.attr.isZero() {
				delete(attrs, r.dev)
			} else {
				attrs[r.dev] = r.attr
			}
			r.reply <- nil
		case r := <-o.get:
			r.reply <- attrs[r.dev]
		case ev := <-o.events:
			a := attrs[ev.Dev]
			if a.Enabled && a.Callback != nil {
				pending = append(pending, delivery{attr: a, ev: ev})
			}
		case out <- next:
			pending = pending[1:]
		}
	}
}

func (o *statusOwner) deliver() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case d := <-o.dispatch:
			d.attr.Callback(d.ev.Dev, d.ev.Port, d.ev.Up, d.attr.Cookie)
		}
	}
}

func (o *statusOwner) close() {
	o.cancel()
	o.wg.Wait()
}

var errClosed = fmt.Errorf("%w: port table closed", util.ErrNotConnected)

func (o *statusOwner) store(ctx context.Context, dev hal.DevID, attr PortStatusChange) error {
	r := setRequest{dev: dev, attr: attr, reply: make(chan error, 1)}
	select {
	case o.set <- r:
	case <-o.ctx.Done():
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-r.reply
}

func (o *statusOwner) load(ctx context.Context, dev hal.DevID) (PortStatusChange, error) {
	r := getRequest{dev: dev, reply: make(chan PortStatusChange, 1)}
	select {
	case o.get <- r:
	case <-o.ctx.Done():
		return PortStatusChange{}, errClosed
	case <-ctx.Done():
		return PortStatusChange{}, ctx.Err()
	}
	return <-r.reply, nil
}

// AttributeSet installs the port status notification attribute for dev.
// The callback runs on a goroutine owned by the table and may call any
// table method except Close. Setting the zero value clears it.
func (t *Table) AttributeSet(ctx context.Context, dev hal.DevID, attr PortStatusChange) error {
	if attr.Enabled && attr.Callback == nil {
		return util.NewFieldError("attribute-set", "port-status-change", "enabled without a callback", util.ErrInvalidArgument)
	}
	util.WithDevice(uint32(dev)).Debugf("port status notification enabled=%t", attr.Enabled)
	return t.status.store(ctx, dev, attr)
}

// AttributeGet returns the port status notification attribute for dev.
func (t *Table) AttributeGet(ctx context.Context, dev hal.DevID) (PortStatusChange, error) {
	return t.status.load(ctx, dev)
}

// AttributeReset clears the enable flag, callback and cookie for dev.
func (t *Table) AttributeReset(ctx context.Context, dev hal.DevID) error {
	return t.status.store(ctx, dev, PortStatusChange{})
}
