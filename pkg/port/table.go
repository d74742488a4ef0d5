// Package port implements the $PORT table on top of a hal.Driver: the
// write path that sequences hardware verbs for a requested port state, the
// read path that fills a field container from driver queries, port
// enumeration, the name/handle/front-panel lookup tables, the statistics
// table and the port status subscription.
package port

import (
	"context"
	"strconv"
	"time"

	"github.com/newtron-network/portmgr/pkg/audit"
	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Table is the $PORT table. Entry verbs are safe for concurrent use; each
// call works on its own containers and issues its own driver calls.
type Table struct {
	drv    hal.Driver
	pipe   hal.Pipeline
	policy ErrorPolicy
	audit  audit.Logger
	user   string
	status *statusOwner
}

// Option configures a Table.
type Option func(*Table)

// WithPolicy sets the field error policy. The default is PolicyWarn.
func WithPolicy(p ErrorPolicy) Option {
	return func(t *Table) { t.policy = p }
}

// WithAudit sends write events to l on behalf of user instead of the
// package default audit logger.
func WithAudit(l audit.Logger, user string) Option {
	return func(t *Table) {
		t.audit = l
		t.user = user
	}
}

// WithUser names the user recorded in audit events.
func WithUser(user string) Option {
	return func(t *Table) { t.user = user }
}

// New returns a table driving drv, with pipeline settings routed to pipe.
// Close releases the status subscription goroutine.
func New(drv hal.Driver, pipe hal.Pipeline, opts ...Option) *Table {
	t := &Table{drv: drv, pipe: pipe, policy: PolicyWarn}
	for _, o := range opts {
		o(t)
	}
	t.status = newStatusOwner(drv)
	return t
}

// Close stops status delivery and cancels driver subscriptions.
func (t *Table) Close() error {
	t.status.close()
	return nil
}

// Policy returns the field error policy in force.
func (t *Table) Policy() ErrorPolicy { return t.policy }

// Driver returns the driver the table programs.
func (t *Table) Driver() hal.Driver { return t.drv }

// NewKey returns a $PORT key for port.
func NewKey(port hal.DevPort) *field.Data {
	k := KeySchema.NewFullData()
	_ = k.SetU32(KeyDevPort, uint32(port))
	return k
}

// KeyPort extracts the device port from a $PORT key.
func KeyPort(key *field.Data) (hal.DevPort, error) {
	if key == nil || key.Schema() != KeySchema {
		return 0, util.NewFieldError("key", "$DEV_PORT", "not a $PORT key", util.ErrInvalidArgument)
	}
	if !key.Has(KeyDevPort) {
		return 0, util.NewFieldError("key", "$DEV_PORT", "key not set", util.ErrInvalidArgument)
	}
	v, err := key.GetU32(KeyDevPort)
	return hal.DevPort(v), err
}

// KeyAllocate returns an empty $PORT key.
func (t *Table) KeyAllocate() *field.Data {
	return KeySchema.NewFullData()
}

// KeyReset clears key for reuse.
func (t *Table) KeyReset(key *field.Data) error {
	if key == nil || key.Schema() != KeySchema {
		return util.NewFieldError("key-reset", "$DEV_PORT", "not a $PORT key", util.ErrInvalidArgument)
	}
	key.Clear()
	return nil
}

// DataAllocate returns a sparse container over the given fields. No
// fields means every field.
func (t *Table) DataAllocate(active ...field.ID) (*field.Data, error) {
	return Schema.NewData(active...)
}

// DataReset clears data and installs a new active field set.
func (t *Table) DataReset(data *field.Data, active ...field.ID) error {
	if data == nil || data.Schema() != Schema {
		return util.NewFieldError("data-reset", Schema.Name(), "container belongs to another table", util.ErrInvalidArgument)
	}
	return data.Reset(active...)
}

// UsageGet returns the number of provisioned ports on dev.
func (t *Table) UsageGet(ctx context.Context, dev hal.DevID) (uint32, error) {
	ports, err := Ports(ctx, t.drv, dev)
	if err != nil {
		return 0, err
	}
	return uint32(len(ports)), nil
}

// record writes an audit event for one write operation.
func (t *Table) record(op string, dev hal.DevID, port *hal.DevPort, fields map[string]string, skipped []string, start time.Time, err error) {
	ev := audit.NewEvent(t.user, strconv.FormatUint(uint64(dev), 10), op).
		WithFields(fields).
		WithSkipped(skipped).
		WithResult(err).
		WithDuration(time.Since(start))
	if port != nil {
		ev.WithPort(strconv.FormatUint(uint64(*port), 10))
	}
	var logErr error
	if t.audit != nil {
		logErr = t.audit.Log(ev)
	} else {
		logErr = audit.Log(ev)
	}
	if logErr != nil {
		util.Warnf("audit: %v", logErr)
	}
}
