package port

import (
	"context"

	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Key and data fields of the lookup tables.
const (
	StrInfoName     field.ID = 1
	HdlInfoConn     field.ID = 1
	HdlInfoChnl     field.ID = 2
	FpIdxInfoIndex  field.ID = 1
	InfoDataDevPort field.ID = 1
)

var (
	StrInfoKeySchema = field.MustSchema("$PORT_STR_INFO.key",
		field.Descriptor{ID: StrInfoName, Name: "$PORT_NAME", Type: field.TypeString},
	)
	HdlInfoKeySchema = field.MustSchema("$PORT_HDL_INFO.key",
		field.Descriptor{ID: HdlInfoConn, Name: "$CONN_ID", Type: field.TypeU32},
		field.Descriptor{ID: HdlInfoChnl, Name: "$CHNL_ID", Type: field.TypeU32},
	)
	FpIdxInfoKeySchema = field.MustSchema("$PORT_FP_IDX_INFO.key",
		field.Descriptor{ID: FpIdxInfoIndex, Name: "$FP_IDX", Type: field.TypeU32},
	)
	// InfoDataSchema is the data of every lookup table.
	InfoDataSchema = field.MustSchema("$PORT_INFO",
		field.Descriptor{ID: InfoDataDevPort, Name: "$DEV_PORT", Type: field.TypeU32},
	)
)

// Lookup is a read-only table translating one port identity into a
// device port. Only EntryGet is supported.
type Lookup struct {
	t       *Table
	schema  *field.Schema
	resolve func(ctx context.Context, dev hal.DevID, key *field.Data) (hal.DevPort, error)
}

// PortStrInfo maps port names such as "1/0" to device ports.
func (t *Table) PortStrInfo() *Lookup {
	return &Lookup{t: t, schema: StrInfoKeySchema, resolve: func(ctx context.Context, dev hal.DevID, key *field.Data) (hal.DevPort, error) {
		name, err := key.GetString(StrInfoName)
		if err != nil {
			return 0, err
		}
		return t.drv.NameToPort(ctx, dev, name)
	}}
}

// PortHdlInfo maps front-panel connector/channel pairs to device ports.
func (t *Table) PortHdlInfo() *Lookup {
	return &Lookup{t: t, schema: HdlInfoKeySchema, resolve: func(ctx context.Context, dev hal.DevID, key *field.Data) (hal.DevPort, error) {
		conn, err := key.GetU32(HdlInfoConn)
		if err != nil {
			return 0, err
		}
		chnl, err := key.GetU32(HdlInfoChnl)
		if err != nil {
			return 0, err
		}
		return t.drv.FrontPanelToPort(ctx, dev, hal.Handle{Conn: conn, Chnl: chnl})
	}}
}

// PortFpIdxInfo maps front-panel indexes to device ports.
func (t *Table) PortFpIdxInfo() *Lookup {
	return &Lookup{t: t, schema: FpIdxInfoKeySchema, resolve: func(ctx context.Context, dev hal.DevID, key *field.Data) (hal.DevPort, error) {
		idx, err := key.GetU32(FpIdxInfoIndex)
		if err != nil {
			return 0, err
		}
		return t.drv.FrontPanelIndexToPort(ctx, dev, idx)
	}}
}

// Name returns the table name.
func (l *Lookup) Name() string { return l.schema.Name() }

// KeyAllocate returns an empty key of this lookup table.
func (l *Lookup) KeyAllocate() *field.Data { return l.schema.NewFullData() }

// DataAllocate returns a container for the resolved device port.
func (l *Lookup) DataAllocate() *field.Data { return InfoDataSchema.NewFullData() }

func (l *Lookup) port(ctx context.Context, dev hal.DevID, key *field.Data) (hal.DevPort, error) {
	if key == nil || key.Schema() != l.schema {
		return 0, util.NewFieldError("get", l.schema.Name(), "key belongs to another table", util.ErrInvalidArgument)
	}
	return l.resolve(ctx, dev, key)
}

// EntryGet stores the device port identified by key in data.
func (l *Lookup) EntryGet(ctx context.Context, dev hal.DevID, key, data *field.Data) error {
	if data == nil || data.Schema() != InfoDataSchema {
		return util.NewFieldError("get", InfoDataSchema.Name(), "container belongs to another table", util.ErrInvalidArgument)
	}
	port, err := l.port(ctx, dev, key)
	if err != nil {
		return err
	}
	return data.SetU32(InfoDataDevPort, uint32(port))
}

// Resolve reads the $PORT entry of the port identified by key into
// portData.
func (l *Lookup) Resolve(ctx context.Context, dev hal.DevID, key, portData *field.Data) (hal.DevPort, error) {
	port, err := l.port(ctx, dev, key)
	if err != nil {
		return 0, err
	}
	return port, l.t.EntryGet(ctx, dev, NewKey(port), portData)
}

func (l *Lookup) unsupported(op string) error {
	return util.NewFieldError(op, l.schema.Name(), "lookup tables are read-only", util.ErrNotSupported)
}

func (l *Lookup) EntryAdd(context.Context, hal.DevID, *field.Data, *field.Data) error {
	return l.unsupported("add")
}

func (l *Lookup) EntryMod(context.Context, hal.DevID, *field.Data, *field.Data) error {
	return l.unsupported("modify")
}

func (l *Lookup) EntryDel(context.Context, hal.DevID, *field.Data) error {
	return l.unsupported("delete")
}

func (l *Lookup) EntryClear(context.Context, hal.DevID) error {
	return l.unsupported("clear")
}

func (l *Lookup) EntryGetFirst(context.Context, hal.DevID, *field.Data, *field.Data) error {
	return l.unsupported("get-first")
}

func (l *Lookup) EntryGetNextN(context.Context, hal.DevID, *field.Data, []Entry) (int, error) {
	return 0, l.unsupported("get-next-n")
}
