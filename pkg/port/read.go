package port

import (
	"context"
	"fmt"

	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/util"
)

// reader fills one container. Fields that share a driver query are
// fetched once per read.
type reader struct {
	t    *Table
	dev  hal.DevID
	port hal.DevPort
	kind hal.PortKind

	mtu    *pair[uint32]
	pfc    *pair[uint32]
	pause  *pair[bool]
	serdes *hal.SerdesParams
	ts     *hal.PTPTimestamp
	handle *hal.Handle
}

// recircValues are reported for recirculation ports, which have no MAC or
// serdes to query.
var recircValues = map[field.ID]field.Value{
	FieldSpeed:             field.Str(hal.SpeedNone.String()),
	FieldFEC:               field.Str(hal.FECNone.String()),
	FieldLanes:             field.U32(0),
	FieldPortEnable:        field.Bool(true),
	FieldAutoneg:           field.Str(hal.AutonegDefault.String()),
	FieldLoopback:          field.Str(hal.LoopbackNone.String()),
	FieldTxMTU:             field.U32(0),
	FieldRxMTU:             field.U32(0),
	FieldTxPFCMap:          field.U32(0),
	FieldRxPFCMap:          field.U32(0),
	FieldTxPauseEnable:     field.Bool(false),
	FieldRxPauseEnable:     field.Bool(false),
	FieldCutThrough:        field.Bool(false),
	FieldDirection:         field.Str(hal.DirectionDefault.String()),
	FieldMediaType:         field.Str(hal.MediaUnknown.String()),
	FieldSerdesTxAttn:      field.I64(0),
	FieldSerdesTxPre:       field.I64(0),
	FieldSerdesTxPost:      field.I64(0),
	FieldSerdesTxPre2:      field.I64(0),
	FieldSerdesTxPost2:     field.I64(0),
	FieldPTPTxDelta:        field.U32(0),
	FieldPTPRxDelta:        field.U32(0),
	FieldPTPTimestampValue: field.U64(0),
	FieldPTPTimestampID:    field.U32(0),
	FieldPTPTimestampValid: field.Bool(false),
	FieldIsInternal:        field.Bool(true),
	FieldPortUp:            field.Bool(true),
	FieldPortValid:         field.Bool(true),
	FieldPortName:          field.Str(""),
	FieldConnID:            field.U32(0),
	FieldChnlID:            field.U32(0),
}

// EntryGet reads the port named by key into data. Every active field is
// filled; a wildcard container receives every field of the table.
func (t *Table) EntryGet(ctx context.Context, dev hal.DevID, key, data *field.Data) error {
	port, err := KeyPort(key)
	if err != nil {
		return err
	}
	if data == nil || data.Schema() != Schema {
		return util.NewFieldError("get", Schema.Name(), "container belongs to another table", util.ErrInvalidArgument)
	}
	kind, err := t.drv.PortKind(ctx, dev, port)
	if err != nil {
		return err
	}
	r := &reader{t: t, dev: dev, port: port, kind: kind}
	data.Clear()
	for _, id := range data.Active() {
		v, err := r.read(ctx, id)
		if err != nil {
			util.WithPort(uint32(dev), uint32(port)).Debugf("read %d: %v", id, err)
			return err
		}
		if err := data.Set(id, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) read(ctx context.Context, id field.ID) (field.Value, error) {
	// Pipeline settings exist for every kind of port.
	switch id {
	case FieldParserPriorityThresh:
		if r.t.pipe == nil {
			return nil, fmt.Errorf("%w: no pipeline backend", util.ErrNotSupported)
		}
		v, err := r.t.pipe.ParserPriorityThreshold(ctx, r.dev, r.port)
		return field.U32(v), err
	case FieldRecircEnable:
		if r.t.pipe == nil {
			return nil, fmt.Errorf("%w: no pipeline backend", util.ErrNotSupported)
		}
		v, err := r.t.pipe.RecirculationEnabled(ctx, r.dev, r.port)
		return field.Bool(v), err
	}
	if r.kind == hal.PortKindRecirculation {
		v, ok := recircValues[id]
		if !ok {
			return nil, util.NewFieldError("get", Schema.Name(), fmt.Sprintf("no value for field %d", id), util.ErrInvalidArgument)
		}
		return v, nil
	}
	return r.hardware(ctx, id)
}

func (r *reader) hardware(ctx context.Context, id field.ID) (field.Value, error) {
	drv, dev, port := r.t.drv, r.dev, r.port
	switch id {
	case FieldSpeed:
		v, err := drv.PortSpeed(ctx, dev, port)
		return field.Str(v.String()), err
	case FieldFEC:
		v, err := drv.PortFEC(ctx, dev, port)
		return field.Str(v.String()), err
	case FieldLanes:
		v, err := drv.PortLanes(ctx, dev, port)
		return field.U32(v), err
	case FieldPortEnable:
		v, err := drv.PortIsEnabled(ctx, dev, port)
		return field.Bool(v), err
	case FieldAutoneg:
		v, err := drv.PortAutoneg(ctx, dev, port)
		return field.Str(v.String()), err
	case FieldLoopback:
		v, err := drv.PortLoopback(ctx, dev, port)
		return field.Str(v.String()), err
	case FieldTxMTU, FieldRxMTU:
		if r.mtu == nil {
			tx, rx, err := drv.PortMTU(ctx, dev, port)
			if err != nil {
				return nil, err
			}
			r.mtu = &pair[uint32]{tx, rx}
		}
		return field.U32(pick(id == FieldTxMTU, r.mtu)), nil
	case FieldTxPFCMap, FieldRxPFCMap:
		if r.pfc == nil {
			tx, rx, err := drv.PortPFC(ctx, dev, port)
			if err != nil {
				return nil, err
			}
			r.pfc = &pair[uint32]{tx, rx}
		}
		return field.U32(pick(id == FieldTxPFCMap, r.pfc)), nil
	case FieldTxPauseEnable, FieldRxPauseEnable:
		if r.pause == nil {
			tx, rx, err := drv.PortPause(ctx, dev, port)
			if err != nil {
				return nil, err
			}
			r.pause = &pair[bool]{tx, rx}
		}
		return field.Bool(pick(id == FieldTxPauseEnable, r.pause)), nil
	case FieldCutThrough:
		v, err := drv.PortCutThrough(ctx, dev, port)
		return field.Bool(v), err
	case FieldDirection:
		v, err := drv.PortDirection(ctx, dev, port)
		return field.Str(v.String()), err
	case FieldMediaType:
		v, err := drv.PortMediaType(ctx, dev, port)
		return field.Str(v.String()), err
	case FieldSerdesTxAttn, FieldSerdesTxPre, FieldSerdesTxPost, FieldSerdesTxPre2, FieldSerdesTxPost2:
		if r.serdes == nil {
			sp, err := drv.PortSerdesParams(ctx, dev, port)
			if err != nil {
				return nil, err
			}
			r.serdes = &sp
		}
		return field.I64(map[field.ID]int64{
			FieldSerdesTxAttn:  r.serdes.Attn,
			FieldSerdesTxPre:   r.serdes.Pre,
			FieldSerdesTxPost:  r.serdes.Post,
			FieldSerdesTxPre2:  r.serdes.Pre2,
			FieldSerdesTxPost2: r.serdes.Post2,
		}[id]), nil
	case FieldPTPTxDelta:
		v, err := drv.PortPTPTxDelta(ctx, dev, port)
		return field.U32(v), err
	case FieldPTPRxDelta:
		v, err := drv.PortPTPRxDelta(ctx, dev, port)
		return field.U32(v), err
	case FieldPTPTimestampValue, FieldPTPTimestampID, FieldPTPTimestampValid:
		if r.ts == nil {
			ts, err := drv.PortPTPTimestamp(ctx, dev, port)
			if err != nil {
				return nil, err
			}
			r.ts = &ts
		}
		switch id {
		case FieldPTPTimestampValue:
			return field.U64(r.ts.Value), nil
		case FieldPTPTimestampID:
			return field.U32(r.ts.ID), nil
		default:
			return field.Bool(r.ts.Valid), nil
		}
	case FieldIsInternal:
		v, err := drv.PortIsInternal(ctx, dev, port)
		return field.Bool(v), err
	case FieldPortUp:
		v, err := drv.PortOperState(ctx, dev, port)
		return field.Bool(v), err
	case FieldPortValid:
		return field.Bool(true), nil
	case FieldPortName:
		v, err := drv.PortToName(ctx, dev, port)
		return field.Str(v), err
	case FieldConnID, FieldChnlID:
		if r.handle == nil {
			h, err := drv.FrontPanelHandle(ctx, dev, port)
			if err != nil {
				return nil, err
			}
			r.handle = &h
		}
		if id == FieldConnID {
			return field.U32(r.handle.Conn), nil
		}
		return field.U32(r.handle.Chnl), nil
	}
	return nil, util.NewFieldError("get", Schema.Name(), fmt.Sprintf("no reader for field %d", id), util.ErrNotSupported)
}

func pick[T any](tx bool, p *pair[T]) T {
	if tx {
		return p.tx
	}
	return p.rx
}
