package field

import (
	"encoding/binary"
	"fmt"

	"github.com/samber/lo"

	"github.com/newtron-network/portmgr/pkg/util"
)

// Mode selects how reads of never-written fields behave.
type Mode uint8

const (
	// ModeSparse fails reads of fields that were never set.
	ModeSparse Mode = iota
	// ModeFull reads unset fields as their zero value.
	ModeFull
)

// Data holds the values one table operation reads or writes. It is created
// per call and is not safe for concurrent use.
type Data struct {
	schema *Schema
	mode   Mode
	active map[ID]struct{} // nil: every field is active
	values map[ID]Value
}

// NewData allocates a sparse container. An empty active list is a
// wildcard meaning every field of the schema.
func (s *Schema) NewData(active ...ID) (*Data, error) {
	d := &Data{schema: s, mode: ModeSparse}
	if err := d.Reset(active...); err != nil {
		return nil, err
	}
	return d, nil
}

// NewFullData allocates a container with every field active whose unset
// fields read back as zero values.
func (s *Schema) NewFullData() *Data {
	return &Data{schema: s, mode: ModeFull, values: make(map[ID]Value)}
}

// Reset drops every stored value and installs a new active set. The
// container mode is kept.
func (d *Data) Reset(active ...ID) error {
	var set map[ID]struct{}
	if len(active) > 0 {
		set = make(map[ID]struct{}, len(active))
		for _, id := range active {
			if _, ok := d.schema.Descriptor(id); !ok {
				return util.NewFieldError("reset", d.schema.fieldName(id), "unknown to "+d.schema.name, util.ErrInvalidArgument)
			}
			set[id] = struct{}{}
		}
	}
	d.active = set
	d.values = make(map[ID]Value, len(active))
	return nil
}

// Clear drops every stored value and keeps the active set.
func (d *Data) Clear() {
	d.values = make(map[ID]Value, len(d.active))
}

// Schema returns the schema the container was allocated from.
func (d *Data) Schema() *Schema { return d.schema }

// Mode returns the container's population mode.
func (d *Data) Mode() Mode { return d.mode }

// Wildcard reports whether every field is active.
func (d *Data) Wildcard() bool { return d.active == nil }

// IsActive reports whether id may be read or written by this operation.
func (d *Data) IsActive(id ID) bool {
	if _, ok := d.schema.Descriptor(id); !ok {
		return false
	}
	if d.active == nil {
		return true
	}
	_, ok := d.active[id]
	return ok
}

// Active returns the active field IDs in schema order.
func (d *Data) Active() []ID {
	return lo.Filter(d.schema.IDs(), func(id ID, _ int) bool { return d.IsActive(id) })
}

// Has reports whether a value was written for id.
func (d *Data) Has(id ID) bool {
	_, ok := d.values[id]
	return ok
}

// SetIDs returns the IDs holding a value, in schema order.
func (d *Data) SetIDs() []ID {
	return lo.Filter(d.schema.IDs(), func(id ID, _ int) bool { return d.Has(id) })
}

// Len returns the number of stored values.
func (d *Data) Len() int { return len(d.values) }

// check validates id against the schema, the accessor type and the active
// set, in that order.
func (d *Data) check(op string, id ID, t Type) (Descriptor, error) {
	desc, ok := d.schema.Descriptor(id)
	if !ok {
		return desc, util.NewFieldError(op, d.schema.fieldName(id), "unknown to "+d.schema.name, util.ErrInvalidArgument)
	}
	if desc.Type != t {
		return desc, util.NewFieldError(op, desc.Name, fmt.Sprintf("field type is %s, accessor is %s", desc.Type, t), util.ErrNotSupported)
	}
	if !d.IsActive(id) {
		return desc, util.NewFieldError(op, desc.Name, "field is not active", util.ErrInvalidArgument)
	}
	return desc, nil
}

// Set stores v for id after type, active-set and width validation.
func (d *Data) Set(id ID, v Value) error {
	desc, err := d.check("set-"+v.Type().String(), id, v.Type())
	if err != nil {
		return err
	}
	if !fits(desc, v) {
		return util.NewFieldError("set-"+v.Type().String(), desc.Name, fmt.Sprintf("%s exceeds %d-bit width", v, desc.Width), util.ErrInvalidArgument)
	}
	d.values[id] = v
	return nil
}

func (d *Data) SetBool(id ID, v bool) error     { return d.Set(id, Bool(v)) }
func (d *Data) SetU32(id ID, v uint32) error    { return d.Set(id, U32(v)) }
func (d *Data) SetU64(id ID, v uint64) error    { return d.Set(id, U64(v)) }
func (d *Data) SetI64(id ID, v int64) error     { return d.Set(id, I64(v)) }
func (d *Data) SetString(id ID, v string) error { return d.Set(id, Str(v)) }

// SetBytes stores a network-byte-order value for an unsigned or boolean
// field. The value must fit the field's declared width.
func (d *Data) SetBytes(id ID, b []byte) error {
	const op = "set-bytes"
	desc, ok := d.schema.Descriptor(id)
	if !ok {
		return util.NewFieldError(op, d.schema.fieldName(id), "unknown to "+d.schema.name, util.ErrInvalidArgument)
	}
	if desc.Type != TypeBool && desc.Type != TypeU32 && desc.Type != TypeU64 {
		return util.NewFieldError(op, desc.Name, "byte access needs an unsigned or bool field, have "+desc.Type.String(), util.ErrNotSupported)
	}
	if !d.IsActive(id) {
		return util.NewFieldError(op, desc.Name, "field is not active", util.ErrInvalidArgument)
	}
	n, err := fromNetworkBytes(b, desc.Width)
	if err != nil {
		return util.NewFieldError(op, desc.Name, err.Error(), util.ErrInvalidArgument)
	}
	switch desc.Type {
	case TypeBool:
		d.values[id] = Bool(n != 0)
	case TypeU32:
		d.values[id] = U32(n)
	default:
		d.values[id] = U64(n)
	}
	return nil
}

// Get returns the value stored for id.
func (d *Data) Get(id ID) (Value, error) {
	desc, ok := d.schema.Descriptor(id)
	if !ok {
		return nil, util.NewFieldError("get", d.schema.fieldName(id), "unknown to "+d.schema.name, util.ErrInvalidArgument)
	}
	return d.get("get", desc.ID, desc.Type)
}

func (d *Data) get(op string, id ID, t Type) (Value, error) {
	desc, err := d.check(op, id, t)
	if err != nil {
		return nil, err
	}
	v, ok := d.values[id]
	if !ok {
		if d.mode == ModeFull {
			return Zero(t), nil
		}
		return nil, util.NewFieldError(op, desc.Name, "value not set", util.ErrInvalidArgument)
	}
	return v, nil
}

// GetBool returns a bool field.
func (d *Data) GetBool(id ID) (bool, error) {
	v, err := d.get("get-bool", id, TypeBool)
	if err != nil {
		return false, err
	}
	return bool(v.(Bool)), nil
}

// GetU32 returns a u32 field.
func (d *Data) GetU32(id ID) (uint32, error) {
	v, err := d.get("get-u32", id, TypeU32)
	if err != nil {
		return 0, err
	}
	return uint32(v.(U32)), nil
}

// GetU64 returns a u64 field.
func (d *Data) GetU64(id ID) (uint64, error) {
	v, err := d.get("get-u64", id, TypeU64)
	if err != nil {
		return 0, err
	}
	return uint64(v.(U64)), nil
}

// GetI64 returns an i64 field.
func (d *Data) GetI64(id ID) (int64, error) {
	v, err := d.get("get-i64", id, TypeI64)
	if err != nil {
		return 0, err
	}
	return int64(v.(I64)), nil
}

// GetString returns a string field.
func (d *Data) GetString(id ID) (string, error) {
	v, err := d.get("get-string", id, TypeString)
	if err != nil {
		return "", err
	}
	return string(v.(Str)), nil
}

// GetBytes returns an unsigned or boolean field in network byte order,
// padded to size bytes. A size of 0 uses the smallest size that holds the
// declared width.
func (d *Data) GetBytes(id ID, size int) ([]byte, error) {
	const op = "get-bytes"
	desc, ok := d.schema.Descriptor(id)
	if !ok {
		return nil, util.NewFieldError(op, d.schema.fieldName(id), "unknown to "+d.schema.name, util.ErrInvalidArgument)
	}
	if desc.Type != TypeBool && desc.Type != TypeU32 && desc.Type != TypeU64 {
		return nil, util.NewFieldError(op, desc.Name, "byte access needs an unsigned or bool field, have "+desc.Type.String(), util.ErrNotSupported)
	}
	v, err := d.get(op, id, desc.Type)
	if err != nil {
		return nil, err
	}
	var n uint64
	switch x := v.(type) {
	case Bool:
		if x {
			n = 1
		}
	case U32:
		n = uint64(x)
	case U64:
		n = uint64(x)
	}
	if size == 0 {
		size = int(desc.Width+7) / 8
	}
	b, err := toNetworkBytes(n, size)
	if err != nil {
		return nil, util.NewFieldError(op, desc.Name, err.Error(), util.ErrInvalidArgument)
	}
	return b, nil
}

// Values returns the stored values keyed by ID.
func (d *Data) Values() map[ID]Value {
	out := make(map[ID]Value, len(d.values))
	for id, v := range d.values {
		out[id] = v
	}
	return out
}

// Named returns the stored values keyed by field name, for logging and
// audit records.
func (d *Data) Named() map[string]string {
	out := make(map[string]string, len(d.values))
	for id, v := range d.values {
		out[d.schema.fieldName(id)] = v.String()
	}
	return out
}

func fromNetworkBytes(b []byte, width uint8) (uint64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty byte buffer")
	}
	// Leading zero bytes never change the value.
	for len(b) > 8 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) > 8 {
		return 0, fmt.Errorf("%d-byte value exceeds %d-bit width", len(b), width)
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	n := binary.BigEndian.Uint64(buf[:])
	if width < 64 && n >= 1<<width {
		return 0, fmt.Errorf("value %#x exceeds %d-bit width", n, width)
	}
	return n, nil
}

func toNetworkBytes(n uint64, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size %d", size)
	}
	if size < 8 && n >= 1<<(uint(size)*8) {
		return nil, fmt.Errorf("value %#x does not fit in %d bytes", n, size)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	out := make([]byte, size)
	if size >= 8 {
		copy(out[size-8:], buf[:])
	} else {
		copy(out, buf[8-size:])
	}
	return out, nil
}
