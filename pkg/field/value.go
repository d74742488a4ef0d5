package field

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/newtron-network/portmgr/pkg/util"
)

// Value is a typed field value. The set of implementations is closed:
// Bool, U32, U64, I64 and Str.
type Value interface {
	Type() Type
	String() string
	isValue()
}

type (
	Bool bool
	U32  uint32
	U64  uint64
	I64  int64
	Str  string
)

func (Bool) Type() Type { return TypeBool }
func (U32) Type() Type  { return TypeU32 }
func (U64) Type() Type  { return TypeU64 }
func (I64) Type() Type  { return TypeI64 }
func (Str) Type() Type  { return TypeString }

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }
func (v U32) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v U64) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v I64) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v Str) String() string  { return string(v) }

func (Bool) isValue() {}
func (U32) isValue()  {}
func (U64) isValue()  {}
func (I64) isValue()  {}
func (Str) isValue()  {}

// Zero returns the zero value of type t.
func Zero(t Type) Value {
	switch t {
	case TypeBool:
		return Bool(false)
	case TypeU32:
		return U32(0)
	case TypeU64:
		return U64(0)
	case TypeI64:
		return I64(0)
	default:
		return Str("")
	}
}

// fits reports whether v is representable in the descriptor's width.
func fits(d Descriptor, v Value) bool {
	switch x := v.(type) {
	case U32:
		return d.Width >= 32 || uint64(x) < 1<<d.Width
	case U64:
		return d.Width >= 64 || uint64(x) < 1<<d.Width
	case I64:
		if d.Width >= 64 {
			return true
		}
		lim := int64(1) << (d.Width - 1)
		return int64(x) >= -lim && int64(x) < lim
	}
	return true
}

// ParseValue converts text into a value of the descriptor's type, applying
// the width bound. Used by the command line and by profile files.
func ParseValue(d Descriptor, text string) (Value, error) {
	text = strings.TrimSpace(text)
	var v Value
	switch d.Type {
	case TypeBool:
		switch strings.ToLower(text) {
		case "true", "1", "yes", "on", "up", "enable", "enabled":
			v = Bool(true)
		case "false", "0", "no", "off", "down", "disable", "disabled":
			v = Bool(false)
		default:
			return nil, util.NewFieldError("parse", d.Name, fmt.Sprintf("%q is not a boolean", text), util.ErrInvalidArgument)
		}
	case TypeU32:
		n, err := strconv.ParseUint(text, 0, 32)
		if err != nil {
			return nil, util.NewFieldError("parse", d.Name, err.Error(), util.ErrInvalidArgument)
		}
		v = U32(n)
	case TypeU64:
		n, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return nil, util.NewFieldError("parse", d.Name, err.Error(), util.ErrInvalidArgument)
		}
		v = U64(n)
	case TypeI64:
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, util.NewFieldError("parse", d.Name, err.Error(), util.ErrInvalidArgument)
		}
		v = I64(n)
	default:
		v = Str(text)
	}
	if !fits(d, v) {
		return nil, util.NewFieldError("parse", d.Name, fmt.Sprintf("%s exceeds %d-bit width", text, d.Width), util.ErrInvalidArgument)
	}
	return v, nil
}
