package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/portmgr/pkg/util"
)

const (
	fEnable ID = iota + 1
	fMTU
	fCounter
	fAttn
	fLabel
	fThresh
)

var testSchema = MustSchema("test",
	Descriptor{ID: fEnable, Name: "$ENABLE", Type: TypeBool},
	Descriptor{ID: fMTU, Name: "$MTU", Type: TypeU32, Width: 16},
	Descriptor{ID: fCounter, Name: "$COUNTER", Type: TypeU64},
	Descriptor{ID: fAttn, Name: "$ATTN", Type: TypeI64, Width: 8},
	Descriptor{ID: fLabel, Name: "$LABEL", Type: TypeString},
	Descriptor{ID: fThresh, Name: "$THRESH", Type: TypeU32, Width: 3},
)

func TestNewSchema_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		descs []Descriptor
	}{
		{"zero id", []Descriptor{{ID: 0, Name: "a", Type: TypeBool}}},
		{"duplicate id", []Descriptor{{ID: 1, Name: "a", Type: TypeBool}, {ID: 1, Name: "b", Type: TypeBool}}},
		{"duplicate name", []Descriptor{{ID: 1, Name: "$A", Type: TypeBool}, {ID: 2, Name: "a", Type: TypeBool}}},
		{"width too large", []Descriptor{{ID: 1, Name: "a", Type: TypeU32, Width: 40}}},
		{"unknown type", []Descriptor{{ID: 1, Name: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema("bad", tt.descs...)
			assert.Error(t, err)
		})
	}
}

func TestSchema_Lookup(t *testing.T) {
	d, ok := testSchema.Lookup("mtu")
	require.True(t, ok)
	assert.Equal(t, fMTU, d.ID)
	assert.Equal(t, uint8(16), d.Width)

	d, ok = testSchema.Lookup("$COUNTER")
	require.True(t, ok)
	assert.Equal(t, uint8(64), d.Width, "width defaults to the type's natural width")

	_, ok = testSchema.Lookup("nope")
	assert.False(t, ok)

	ids, err := testSchema.IDsByName("enable", "$LABEL")
	require.NoError(t, err)
	assert.Equal(t, []ID{fEnable, fLabel}, ids)

	_, err = testSchema.IDsByName("enable", "bogus")
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestData_TypeMismatchNotSupported(t *testing.T) {
	setters := map[Type]func(d *Data, id ID) error{
		TypeBool:   func(d *Data, id ID) error { return d.SetBool(id, true) },
		TypeU32:    func(d *Data, id ID) error { return d.SetU32(id, 1) },
		TypeU64:    func(d *Data, id ID) error { return d.SetU64(id, 1) },
		TypeI64:    func(d *Data, id ID) error { return d.SetI64(id, 1) },
		TypeString: func(d *Data, id ID) error { return d.SetString(id, "x") },
	}

	for _, desc := range testSchema.Descriptors() {
		for typ, set := range setters {
			if typ == desc.Type {
				continue
			}
			d, err := testSchema.NewData()
			require.NoError(t, err)

			err = set(d, desc.ID)
			assert.ErrorIs(t, err, util.ErrNotSupported, "%s setter on %s", typ, desc.Name)
			assert.False(t, d.Has(desc.ID), "rejected write must not store a value")
		}
	}
}

func TestData_InactiveFieldInvalid(t *testing.T) {
	d, err := testSchema.NewData(fEnable, fMTU)
	require.NoError(t, err)

	assert.ErrorIs(t, d.SetU64(fCounter, 5), util.ErrInvalidArgument)
	assert.ErrorIs(t, d.SetString(fLabel, "x"), util.ErrInvalidArgument)
	_, err = d.GetString(fLabel)
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	assert.ErrorIs(t, d.SetBytes(fThresh, []byte{1}), util.ErrInvalidArgument)

	require.NoError(t, d.SetU32(fMTU, 1500))
	assert.Equal(t, []ID{fEnable, fMTU}, d.Active())
	assert.False(t, d.Wildcard())
}

func TestData_UnknownFieldInvalid(t *testing.T) {
	d, err := testSchema.NewData()
	require.NoError(t, err)

	assert.ErrorIs(t, d.SetBool(99, true), util.ErrInvalidArgument)
	_, err = d.Get(99)
	assert.ErrorIs(t, err, util.ErrInvalidArgument)

	_, err = testSchema.NewData(fEnable, 99)
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestData_RoundTrip(t *testing.T) {
	d, err := testSchema.NewData()
	require.NoError(t, err)

	for _, v := range []uint32{0, 1, 1500, 9216, 1<<16 - 1} {
		require.NoError(t, d.SetU32(fMTU, v))
		got, err := d.GetU32(fMTU)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	for _, v := range []int64{-128, -1, 0, 5, 127} {
		require.NoError(t, d.SetI64(fAttn, v))
		got, err := d.GetI64(fAttn)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	for _, v := range []uint64{0, 1, 1 << 63} {
		require.NoError(t, d.SetU64(fCounter, v))
		got, err := d.GetU64(fCounter)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	require.NoError(t, d.SetBool(fEnable, true))
	b, err := d.GetBool(fEnable)
	require.NoError(t, err)
	assert.True(t, b)

	require.NoError(t, d.SetString(fLabel, "BF_SPEED_100G"))
	s, err := d.GetString(fLabel)
	require.NoError(t, err)
	assert.Equal(t, "BF_SPEED_100G", s)
}

func TestData_WidthBounds(t *testing.T) {
	d, err := testSchema.NewData()
	require.NoError(t, err)

	assert.ErrorIs(t, d.SetU32(fMTU, 1<<16), util.ErrInvalidArgument)
	assert.ErrorIs(t, d.SetU32(fThresh, 8), util.ErrInvalidArgument)
	assert.ErrorIs(t, d.SetI64(fAttn, 128), util.ErrInvalidArgument)
	assert.ErrorIs(t, d.SetI64(fAttn, -129), util.ErrInvalidArgument)
	assert.False(t, d.Has(fMTU))
}

func TestData_Bytes(t *testing.T) {
	d, err := testSchema.NewData()
	require.NoError(t, err)

	t.Run("round trip in network order", func(t *testing.T) {
		require.NoError(t, d.SetBytes(fMTU, []byte{0x23, 0x28}))
		v, err := d.GetU32(fMTU)
		require.NoError(t, err)
		assert.Equal(t, uint32(9000), v)

		b, err := d.GetBytes(fMTU, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x23, 0x28}, b)

		b, err = d.GetBytes(fMTU, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0x23, 0x28}, b)
	})

	t.Run("every value within width", func(t *testing.T) {
		for v := 0; v < 8; v++ {
			require.NoError(t, d.SetBytes(fThresh, []byte{byte(v)}))
			b, err := d.GetBytes(fThresh, 1)
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(v)}, b)
		}
	})

	t.Run("beyond width rejected", func(t *testing.T) {
		require.NoError(t, d.SetU32(fThresh, 2))
		assert.ErrorIs(t, d.SetBytes(fThresh, []byte{8}), util.ErrInvalidArgument)
		assert.ErrorIs(t, d.SetBytes(fMTU, []byte{0x01, 0x00, 0x00}), util.ErrInvalidArgument)
		require.NoError(t, d.SetBytes(fCounter, make([]byte, 9)), "leading zero bytes are ignored")
		assert.ErrorIs(t, d.SetBytes(fCounter, append([]byte{1}, make([]byte, 8)...)), util.ErrInvalidArgument)

		v, err := d.GetU32(fThresh)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), v, "rejected write keeps the previous value")
	})

	t.Run("bool", func(t *testing.T) {
		require.NoError(t, d.SetBytes(fEnable, []byte{1}))
		v, err := d.GetBool(fEnable)
		require.NoError(t, err)
		assert.True(t, v)
		assert.ErrorIs(t, d.SetBytes(fEnable, []byte{2}), util.ErrInvalidArgument)
	})

	t.Run("signed and string fields", func(t *testing.T) {
		assert.ErrorIs(t, d.SetBytes(fAttn, []byte{1}), util.ErrNotSupported)
		assert.ErrorIs(t, d.SetBytes(fLabel, []byte{1}), util.ErrNotSupported)
		_, err := d.GetBytes(fLabel, 0)
		assert.ErrorIs(t, err, util.ErrNotSupported)
	})

	t.Run("undersized output", func(t *testing.T) {
		require.NoError(t, d.SetU32(fMTU, 9000))
		_, err := d.GetBytes(fMTU, 1)
		assert.ErrorIs(t, err, util.ErrInvalidArgument)
	})

	t.Run("empty buffer", func(t *testing.T) {
		assert.ErrorIs(t, d.SetBytes(fMTU, nil), util.ErrInvalidArgument)
	})
}

func TestData_SparseVersusFull(t *testing.T) {
	sparse, err := testSchema.NewData()
	require.NoError(t, err)
	_, err = sparse.GetU32(fMTU)
	assert.ErrorIs(t, err, util.ErrInvalidArgument, "sparse read of unset field fails")

	full := testSchema.NewFullData()
	v, err := full.GetU32(fMTU)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
	s, err := full.GetString(fLabel)
	require.NoError(t, err)
	assert.Empty(t, s)
	assert.Equal(t, ModeFull, full.Mode())
}

func TestData_ResetIdempotent(t *testing.T) {
	populate := func(d *Data) {
		require.NoError(t, d.SetBool(fEnable, true))
		require.NoError(t, d.SetU32(fMTU, 9000))
		require.NoError(t, d.SetString(fLabel, "x"))
	}
	active := []ID{fEnable, fMTU, fLabel}

	fresh, err := testSchema.NewData(active...)
	require.NoError(t, err)
	populate(fresh)

	reused, err := testSchema.NewData(fCounter)
	require.NoError(t, err)
	require.NoError(t, reused.SetU64(fCounter, 42))
	require.NoError(t, reused.Reset(active...))
	assert.False(t, reused.Has(fCounter))
	populate(reused)

	for _, id := range active {
		a, errA := fresh.Get(id)
		b, errB := reused.Get(id)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b)
	}
	assert.Equal(t, fresh.Active(), reused.Active())
	assert.Equal(t, fresh.Values(), reused.Values())

	require.NoError(t, reused.Reset())
	assert.True(t, reused.Wildcard())
	assert.Equal(t, 0, reused.Len())
}

func TestData_NamedAndSetIDs(t *testing.T) {
	d, err := testSchema.NewData()
	require.NoError(t, err)
	require.NoError(t, d.SetString(fLabel, "a"))
	require.NoError(t, d.SetBool(fEnable, false))

	assert.Equal(t, []ID{fEnable, fLabel}, d.SetIDs())
	assert.Equal(t, map[string]string{"$ENABLE": "false", "$LABEL": "a"}, d.Named())
}

func TestParseValue(t *testing.T) {
	mtu, _ := testSchema.Descriptor(fMTU)
	attn, _ := testSchema.Descriptor(fAttn)
	en, _ := testSchema.Descriptor(fEnable)
	label, _ := testSchema.Descriptor(fLabel)

	v, err := ParseValue(mtu, "9000")
	require.NoError(t, err)
	assert.Equal(t, U32(9000), v)

	v, err = ParseValue(mtu, "0x2328")
	require.NoError(t, err)
	assert.Equal(t, U32(9000), v)

	_, err = ParseValue(mtu, "70000")
	assert.ErrorIs(t, err, util.ErrInvalidArgument)

	v, err = ParseValue(attn, "-3")
	require.NoError(t, err)
	assert.Equal(t, I64(-3), v)

	v, err = ParseValue(en, "up")
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	_, err = ParseValue(en, "maybe")
	assert.ErrorIs(t, err, util.ErrInvalidArgument)

	v, err = ParseValue(label, " BF_FEC_TYP_NONE ")
	require.NoError(t, err)
	assert.Equal(t, Str("BF_FEC_TYP_NONE"), v)
}
