package value

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRepr(t *testing.T) {
	ascii, _ := NewASCII("hi \"there\"")
	utf, _ := NewUTF8("café")
	buf, _ := NewBuffer([]byte{0xde, 0xad})

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"uint", NewUInt(7), "u7"},
		{"int", NewInt(-7), "-7"},
		{"bool", Bool(true), "true"},
		{"ascii", ascii, `"hi \"there\""`},
		{"utf8", utf, `u"caf\u{e9}"`},
		{"buffer", buf, "0xdead"},
		{"none", None(), "none"},
		{"some", Some(NewUInt(1)), "(some u1)"},
		{"ok", Ok(Bool(true)), "(ok true)"},
		{"err", Err(NewUInt(100)), "(err u100)"},
		{"list", MustList(NewInt(1), NewInt(2)), "(list 1 2)"},
		{"empty list", MustList(), "(list)"},
		{"tuple", MustTuple(TupleField{"b", NewUInt(2)}, TupleField{"a", NewInt(1)}), "{a: 1, b: u2}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestNewListRequiresHomogeneity(t *testing.T) {
	_, err := NewList([]Value{NewInt(1), NewUInt(1)})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	a, _ := NewBuffer([]byte{1, 2})
	b, _ := NewBuffer([]byte{1, 2, 3, 4, 5})
	l, err := NewList([]Value{a, b})
	require.NoError(t, err)
	assert.Equal(t, "(list 2 (buff 5))", l.Type().String())
}

func TestListOfOptionalsWidensInnerType(t *testing.T) {
	l, err := NewList([]Value{None(), Some(NewUInt(3))})
	require.NoError(t, err)
	assert.Equal(t, "(list 2 (optional uint))", l.Type().String())
}

func TestNewTupleRejectsDuplicates(t *testing.T) {
	_, err := NewTuple([]TupleField{{"a", NewInt(1)}, {"a", NewInt(2)}})
	assert.Error(t, err)

	_, err = NewTuple(nil)
	assert.Error(t, err)
}

func TestTupleMergeOverrides(t *testing.T) {
	base := MustTuple(TupleField{"a", NewInt(1)}, TupleField{"b", NewInt(2)})
	patch := MustTuple(TupleField{"b", NewInt(20)}, TupleField{"c", NewInt(30)})
	merged := base.Merge(patch)
	assert.Equal(t, "{a: 1, b: 20, c: 30}", merged.String())
	// base is unchanged
	assert.Equal(t, "{a: 1, b: 2}", base.String())
}

func TestBufferIsImmutable(t *testing.T) {
	raw := []byte{1, 2, 3}
	b, err := NewBuffer(raw)
	require.NoError(t, err)
	raw[0] = 9
	out := b.Bytes()
	out[1] = 9
	assert.Equal(t, "0x010203", b.String())
}

func TestSizeLimits(t *testing.T) {
	_, err := NewBuffer(make([]byte, MaxValueSize+1))
	assert.ErrorIs(t, err, ErrValueTooLarge)

	_, err = NewASCII(strings.Repeat("a", MaxValueSize+1))
	assert.ErrorIs(t, err, ErrValueTooLarge)

	_, err = NewASCII("café")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = NewUTF8(string([]byte{0xff, 0xfe}))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestTypeAdmits(t *testing.T) {
	assert.True(t, BufferType(32).Admits(BufferType(20)))
	assert.False(t, BufferType(20).Admits(BufferType(32)))
	assert.True(t, OptionalType(UIntType).Admits(None().Type()))
	assert.True(t, ResponseType(BoolType, UIntType).Admits(Ok(Bool(true)).Type()))
	assert.False(t, ResponseType(BoolType, UIntType).Admits(Err(NewInt(1)).Type()))
	assert.True(t, TraitType("sip-010").Admits(PrincipalType))
	assert.False(t, IntType.Admits(UIntType))
}

func TestSerializeKnownEncodings(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"uint one", NewUInt(1), "01" + "00000000000000000000000000000001"},
		{"int minus one", NewInt(-1), "00" + "ffffffffffffffffffffffffffffffff"},
		{"true", Bool(true), "03"},
		{"none", None(), "09"},
		{"ok uint", Ok(NewUInt(1)), "07" + "01" + "00000000000000000000000000000001"},
		{"ascii", must(NewASCII("hi")), "0d" + "00000002" + "6869"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := Serialize(tt.v)
			assert.Equal(t, tt.want, hex.EncodeToString(enc))
			assert.Equal(t, len(enc), SerializedSize(tt.v))

			back, err := Deserialize(enc)
			require.NoError(t, err)
			assert.True(t, Equal(tt.v, back))
		})
	}
}

func TestDeserializeNestedValue(t *testing.T) {
	owner := MustPrincipal("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.token")
	v := MustTuple(
		TupleField{"owner", owner},
		TupleField{"amounts", MustList(NewInt(-3), NewInt(4))},
		TupleField{"memo", Some(must(NewBuffer([]byte("x"))))},
	)

	back, err := Deserialize(Serialize(v))
	require.NoError(t, err)
	assert.Equal(t, v.String(), back.String())
	assert.True(t, v.Type().Equal(back.Type()))
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, err := Deserialize([]byte{0x42})
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = Deserialize([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = Deserialize([]byte{0x03, 0x03})
	assert.ErrorIs(t, err, ErrInvalidEncoding, "trailing bytes")
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
