package launch

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestScalarEncode(t *testing.T) {
	testCases := []struct {
		name     string
		scalar   Scalar
		expected []byte
		render   string
	}{
		{"int32", Int32(-2), []byte{0xfe, 0xff, 0xff, 0xff}, "-2"},
		{"uint32", Uint32(132), []byte{132, 0, 0, 0}, "132"},
		{"int64", Int64(1 << 40), []byte{0, 0, 0, 0, 0, 1, 0, 0}, "1099511627776"},
		{"uint64", Uint64(math.MaxUint64), []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, "18446744073709551615"},
		{"float32", Float32(1), []byte{0, 0, 0x80, 0x3f}, "1"},
		{"float64", Float64(0.5), []byte{0, 0, 0, 0, 0, 0, 0xe0, 0x3f}, "0.5"},
		{"float16", Float16(float16.Fromfloat32(1)), []byte{0, 0x3c}, "1"},
		{"bool", Bool(true), []byte{1}, "true"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.scalar.Encode())
			assert.Equal(t, tc.render, tc.scalar.Render())
			assert.Equal(t, KindScalar, tc.scalar.Kind())
		})
	}
}

func TestScalarConversions(t *testing.T) {
	v, ok := Int32(7).Uint()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), v)

	_, ok = Int32(-7).Uint()
	assert.False(t, ok)

	_, ok = Float32(1).Uint()
	assert.False(t, ok)

	i, ok := Uint32(9).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(9), i)

	_, ok = Uint64(math.MaxUint64).Int()
	assert.False(t, ok)

	assert.Equal(t, 2.5, Float32(2.5).Float())
	assert.Equal(t, float64(3), Int64(3).Float())
	assert.Equal(t, float64(math.MaxUint64), Uint64(math.MaxUint64).Float())
	assert.Equal(t, dtypes.Float16, Float16(float16.Fromfloat32(2)).DType())
}

func TestBuffer(t *testing.T) {
	b := Buffer{Ptr: 0x7f0000001000, DType: dtypes.BFloat16, Shape: []int{128, 256}}
	assert.Equal(t, KindBuffer, b.Kind())
	assert.Equal(t, []byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x7f, 0, 0}, b.Encode())
	assert.Equal(t, "Buffer<"+dtypes.BFloat16.String()+">", b.Render())
	assert.Equal(t, 128*256*2, b.Bytes())
}

func TestTensorMap(t *testing.T) {
	var m TensorMap
	m[0], m[127] = 0xaa, 0xbb

	encoded := m.Encode()
	require.Len(t, encoded, TensorMapSize)
	assert.Equal(t, byte(0xaa), encoded[0])
	assert.Equal(t, byte(0xbb), encoded[127])
	assert.Equal(t, TensorMapPlaceholder, m.Render())

	// Encode returns a copy.
	encoded[0] = 0
	assert.Equal(t, byte(0xaa), m[0])
}
