// Package launch defines the keyed argument bag handed to kernel launches.
//
// A Value is one of three closed variants: Scalar, Buffer or TensorMap.
// Kernel families type-switch over them; no other implementation exists.
package launch

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindBuffer
	KindTensorMap
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindBuffer:
		return "buffer"
	case KindTensorMap:
		return "tensor map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a launch argument.
type Value interface {
	Kind() Kind
	// Encode returns the bytes passed to the kernel for this parameter.
	Encode() []byte
	// Render returns a short diagnostic form that never dumps raw contents.
	Render() string

	isValue()
}

// Scalar is a numeric or boolean kernel parameter passed by value.
type Scalar struct {
	dtype dtypes.DType
	bits  uint64
}

func Int32(v int32) Scalar   { return Scalar{dtype: dtypes.Int32, bits: uint64(uint32(v))} }
func Uint32(v uint32) Scalar { return Scalar{dtype: dtypes.Uint32, bits: uint64(v)} }
func Int64(v int64) Scalar   { return Scalar{dtype: dtypes.Int64, bits: uint64(v)} }
func Uint64(v uint64) Scalar { return Scalar{dtype: dtypes.Uint64, bits: v} }
func Float32(v float32) Scalar {
	return Scalar{dtype: dtypes.Float32, bits: uint64(math.Float32bits(v))}
}
func Float64(v float64) Scalar { return Scalar{dtype: dtypes.Float64, bits: math.Float64bits(v)} }

// Float16 is a half precision scalar, e.g. an epilogue alpha.
func Float16(v float16.Float16) Scalar { return Scalar{dtype: dtypes.Float16, bits: uint64(v.Bits())} }

func Bool(v bool) Scalar {
	if v {
		return Scalar{dtype: dtypes.Bool, bits: 1}
	}
	return Scalar{dtype: dtypes.Bool}
}

func (s Scalar) Kind() Kind          { return KindScalar }
func (s Scalar) DType() dtypes.DType { return s.dtype }
func (Scalar) isValue()              {}

// Uint returns the value as an unsigned integer. It fails for floats and
// negative integers.
func (s Scalar) Uint() (uint64, bool) {
	switch s.dtype {
	case dtypes.Uint32, dtypes.Uint64:
		return s.bits, true
	case dtypes.Int32:
		v := int32(uint32(s.bits))
		return uint64(v), v >= 0
	case dtypes.Int64:
		v := int64(s.bits)
		return uint64(v), v >= 0
	case dtypes.Bool:
		return s.bits, true
	}
	return 0, false
}

// Int returns the value as a signed integer. It fails for floats and for
// uint64 values above math.MaxInt64.
func (s Scalar) Int() (int64, bool) {
	switch s.dtype {
	case dtypes.Int32:
		return int64(int32(uint32(s.bits))), true
	case dtypes.Int64:
		return int64(s.bits), true
	case dtypes.Uint32, dtypes.Bool:
		return int64(s.bits), true
	case dtypes.Uint64:
		return int64(s.bits), s.bits <= math.MaxInt64
	}
	return 0, false
}

// Float returns the value as a float64. Integers convert.
func (s Scalar) Float() float64 {
	switch s.dtype {
	case dtypes.Float32:
		return float64(math.Float32frombits(uint32(s.bits)))
	case dtypes.Float64:
		return math.Float64frombits(s.bits)
	case dtypes.Float16:
		return float64(float16.Frombits(uint16(s.bits)).Float32())
	}
	v, _ := s.Int()
	if s.dtype == dtypes.Uint64 {
		return float64(s.bits)
	}
	return float64(v)
}

func (s Scalar) Encode() []byte {
	size := int(s.dtype.Memory())
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, s.bits)
	return out[:size]
}

func (s Scalar) Render() string {
	switch s.dtype {
	case dtypes.Bool:
		return strconv.FormatBool(s.bits != 0)
	case dtypes.Float16, dtypes.Float32, dtypes.Float64:
		return strconv.FormatFloat(s.Float(), 'g', -1, 64)
	case dtypes.Uint32, dtypes.Uint64:
		return strconv.FormatUint(s.bits, 10)
	}
	v, _ := s.Int()
	return strconv.FormatInt(v, 10)
}

// DevicePtr is a device memory address.
type DevicePtr uint64

// Buffer describes a typed device allocation. Only its pointer is passed to
// the kernel.
type Buffer struct {
	Ptr   DevicePtr
	DType dtypes.DType
	Shape []int
}

func (b Buffer) Kind() Kind { return KindBuffer }
func (Buffer) isValue()     {}

func (b Buffer) Encode() []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(b.Ptr))
	return out
}

func (b Buffer) Render() string {
	return fmt.Sprintf("Buffer<%s>", b.DType)
}

// Bytes is the size of the described allocation.
func (b Buffer) Bytes() int {
	n := 1
	for _, d := range b.Shape {
		n *= d
	}
	return n * int(b.DType.Memory())
}

// TensorMapSize is sizeof(CUtensorMap).
const TensorMapSize = 128

// TensorMapPlaceholder is how tensor maps appear in diagnostics.
const TensorMapPlaceholder = "CUtensorMap"

// TensorMap is an opaque CUtensorMap descriptor passed by value.
type TensorMap [TensorMapSize]byte

func (m TensorMap) Kind() Kind { return KindTensorMap }
func (TensorMap) isValue()     {}

func (m TensorMap) Encode() []byte {
	out := make([]byte, TensorMapSize)
	copy(out, m[:])
	return out
}

func (m TensorMap) Render() string { return TensorMapPlaceholder }
