package launch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingArg = errors.New("missing launch argument")
	ErrArgKind    = errors.New("launch argument has wrong kind")
)

// Args is an insertion-ordered bag of launch arguments. A nil *Args reads as
// an empty bag, and Set on it returns a new bag.
type Args struct {
	keys   []string
	values map[string]Value
}

// NewArgs returns an empty bag.
func NewArgs() *Args {
	return &Args{values: make(map[string]Value)}
}

// Set stores v under key and returns the bag. Replacing a key keeps its
// original position.
func (a *Args) Set(key string, v Value) *Args {
	if a == nil {
		a = NewArgs()
	}
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
	return a
}

func (a *Args) Get(key string) (Value, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.values[key]
	return v, ok
}

func (a *Args) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (a *Args) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

func (a *Args) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Clone returns a shallow copy.
func (a *Args) Clone() *Args {
	out := NewArgs()
	if a == nil {
		return out
	}
	for _, k := range a.keys {
		out.Set(k, a.values[k])
	}
	return out
}

func (a *Args) lookup(key string, kind Kind) (Value, error) {
	v, ok := a.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingArg, key)
	}
	if v.Kind() != kind {
		return nil, fmt.Errorf("%w: %q is a %s, want %s", ErrArgKind, key, v.Kind(), kind)
	}
	return v, nil
}

func (a *Args) Scalar(key string) (Scalar, error) {
	v, err := a.lookup(key, KindScalar)
	if err != nil {
		return Scalar{}, err
	}
	return v.(Scalar), nil
}

func (a *Args) Buffer(key string) (Buffer, error) {
	v, err := a.lookup(key, KindBuffer)
	if err != nil {
		return Buffer{}, err
	}
	return v.(Buffer), nil
}

func (a *Args) TensorMap(key string) (TensorMap, error) {
	v, err := a.lookup(key, KindTensorMap)
	if err != nil {
		return TensorMap{}, err
	}
	return v.(TensorMap), nil
}

// Uint32 reads an integer scalar that must fit in 32 bits unsigned.
func (a *Args) Uint32(key string) (uint32, error) {
	s, err := a.Scalar(key)
	if err != nil {
		return 0, err
	}
	v, ok := s.Uint()
	if !ok || v > 1<<32-1 {
		return 0, fmt.Errorf("%w: %q = %s does not fit in uint32", ErrArgKind, key, s.Render())
	}
	return uint32(v), nil
}

// Encode returns the parameter bytes of keys, in the given order.
func (a *Args) Encode(keys ...string) ([][]byte, error) {
	params := make([][]byte, 0, len(keys))
	for _, k := range keys {
		v, ok := a.Get(k)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingArg, k)
		}
		params = append(params, v.Encode())
	}
	return params, nil
}

// Field is one rendered argument.
type Field struct {
	Key   string
	Value string
}

// Simplified renders every argument for diagnostics: buffers as their element
// type, tensor maps as a fixed placeholder.
func (a *Args) Simplified() []Field {
	if a == nil {
		return nil
	}
	fields := make([]Field, 0, len(a.keys))
	for _, k := range a.keys {
		fields = append(fields, Field{Key: k, Value: Render(a.values[k])})
	}
	return fields
}

// Render is the diagnostic form of v.
func Render(v Value) string {
	switch v := v.(type) {
	case Scalar:
		return v.Render()
	case Buffer:
		return v.Render()
	case TensorMap:
		return v.Render()
	case nil:
		return "<nil>"
	default:
		panic(fmt.Sprintf("launch: unexpected value type %T", v))
	}
}

// String renders the bag as {key: value, ...}.
func (a *Args) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range a.Simplified() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	b.WriteByte('}')
	return b.String()
}
