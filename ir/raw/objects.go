package raw

import (
	"math"
	"sort"
)

type NameObj struct{ Val string }

// NumberObj is written as an integer when IsInt is set.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// StringObj is written in literal form, or hexadecimal when Hex is set.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

type ArrayObj struct{ Items []Object }

func (a *ArrayObj) Len() int { return len(a.Items) }

func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

type DictObj struct{ KV map[string]Object }

// Put sets key and returns d for chaining.
func (d *DictObj) Put(key string, value Object) *DictObj {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
	return d
}

func (d *DictObj) Lookup(key string) (Object, bool) {
	o, ok := d.KV[key]
	return o, ok
}

func (d *DictObj) Len() int { return len(d.KV) }

// Keys returns the keys in byte order, the order they are written in.
func (d *DictObj) Keys() []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StreamObj holds Data exactly as written. A /Filter entry in Dict means
// Data is already encoded.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

type RefObj struct{ R ObjectRef }

func (r RefObj) Ref() ObjectRef { return r.R }

func NameLiteral(v string) NameObj       { return NameObj{Val: v} }
func NumberInt(i int64) NumberObj        { return NumberObj{I: i, IsInt: true} }
func Str(b []byte) StringObj             { return StringObj{Bytes: b} }
func HexStr(b []byte) StringObj          { return StringObj{Bytes: b, Hex: true} }
func RefTo(r ObjectRef) RefObj           { return RefObj{R: r} }
func NewArray(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }
func Dict() *DictObj                     { return &DictObj{KV: make(map[string]Object)} }

// NewStream wraps data; a nil dict starts empty.
func NewStream(dict *DictObj, data []byte) *StreamObj {
	if dict == nil {
		dict = Dict()
	}
	return &StreamObj{Dict: dict, Data: data}
}

// Number returns an integer object when v is integral, otherwise a real.
func Number(v float64) NumberObj {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return NumberInt(int64(v))
	}
	return NumberObj{F: v}
}

// Numbers builds an array with Number applied to each value.
func Numbers(vals ...float64) *ArrayObj {
	arr := &ArrayObj{Items: make([]Object, 0, len(vals))}
	for _, v := range vals {
		arr.Append(Number(v))
	}
	return arr
}
