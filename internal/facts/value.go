package facts

import (
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindBool Kind = iota
	KindString
	KindNumber
)

// Ordering is the result of comparing two values.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Value is a tagged union of bool, interned string, and number. Values of
// different kinds are never equal and never ordered against each other.
type Value struct {
	kind Kind
	b    bool
	sym  Symbol
	num  float64
}

func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

func Str(s string) Value {
	return Value{kind: KindString, sym: Intern(s)}
}

func Sym(s Symbol) Value {
	return Value{kind: KindString, sym: s}
}

func Num(v float64) Value {
	return Value{kind: KindNumber, num: v}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.sym == o.sym
	default:
		// Total ordering, so NaN equals itself and 0.0 != -0.0.
		return totalOrderBits(v.num) == totalOrderBits(o.num)
	}
}

// Compare orders two values of the same kind: numbers by IEEE 754 total
// order, strings lexically by interned text, bools with false < true. Values
// of different kinds report ok=false and satisfy no ordering.
func (v Value) Compare(o Value) (Ordering, bool) {
	if v.kind != o.kind {
		return Equal, false
	}
	switch v.kind {
	case KindBool:
		switch {
		case v.b == o.b:
			return Equal, true
		case !v.b:
			return Less, true
		default:
			return Greater, true
		}
	case KindString:
		return Ordering(strings.Compare(v.sym.String(), o.sym.String())), true
	default:
		a, b := totalOrderBits(v.num), totalOrderBits(o.num)
		switch {
		case a < b:
			return Less, true
		case a > b:
			return Greater, true
		default:
			return Equal, true
		}
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.sym.String()
	default:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
}

// totalOrderBits maps a float64 onto an integer whose natural order is the
// IEEE 754 totalOrder relation (-NaN < -Inf < ... < +Inf < +NaN).
func totalOrderBits(f float64) int64 {
	b := int64(math.Float64bits(f))
	b ^= int64(uint64(b>>63) >> 1)
	return b
}
