package scenario

import (
	"math"
)

// Operations available to deriveds, writables and effects.
const (
	OpRef     = "ref"
	OpSum     = "sum"
	OpProduct = "product"
	OpMin     = "min"
	OpMax     = "max"
	OpSub     = "sub"
	OpNeg     = "neg"
	OpMod     = "mod"
	OpSelf    = "self"
)

// arity is the allowed argument count per operation: exact when min equals
// max, max -1 for unbounded.
var arity = map[string]struct{ min, max int }{
	OpRef:     {1, 1},
	OpSum:     {1, -1},
	OpProduct: {1, -1},
	OpMin:     {1, -1},
	OpMax:     {1, -1},
	OpSub:     {2, 2},
	OpNeg:     {1, 1},
	OpMod:     {2, 2},
	OpSelf:    {0, 0},
}

// apply evaluates op over already resolved arguments.
func apply(op string, args []float64) float64 {
	switch op {
	case OpRef:
		return args[0]
	case OpSum:
		var total float64
		for _, v := range args {
			total += v
		}
		return total
	case OpProduct:
		total := 1.0
		for _, v := range args {
			total *= v
		}
		return total
	case OpMin:
		m := args[0]
		for _, v := range args[1:] {
			m = math.Min(m, v)
		}
		return m
	case OpMax:
		m := args[0]
		for _, v := range args[1:] {
			m = math.Max(m, v)
		}
		return m
	case OpSub:
		return args[0] - args[1]
	case OpNeg:
		return -args[0]
	case OpMod:
		return math.Mod(args[0], args[1])
	}
	return math.NaN()
}
