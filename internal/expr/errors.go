package expr

import "errors"

var (
	ErrNotInvertible        = errors.New("expr: division by zero")
	ErrDistributionRequired = errors.New("expr: derivative must be distributed over field samples")
	ErrUnboundVariable      = errors.New("expr: unbound variable")
	ErrNoUnknown            = errors.New("expr: equation does not reference any field sample")
	ErrComponents           = errors.New("expr: component index out of range")
)
