package policy

import "context"

// Arg is a single evaluator argument: either a scalar or a vector of
// scalars (exploration's tail arrays). Only these two shapes are required
// by the external evaluator contract.
type Arg struct {
	Scalar   float64
	Vector   []float64
	IsVector bool
}

// Num wraps a scalar argument.
func Num(v float64) Arg { return Arg{Scalar: v} }

// Vec wraps a vector argument.
func Vec(v []float64) Arg { return Arg{Vector: v, IsVector: true} }

// Evaluator runs a policy expression against a fixed argument vector and
// returns a single numeric result. Implementations must enforce their own
// timeout and must not access host I/O.
type Evaluator interface {
	Eval(ctx context.Context, source string, args []Arg) (float64, error)
}
