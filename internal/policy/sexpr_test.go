package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSexprArithmetic(t *testing.T) {
	e := NewSexprEvaluator(time.Second)
	v, err := e.Eval(context.Background(), "(lambda (a b) (+ a (* b 2)))", []Arg{Num(3), Num(4)})
	require.NoError(t, err)
	require.Equal(t, 11.0, v)
}

func TestSexprIf(t *testing.T) {
	e := NewSexprEvaluator(time.Second)
	v, err := e.Eval(context.Background(), "(lambda (a) (if (> a 0) 1 -1))", []Arg{Num(5)})
	require.NoError(t, err)
	require.Equal(t, 1.0, v)
}

func TestSexprNthAndLen(t *testing.T) {
	e := NewSexprEvaluator(time.Second)
	v, err := e.Eval(context.Background(), "(lambda (xs) (nth (- (len xs) 1) xs))", []Arg{Vec([]float64{1, 2, 3})})
	require.NoError(t, err)
	require.Equal(t, 3.0, v)
}

func TestSexprUnboundSymbolErrors(t *testing.T) {
	e := NewSexprEvaluator(time.Second)
	_, err := e.Eval(context.Background(), "(lambda (a) (+ a b))", []Arg{Num(1)})
	require.Error(t, err)
}

func TestSexprArityMismatchErrors(t *testing.T) {
	e := NewSexprEvaluator(time.Second)
	_, err := e.Eval(context.Background(), "(lambda (a b) (+ a b))", []Arg{Num(1)})
	require.Error(t, err)
}
