package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// YaegiEvaluator is an alternate Evaluator backend for operators who prefer
// writing policy functions as Go source rather than the default s-expression
// form. The source must define:
//
//	func Eval(scalars []float64, vectors [][]float64) (float64, error)
//
// Only stdlib imports are permitted; execution has no filesystem, network,
// or exec access and is bounded by a hard timeout.
type YaegiEvaluator struct {
	Timeout         time.Duration
	allowedPackages map[string]bool
}

// NewYaegiEvaluator returns a YaegiEvaluator with the given hard timeout.
func NewYaegiEvaluator(timeout time.Duration) *YaegiEvaluator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &YaegiEvaluator{
		Timeout: timeout,
		allowedPackages: map[string]bool{
			"strings": true,
			"strconv": true,
			"fmt":     true,
			"math":    true,
			"sort":    true,
		},
	}
}

// Eval interprets source and calls its Eval function with args split into
// scalars and vectors, enforcing y.Timeout.
func (y *YaegiEvaluator) Eval(ctx context.Context, source string, args []Arg) (float64, error) {
	if err := y.validateImports(source); err != nil {
		return 0, fmt.Errorf("invalid imports: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, y.Timeout)
	defer cancel()

	var scalars []float64
	var vectors [][]float64
	for _, a := range args {
		if a.IsVector {
			vectors = append(vectors, a.Vector)
		} else {
			scalars = append(scalars, a.Scalar)
		}
	}

	resultCh := make(chan float64, 1)
	errCh := make(chan error, 1)

	go func() {
		i := interp.New(interp.Options{})
		if err := i.Use(stdlib.Symbols); err != nil {
			errCh <- fmt.Errorf("failed to load stdlib: %w", err)
			return
		}

		if _, err := i.Eval(y.wrapCode(source)); err != nil {
			errCh <- fmt.Errorf("code evaluation failed: %w", err)
			return
		}

		fn, err := i.Eval("main.Eval")
		if err != nil {
			errCh <- fmt.Errorf("Eval function not found: %w", err)
			return
		}
		evalFn, ok := fn.Interface().(func([]float64, [][]float64) (float64, error))
		if !ok {
			errCh <- fmt.Errorf("Eval has incorrect signature (expected: func([]float64, [][]float64) (float64, error))")
			return
		}

		v, err := evalFn(scalars, vectors)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- v
	}()

	select {
	case v := <-resultCh:
		return v, nil
	case err := <-errCh:
		return 0, err
	case <-ctx.Done():
		return 0, fmt.Errorf("policy expression evaluation timed out: %w", ctx.Err())
	}
}

func (y *YaegiEvaluator) validateImports(code string) error {
	lines := strings.Split(code, "\n")
	var imports []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import (") {
			inBlock = true
			continue
		}
		if inBlock && strings.HasPrefix(trimmed, ")") {
			inBlock = false
			continue
		}
		if inBlock {
			imports = append(imports, strings.Trim(trimmed, `"`))
		} else if strings.HasPrefix(trimmed, "import ") {
			imports = append(imports, strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`))
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if pkg != "" && !y.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

func (y *YaegiEvaluator) wrapCode(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return fmt.Sprintf("package main\n\n%s\n", code)
}
