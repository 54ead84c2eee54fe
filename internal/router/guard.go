package router

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/virtend/virtend/internal/ajax"
)

// Guard is a compiled CEL predicate that decides whether an endpoint
// intercepts a particular request. The expression sees:
//
//   - method: canonical request method (string)
//   - path:   request path (string)
//   - params: named match parameters (map[string]string)
//   - query:  query values (map[string][]string)
//   - header: header values, lower-cased names, first value only
//     (map[string]string)
//
// Map indexing on a missing key is an evaluation error in CEL, so
// expressions should test membership first:
//
//	'debug' in query && query['debug'] == ['1']
type Guard struct {
	expr    string
	program cel.Program
}

var (
	guardEnvInstance *cel.Env
	guardEnvErr      error
	guardEnvOnce     sync.Once
)

// guardEnv returns the shared CEL environment. All guards declare the
// same variables, so the environment is built once per process.
func guardEnv() (*cel.Env, error) {
	guardEnvOnce.Do(func() {
		guardEnvInstance, guardEnvErr = cel.NewEnv(
			cel.Variable("method", cel.StringType),
			cel.Variable("path", cel.StringType),
			cel.Variable("params", cel.MapType(cel.StringType, cel.StringType)),
			cel.Variable("query", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("header", cel.MapType(cel.StringType, cel.StringType)),
		)
	})
	return guardEnvInstance, guardEnvErr
}

// NewGuard compiles a CEL guard expression.
func NewGuard(expr string) (*Guard, error) {
	env, err := guardEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create guard environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile guard expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard program: %w", err)
	}

	return &Guard{expr: expr, program: program}, nil
}

// Expr returns the source expression.
func (g *Guard) Expr() string {
	return g.expr
}

// GuardEnv carries the request attributes visible to guard expressions
// beyond what the matcher itself sees.
type GuardEnv struct {
	Query  url.Values
	Header http.Header
}

// Eval evaluates the guard against a matched request.
func (g *Guard) Eval(method, path string, params ajax.Params, env GuardEnv) (bool, error) {
	named := params.Named
	if named == nil {
		named = map[string]string{}
	}

	activation := map[string]any{
		"method": method,
		"path":   path,
		"params": named,
		"query":  queryActivation(env.Query),
		"header": headerActivation(env.Header),
	}

	out, _, err := g.program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate guard: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("guard expression %q did not produce a bool", g.expr)
	}

	return allowed, nil
}

func queryActivation(query url.Values) map[string]any {
	out := make(map[string]any, len(query))
	for name, values := range query {
		out[name] = values
	}
	return out
}

func headerActivation(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			out[strings.ToLower(name)] = values[0]
		}
	}
	return out
}
