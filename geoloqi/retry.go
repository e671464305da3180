package geoloqi

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var retryRules = newLRUCache(32)

// retryEnv is the static environment a retry rule is compiled against
func retryEnv(apiErr *APIError) map[string]any {
	if apiErr == nil {
		return map[string]any{"token": "", "description": "", "status": 0}
	}
	return map[string]any{
		"token":       apiErr.Type,
		"description": apiErr.Reason,
		"status":      apiErr.Status,
	}
}

// compileRetryRule compiles a boolean expr rule, reusing cached programs.
// An empty rule falls back to DefaultRetryRule.
func compileRetryRule(rule string) (*vm.Program, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		rule = DefaultRetryRule
	}

	if cached, ok := retryRules.Get(rule); ok {
		return cached.(*vm.Program), nil
	}

	program, err := expr.Compile(rule, expr.Env(retryEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile retry rule %q: %w", rule, err)
	}

	retryRules.Put(rule, program)
	return program, nil
}

// evalRetryRule runs a compiled rule against an API error
func evalRetryRule(program *vm.Program, apiErr *APIError) (bool, error) {
	out, err := expr.Run(program, retryEnv(apiErr))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate retry rule: %w", err)
	}
	retry, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("retry rule returned %T, not bool", out)
	}
	return retry, nil
}
