package mapper

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/devblac/warden/internal/bridge"
)

// Predicate evaluates whether an event args map satisfies a condition.
type Predicate func(args map[string]any) (bool, error)

// CompilePredicates parses simple expressions into executable predicates.
// Supported operators: ==, !=, >, >=, <, <=, in, contains.
// Examples:
//
//	"amount > 0"
//	"token in 0xaa..,0xbb.."
//	"amount <= 1_000 * 1e18"
func CompilePredicates(exprs []string) ([]Predicate, error) {
	var preds []Predicate
	for _, raw := range exprs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := compile(raw)
		if err != nil {
			return nil, bridge.ConfigErrorf("where %q: %v", raw, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compile(expr string) (Predicate, error) {
	if strings.Contains(expr, " in ") {
		parts := strings.SplitN(expr, " in ", 2)
		field := strings.TrimSpace(parts[0])
		values := map[string]struct{}{}
		for _, v := range strings.Split(parts[1], ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			values[strings.ToLower(v)] = struct{}{}
		}
		if field == "" || len(values) == 0 {
			return nil, fmt.Errorf("invalid in expression")
		}
		return func(args map[string]any) (bool, error) {
			arg, ok := args[field]
			if !ok {
				return false, nil
			}
			_, hit := values[strings.ToLower(fmt.Sprint(arg))]
			return hit, nil
		}, nil
	}

	if strings.Contains(expr, " contains ") {
		parts := strings.SplitN(expr, " contains ", 2)
		field := strings.TrimSpace(parts[0])
		needle := strings.ToLower(strings.TrimSpace(parts[1]))
		return func(args map[string]any) (bool, error) {
			val, ok := args[field]
			if !ok {
				return false, nil
			}
			return strings.Contains(strings.ToLower(fmt.Sprint(val)), needle), nil
		}, nil
	}

	var op string
	for _, candidate := range []string{"==", "!=", ">=", "<=", ">", "<"} {
		if strings.Contains(expr, candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return nil, fmt.Errorf("unsupported expression")
	}

	parts := strings.SplitN(expr, op, 2)
	field := strings.TrimSpace(parts[0])
	rhsRaw := strings.TrimSpace(parts[1])
	if field == "" || rhsRaw == "" {
		return nil, fmt.Errorf("invalid expression")
	}

	numRHS, rhsIsNum := evaluateNumber(rhsRaw)

	return func(args map[string]any) (bool, error) {
		val, ok := args[field]
		if !ok {
			return false, nil
		}

		if lhs, err := coerceAmount(val); rhsIsNum && err == nil {
			c := lhs.Cmp(numRHS)
			switch op {
			case "==":
				return c == 0, nil
			case "!=":
				return c != 0, nil
			case ">":
				return c > 0, nil
			case "<":
				return c < 0, nil
			case ">=":
				return c >= 0, nil
			case "<=":
				return c <= 0, nil
			}
		}

		// addresses compare case-insensitively
		lhs := fmt.Sprint(val)
		switch op {
		case "==":
			return strings.EqualFold(lhs, rhsRaw), nil
		case "!=":
			return !strings.EqualFold(lhs, rhsRaw), nil
		default:
			return false, nil
		}
	}, nil
}

// evaluateNumber evaluates an integer expression, supporting:
// - Simple numbers: "100", "1e18", "1_000_000", "0x10"
// - The helper "wei(...)"
// - One multiplication: "1_000 * 1e18"
func evaluateNumber(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "_", "")

	if strings.Contains(s, "*") {
		parts := strings.Split(s, "*")
		if len(parts) != 2 {
			return nil, false
		}
		a, ok1 := evaluateNumber(parts[0])
		b, ok2 := evaluateNumber(parts[1])
		if !ok1 || !ok2 {
			return nil, false
		}
		return new(big.Int).Mul(a, b), true
	}

	if strings.HasPrefix(s, "wei(") && strings.HasSuffix(s, ")") {
		return evaluateNumber(s[4 : len(s)-1])
	}

	if n, ok := new(big.Int).SetString(s, 0); ok {
		return n, true
	}
	// scientific notation
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil || !f.IsInt() {
		return nil, false
	}
	n, _ := f.Int(nil)
	return n, true
}
