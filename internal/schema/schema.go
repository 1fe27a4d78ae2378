// Package schema compiles declared tool parameter specs into runtime
// argument validators. Compilation never fails: an unrecognized kind
// degrades to an accept-anything check so a partially understood tool
// still registers.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Parameter kinds the compiler understands. Anything else is treated
// as KindUnknown and accepted without inspection.
const (
	KindString  = "string"
	KindNumber  = "number"
	KindBoolean = "boolean"
	KindArray   = "array"
	KindUnknown = "unknown"
)

// Param describes one declared tool parameter.
type Param struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	ItemKind    string   `json:"item_kind,omitempty"` // element kind for arrays, defaults to string
	Example     any      `json:"example,omitempty"`   // documentation only, never used for validation
}

// checker validates a single argument value. One implementation per kind.
type checker interface {
	check(v any) error
}

type stringChecker struct {
	enum []string
}

func (c stringChecker) check(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	if len(c.enum) == 0 {
		return nil
	}
	for _, allowed := range c.enum {
		if s == allowed {
			return nil
		}
	}
	return fmt.Errorf("value %q is not one of [%s]", s, strings.Join(c.enum, ", "))
}

type numberChecker struct{}

func (numberChecker) check(v any) error {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return nil
	}
	return fmt.Errorf("expected number, got %T", v)
}

type booleanChecker struct{}

func (booleanChecker) check(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", v)
	}
	return nil
}

type arrayChecker struct {
	item checker
}

func (c arrayChecker) check(v any) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("expected array, got %T", v)
	}
	for i, item := range items {
		if err := c.item.check(item); err != nil {
			return fmt.Errorf("element %d: %v", i, err)
		}
	}
	return nil
}

type anyChecker struct{}

func (anyChecker) check(any) error { return nil }

// compiledParam pairs a declared parameter with its checker.
type compiledParam struct {
	name     string
	required bool
	check    checker
}

// Validator validates tool call arguments against a compiled parameter spec.
// It is immutable after compilation and safe for concurrent use.
type Validator struct {
	params []compiledParam
}

// Compile builds a Validator from a parameter spec. It is deterministic
// (parameters are checked in declaration order) and never mutates params.
func Compile(params []Param) *Validator {
	v := &Validator{params: make([]compiledParam, 0, len(params))}
	for _, p := range params {
		v.params = append(v.params, compiledParam{
			name:     p.Name,
			required: p.Required,
			check:    leafChecker(p),
		})
	}
	return v
}

// leafChecker picks the checker for one parameter by kind.
func leafChecker(p Param) checker {
	switch p.Kind {
	case KindString:
		return stringChecker{enum: p.Enum}
	case KindNumber:
		return numberChecker{}
	case KindBoolean:
		return booleanChecker{}
	case KindArray:
		itemKind := p.ItemKind
		if itemKind == "" {
			itemKind = KindString
		}
		return arrayChecker{item: leafChecker(Param{Kind: itemKind})}
	default:
		return anyChecker{}
	}
}

// Validate checks args against the declared parameters. All field errors are
// collected and joined so the caller gets the full picture in one round trip.
// Undeclared arguments pass through unchanged; tools may be upgraded
// independently of the gateway.
func (v *Validator) Validate(args map[string]any) (map[string]any, error) {
	normalized := make(map[string]any, len(args))
	for k, val := range args {
		normalized[k] = val
	}

	var fieldErrs []string
	for _, p := range v.params {
		val, present := args[p.name]
		if !present {
			if p.required {
				fieldErrs = append(fieldErrs, fmt.Sprintf("%s: required parameter is missing", p.name))
			}
			continue
		}
		if err := p.check.check(val); err != nil {
			fieldErrs = append(fieldErrs, fmt.Sprintf("%s: %v", p.name, err))
		}
	}

	if len(fieldErrs) > 0 {
		return normalized, errors.New(strings.Join(fieldErrs, "; "))
	}
	return normalized, nil
}
