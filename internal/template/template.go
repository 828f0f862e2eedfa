// Package template expands `${name}` placeholders in build arguments and
// environment values. Templates use HCL template syntax, so `$${` writes a
// literal `${`, and every referenced name must be declared up front.
package template

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Vars is the declared variable map placeholders resolve against.
type Vars map[string]string

// Merge returns a copy of v overlaid with o.
func (v Vars) Merge(o Vars) Vars {
	out := make(Vars, len(v)+len(o))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range o {
		out[k] = val
	}
	return out
}

// UnresolvedError names a placeholder that has no declared value.
type UnresolvedError struct {
	Name     string
	Template string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholder ${%s} in %q", e.Name, e.Template)
}

// SyntaxError reports a malformed template.
type SyntaxError struct {
	Template string
	Diags    hcl.Diagnostics
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid template %q: %s", e.Template, e.Diags.Error())
}

func (v Vars) evalContext() *hcl.EvalContext {
	vals := make(map[string]cty.Value, len(v))
	for k, val := range v {
		vals[k] = cty.StringVal(val)
	}
	return &hcl.EvalContext{Variables: vals}
}

// Expand substitutes every placeholder in tmpl.
func Expand(tmpl string, vars Vars) (string, error) {
	if !strings.Contains(tmpl, "${") && !strings.Contains(tmpl, "%{") {
		return tmpl, nil
	}
	expr, diags := hclsyntax.ParseTemplate([]byte(tmpl), "template", hcl.InitialPos)
	if diags.HasErrors() {
		return "", &SyntaxError{Template: tmpl, Diags: diags}
	}
	for _, tr := range expr.Variables() {
		name := tr.RootName()
		if _, ok := vars[name]; !ok {
			return "", &UnresolvedError{Name: name, Template: tmpl}
		}
	}
	val, diags := expr.Value(vars.evalContext())
	if diags.HasErrors() {
		return "", &SyntaxError{Template: tmpl, Diags: diags}
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil || val.IsNull() || !val.IsKnown() {
		return "", fmt.Errorf("template %q does not produce a string", tmpl)
	}
	return val.AsString(), nil
}

// ExpandAll expands each element of list, stopping at the first error.
func ExpandAll(list []string, vars Vars) ([]string, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		v, err := Expand(s, vars)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ExpandMap expands every value of m. Keys are taken literally. Errors are
// reported for keys in sorted order so the first failure is deterministic.
func ExpandMap(m map[string]string, vars Vars) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(m))
	for _, k := range keys {
		v, err := Expand(m[k], vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// IsUnresolved reports whether err stems from an undeclared placeholder.
func IsUnresolved(err error) bool {
	var u *UnresolvedError
	return errors.As(err, &u)
}
