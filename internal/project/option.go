package project

import (
	"fmt"
	"slices"
	"strconv"
)

// OptionType is the value type of a configuration option.
type OptionType int

const (
	// Flag options carry no value.
	Flag OptionType = iota
	Bool
	String
	Int
	Choice
)

func (t OptionType) String() string {
	switch t {
	case Flag:
		return "flag"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Int:
		return "int"
	case Choice:
		return "choice"
	}
	return fmt.Sprintf("OptionType(%d)", int(t))
}

// RefKind says what a Ref points at.
type RefKind int

const (
	OptionRef RefKind = iota
	PackageRef
)

func (k RefKind) String() string {
	if k == PackageRef {
		return "package"
	}
	return "option"
}

// Ref names an option of the same project or another package.
type Ref struct {
	Kind RefKind
	Name string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s %q", r.Kind, r.Name)
}

// Opt and Pkg build Refs.
func Opt(name string) Ref { return Ref{Kind: OptionRef, Name: name} }
func Pkg(name string) Ref { return Ref{Kind: PackageRef, Name: name} }

// Option is a configuration switch of a project. Enabled options render as
// configure arguments: `--name=value`, or `--name` when the value is empty.
type Option struct {
	Name         string
	Type         OptionType
	Value        string
	Choices      []string
	Help         string
	Enabled      bool
	Dependencies []Ref
	Conflicts    []Ref
}

// Validate checks the value against the option's type and choices.
func (o Option) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("option has no name")
	}
	switch o.Type {
	case Flag:
		if o.Value != "" {
			return fmt.Errorf("option %q: flag takes no value, got %q", o.Name, o.Value)
		}
	case Bool:
		if _, err := strconv.ParseBool(o.Value); err != nil {
			return fmt.Errorf("option %q: %q is not a boolean", o.Name, o.Value)
		}
	case Int:
		if _, err := strconv.Atoi(o.Value); err != nil {
			return fmt.Errorf("option %q: %q is not an integer", o.Name, o.Value)
		}
	case Choice:
		if len(o.Choices) == 0 {
			return fmt.Errorf("option %q: choice option declares no choices", o.Name)
		}
	case String:
	default:
		return fmt.Errorf("option %q: unknown type %s", o.Name, o.Type)
	}
	if len(o.Choices) > 0 && !slices.Contains(o.Choices, o.Value) {
		return fmt.Errorf("option %q: %q is not one of %v", o.Name, o.Value, o.Choices)
	}
	return nil
}

// Arg renders the option as a configure argument.
func (o Option) Arg() string {
	if o.Value == "" {
		return "--" + o.Name
	}
	return "--" + o.Name + "=" + o.Value
}
