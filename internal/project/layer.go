package project

// Spec is the resolved build description of one project. Argument and
// environment values are templates expanded against the project's variables
// immediately before each stage runs.
type Spec struct {
	ConfigureArgs []string
	ConfigureEnv  map[string]string

	BuildArgs    []string
	BuildTargets []string
	BuildEnv     map[string]string

	InstallArgs    []string
	InstallTargets []string
	InstallEnv     map[string]string

	TestTargets []string

	Options      []Option
	Dependencies []string
	Conflicts    []string

	// Vars declares placeholder values contributed by this layer, such as
	// the compiler driver a category of projects uses.
	Vars map[string]string
}

// Layer is one named contribution to a Spec.
type Layer struct {
	Name string
	Spec
}

// Compose folds layers, least specific first, into one Spec.
//
// Argument lists concatenate with the most specific layer's entries first.
// Maps merge right-biased: a later layer wins on key collision. Target lists
// are replaced rather than merged; the most specific layer that sets them
// wins. Options are keyed by name with the most specific definition winning.
// Package dependencies and conflicts are unioned.
func Compose(layers ...Layer) Spec {
	var out Spec
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i].Spec
		out.ConfigureArgs = append(out.ConfigureArgs, l.ConfigureArgs...)
		out.BuildArgs = append(out.BuildArgs, l.BuildArgs...)
		out.InstallArgs = append(out.InstallArgs, l.InstallArgs...)
	}
	for _, layer := range layers {
		l := layer.Spec
		out.ConfigureEnv = mergeMap(out.ConfigureEnv, l.ConfigureEnv)
		out.BuildEnv = mergeMap(out.BuildEnv, l.BuildEnv)
		out.InstallEnv = mergeMap(out.InstallEnv, l.InstallEnv)
		out.Vars = mergeMap(out.Vars, l.Vars)

		if l.BuildTargets != nil {
			out.BuildTargets = append([]string(nil), l.BuildTargets...)
		}
		if l.InstallTargets != nil {
			out.InstallTargets = append([]string(nil), l.InstallTargets...)
		}
		if l.TestTargets != nil {
			out.TestTargets = append([]string(nil), l.TestTargets...)
		}

		out.Options = mergeOptions(out.Options, l.Options)
		out.Dependencies = union(out.Dependencies, l.Dependencies)
		out.Conflicts = union(out.Conflicts, l.Conflicts)
	}
	return out
}

func mergeMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func mergeOptions(dst, src []Option) []Option {
	for _, o := range src {
		replaced := false
		for i := range dst {
			if dst[i].Name == o.Name {
				dst[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			dst = append(dst, o)
		}
	}
	return dst
}

func union(dst, src []string) []string {
	for _, s := range src {
		dup := false
		for _, d := range dst {
			if d == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
