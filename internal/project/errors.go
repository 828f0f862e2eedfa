package project

import "fmt"

// ConflictError reports an enabled option, or the project itself, conflicting
// with something else that is enabled.
type ConflictError struct {
	Project  string
	Subject  string
	Conflict string
	Kind     RefKind
}

func (e *ConflictError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: conflicts with enabled %s %q", e.Project, e.Kind, e.Conflict)
	}
	return fmt.Sprintf("%s: option %q conflicts with enabled %s %q", e.Project, e.Subject, e.Kind, e.Conflict)
}

// DependencyError reports a requirement that is not satisfied.
type DependencyError struct {
	Project string
	Subject string
	Missing string
	Kind    RefKind
}

func (e *DependencyError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: depends on unknown %s %q", e.Project, e.Kind, e.Missing)
	}
	return fmt.Sprintf("%s: option %q requires disabled %s %q", e.Project, e.Subject, e.Kind, e.Missing)
}
