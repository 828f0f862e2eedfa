package cli

import (
	"fmt"
	"strings"
)

// listFlag collects every occurrence of a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// versionsFlag collects repeatable name=version pairs.
type versionsFlag map[string]string

func (v versionsFlag) String() string {
	parts := make([]string, 0, len(v))
	for name, ver := range v {
		parts = append(parts, name+"="+ver)
	}
	return strings.Join(parts, ",")
}

func (v versionsFlag) Set(s string) error {
	name, ver, ok := strings.Cut(s, "=")
	if !ok || name == "" || ver == "" {
		return fmt.Errorf("expected <component>=<version>, got %q", s)
	}
	v[name] = ver
	return nil
}
