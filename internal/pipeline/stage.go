package pipeline

import (
	"errors"
	"fmt"
)

// Stage is how far a project has progressed through its lifecycle.
type Stage int

const (
	Unconfigured Stage = iota
	Configured
	Built
	Installed
)

func (s Stage) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Built:
		return "built"
	case Installed:
		return "installed"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Op names a lifecycle operation.
type Op string

const (
	OpConfigure Op = "configure"
	OpBuild     Op = "build"
	OpInstall   Op = "install"
	OpTest      Op = "test"
	OpClean     Op = "clean"
)

// requires is the stage an operation must start from, at least.
var requires = map[Op]Stage{
	OpConfigure: Unconfigured,
	OpBuild:     Configured,
	OpInstall:   Built,
	OpTest:      Built,
	OpClean:     Unconfigured,
}

// ErrStageOrder is reported when an operation runs before its predecessor
// succeeded.
var ErrStageOrder = errors.New("stage out of order")

// StageError carries the offending transition.
type StageError struct {
	Project string
	Op      Op
	Current Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s: %v", e.Project, e.Op, e.Current, ErrStageOrder)
}

func (e *StageError) Unwrap() error { return ErrStageOrder }
