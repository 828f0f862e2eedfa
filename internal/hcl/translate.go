package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/weaver/internal/config"
	"github.com/vk/weaver/internal/ctxlog"
)

var commandListType = cty.List(cty.List(cty.String))

// translate converts the decoded schema of one file into the agnostic model.
func (l *Loader) translate(ctx context.Context, root *fileRoot, evalCtx *hcl.EvalContext) (*config.Toolchain, error) {
	tc := &config.Toolchain{
		Arch:        root.Arch,
		Org:         root.Org,
		OS:          root.OS,
		Host:        root.Host,
		Build:       root.Build,
		Jobs:        root.Jobs,
		SourceRoot:  root.SourceRoot,
		BuildRoot:   root.BuildRoot,
		InstallRoot: root.InstallRoot,
		MinKernel:   root.MinKernel,
	}
	if root.Log != nil {
		tc.Log = config.Log{Level: root.Log.Level, Format: root.Log.Format}
	}

	for _, b := range root.Components {
		if _, dup := tc.Components[b.Name]; dup {
			return nil, fmt.Errorf("duplicate component block %q", b.Name)
		}
		c := tc.Component(b.Name)
		c.Version = b.Version
		c.Remote = b.Remote
		c.ExtraConfig = b.ExtraConfig
		if isExprDefined(ctx, b.Prepare, "prepare") {
			cmds, err := decodeCommands(b.Prepare, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("component %q: prepare: %w", b.Name, err)
			}
			c.Prepare = cmds
		}
	}
	for _, b := range root.ArchConfig {
		tc.ArchConfig = append(tc.ArchConfig, &config.ArchConfig{
			Component: b.Component,
			Arch:      b.Arch,
			Args:      b.Args,
		})
	}
	return tc, nil
}

// isExprDefined checks if an HCL expression was actually present in the
// source. gohcl fills omitted optional expression fields with a zero-width
// placeholder, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	defined := rng.End.Byte > rng.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", rng.String(),
		"is_defined", defined,
	)
	return defined
}

// decodeCommands evaluates a list of argument vectors. Tuples such as
// `[["./autogen.sh"], ["autoreconf", "-i"]]` are converted to the list type
// first.
func decodeCommands(expr hcl.Expression, evalCtx *hcl.EvalContext) ([][]string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	converted, err := convert.Convert(val, commandListType)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %s to list of commands: %w", val.Type().FriendlyName(), err)
	}
	cmds := [][]string{}
	if converted.LengthInt() == 0 {
		return cmds, nil
	}
	if err := gocty.FromCtyValue(converted, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}
