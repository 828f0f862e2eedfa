package pipeline

import (
	"context"

	"github.com/vk/weaver/internal/result"
)

// Hooks are project-specific steps around each stage command. A failing
// pre hook prevents the command from running; a failing command prevents
// the post hook from running.
type Hooks interface {
	PreConfigure(ctx context.Context, p *Pipeline) result.Result
	PostConfigure(ctx context.Context, p *Pipeline) result.Result
	PreBuild(ctx context.Context, p *Pipeline) result.Result
	PostBuild(ctx context.Context, p *Pipeline) result.Result
	PreInstall(ctx context.Context, p *Pipeline) result.Result
	PostInstall(ctx context.Context, p *Pipeline) result.Result
	Clean(ctx context.Context, p *Pipeline) result.Result
}

// NopHooks succeeds at every hook. Embed it to override only some hooks.
type NopHooks struct{}

func (NopHooks) PreConfigure(context.Context, *Pipeline) result.Result  { return result.Success() }
func (NopHooks) PostConfigure(context.Context, *Pipeline) result.Result { return result.Success() }
func (NopHooks) PreBuild(context.Context, *Pipeline) result.Result      { return result.Success() }
func (NopHooks) PostBuild(context.Context, *Pipeline) result.Result     { return result.Success() }
func (NopHooks) PreInstall(context.Context, *Pipeline) result.Result    { return result.Success() }
func (NopHooks) PostInstall(context.Context, *Pipeline) result.Result   { return result.Success() }
func (NopHooks) Clean(context.Context, *Pipeline) result.Result         { return result.Success() }
