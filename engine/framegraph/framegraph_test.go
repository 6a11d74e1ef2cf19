package framegraph

import (
	"context"
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopPass(ctx context.Context, pc *PassContext) error { return nil }

func countingAllocator(allocs *int) Allocator {
	return NewPooledAllocator(func(desc TextureDescriptor) (*wgpu.TextureView, error) {
		*allocs++
		return new(wgpu.TextureView), nil
	})
}

func shadowDesc() TextureDescriptor {
	return TextureDescriptor{
		Width:       1024,
		Height:      1024,
		Format:      wgpu.TextureFormatDepth32Float,
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		SampleCount: 1,
	}
}

func colorDesc() TextureDescriptor {
	return TextureDescriptor{
		Width:       1920,
		Height:      1080,
		Format:      wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		SampleCount: 1,
	}
}

func TestResolveShadowOpaquePostOrder(t *testing.T) {
	var allocs int
	g := NewFrameGraph(WithAllocator(countingAllocator(&allocs)))

	require.NoError(t, g.CreateTexture("shadowmap", shadowDesc()))
	require.NoError(t, g.CreateTexture("color", colorDesc()))
	require.NoError(t, g.ImportTexture("surface", new(wgpu.TextureView)))

	// Registered out of dependency order on purpose.
	require.NoError(t, g.AddPass("post", []string{"color"}, []string{"surface"}, noopPass))
	require.NoError(t, g.AddPass("shadow", nil, []string{"shadowmap"}, noopPass))
	require.NoError(t, g.AddPass("opaque", []string{"shadowmap"}, []string{"color"}, noopPass))

	require.NoError(t, g.Resolve())
	assert.Equal(t, []string{"shadow", "opaque", "post"}, g.ExecutionOrder())
}

func TestResolveExtraReadKeepsOrder(t *testing.T) {
	var allocs int
	g := NewFrameGraph(WithAllocator(countingAllocator(&allocs)))

	require.NoError(t, g.CreateTexture("shadowmap", shadowDesc()))
	require.NoError(t, g.CreateTexture("color", colorDesc()))
	require.NoError(t, g.ImportTexture("surface", new(wgpu.TextureView)))

	require.NoError(t, g.AddPass("shadow", nil, []string{"shadowmap"}, noopPass))
	require.NoError(t, g.AddPass("opaque", []string{"shadowmap"}, []string{"color"}, noopPass))
	// Post additionally reads the shadowmap; the extra edge must not
	// disturb the already valid order.
	require.NoError(t, g.AddPass("post", []string{"color", "shadowmap"}, []string{"surface"}, noopPass))

	require.NoError(t, g.Resolve())
	assert.Equal(t, []string{"shadow", "opaque", "post"}, g.ExecutionOrder())
}

func TestResolveDetectsCycle(t *testing.T) {
	g := NewFrameGraph()

	require.NoError(t, g.ImportBuffer("x", new(wgpu.Buffer)))
	require.NoError(t, g.ImportBuffer("y", new(wgpu.Buffer)))

	require.NoError(t, g.AddPass("a", []string{"y"}, []string{"x"}, noopPass))
	require.NoError(t, g.AddPass("b", []string{"x"}, []string{"y"}, noopPass))

	err := g.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicDependency)
	assert.Equal(t, Building, g.State())
}

func TestResolveIndependentPassesKeepRegistrationOrder(t *testing.T) {
	g := NewFrameGraph()

	require.NoError(t, g.ImportTexture("a", new(wgpu.TextureView)))
	require.NoError(t, g.ImportTexture("b", new(wgpu.TextureView)))
	require.NoError(t, g.ImportTexture("c", new(wgpu.TextureView)))

	require.NoError(t, g.AddPass("third", nil, []string{"c"}, noopPass))
	require.NoError(t, g.AddPass("first", nil, []string{"a"}, noopPass))
	require.NoError(t, g.AddPass("second", nil, []string{"b"}, noopPass))

	require.NoError(t, g.Resolve())
	assert.Equal(t, []string{"third", "first", "second"}, g.ExecutionOrder())
}

func TestResolveRejectsUnknownResource(t *testing.T) {
	g := NewFrameGraph()
	require.NoError(t, g.AddPass("ghost", nil, []string{"missing"}, noopPass))

	err := g.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.Contains(t, err.Error(), "ghost")
}

func TestResolveRejectsUnwrittenTransientRead(t *testing.T) {
	var allocs int
	g := NewFrameGraph(WithAllocator(countingAllocator(&allocs)))

	require.NoError(t, g.CreateTexture("orphan", colorDesc()))
	require.NoError(t, g.AddPass("reader", []string{"orphan"}, nil, noopPass))

	err := g.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestExecuteRunsPassesInResolvedOrder(t *testing.T) {
	var allocs int
	g := NewFrameGraph(WithAllocator(countingAllocator(&allocs)))

	require.NoError(t, g.CreateTexture("shadowmap", shadowDesc()))
	require.NoError(t, g.CreateTexture("color", colorDesc()))
	require.NoError(t, g.ImportTexture("surface", new(wgpu.TextureView)))

	var ran []string
	record := func(ctx context.Context, pc *PassContext) error {
		ran = append(ran, pc.PassName())
		return nil
	}

	require.NoError(t, g.AddPass("post", []string{"color"}, []string{"surface"}, record))
	require.NoError(t, g.AddPass("shadow", nil, []string{"shadowmap"}, record))
	require.NoError(t, g.AddPass("opaque", []string{"shadowmap"}, []string{"color"}, record))

	require.NoError(t, g.Resolve())
	require.NoError(t, g.Execute(context.Background()))
	assert.Equal(t, []string{"shadow", "opaque", "post"}, ran)

	g.Retire()
	assert.Equal(t, Retired, g.State())
}

func TestExecuteAbortsFrameOnPassFailure(t *testing.T) {
	var allocs int
	g := NewFrameGraph(WithAllocator(countingAllocator(&allocs)))

	require.NoError(t, g.CreateTexture("shadowmap", shadowDesc()))
	require.NoError(t, g.CreateTexture("color", colorDesc()))
	require.NoError(t, g.ImportTexture("surface", new(wgpu.TextureView)))

	deviceLost := errors.New("device lost")
	var ranPost bool

	require.NoError(t, g.AddPass("shadow", nil, []string{"shadowmap"}, noopPass))
	require.NoError(t, g.AddPass("opaque", []string{"shadowmap"}, []string{"color"}, func(ctx context.Context, pc *PassContext) error {
		return deviceLost
	}))
	require.NoError(t, g.AddPass("post", []string{"color"}, []string{"surface"}, func(ctx context.Context, pc *PassContext) error {
		ranPost = true
		return nil
	}))

	require.NoError(t, g.Resolve())
	err := g.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPassExecutionFailed)
	assert.ErrorIs(t, err, deviceLost)
	assert.Contains(t, err.Error(), "opaque")
	assert.False(t, ranPost, "passes after a failure must not run")

	g.Retire()
	assert.Equal(t, Retired, g.State())
}

func TestPassContextRejectsUndeclaredAccess(t *testing.T) {
	g := NewFrameGraph()

	require.NoError(t, g.ImportTexture("declared", new(wgpu.TextureView)))
	require.NoError(t, g.ImportTexture("hidden", new(wgpu.TextureView)))

	var undeclaredErr error
	require.NoError(t, g.AddPass("peek", []string{"declared"}, nil, func(ctx context.Context, pc *PassContext) error {
		if _, err := pc.Texture("declared"); err != nil {
			return err
		}
		_, undeclaredErr = pc.Texture("hidden")
		return nil
	}))

	require.NoError(t, g.Resolve())
	require.NoError(t, g.Execute(context.Background()))
	assert.ErrorIs(t, undeclaredErr, ErrUndeclaredResource)
}

func TestTransientLifetimeAndAliasing(t *testing.T) {
	var allocs int
	alloc := countingAllocator(&allocs)
	g := NewFrameGraph(WithAllocator(alloc))

	// Two transients with the same shape and disjoint lifetimes: "early"
	// dies after blurH reads it, before "late" is first written.
	desc := colorDesc()
	require.NoError(t, g.CreateTexture("early", desc))
	require.NoError(t, g.CreateTexture("late", desc))
	require.NoError(t, g.ImportTexture("surface", new(wgpu.TextureView)))

	var earlyView, lateView *wgpu.TextureView

	require.NoError(t, g.AddPass("scene", nil, []string{"early"}, func(ctx context.Context, pc *PassContext) error {
		v, err := pc.Texture("early")
		earlyView = v
		return err
	}))
	require.NoError(t, g.AddPass("blurH", []string{"early"}, []string{"surface"}, noopPass))
	require.NoError(t, g.AddPass("blurV", nil, []string{"late"}, func(ctx context.Context, pc *PassContext) error {
		v, err := pc.Texture("late")
		lateView = v
		return err
	}))
	require.NoError(t, g.AddPass("resolve", []string{"late"}, []string{"surface"}, noopPass))

	require.NoError(t, g.Resolve())
	require.NoError(t, g.Execute(context.Background()))
	g.Retire()

	assert.Equal(t, 1, allocs, "disjoint same-shape transients should share one allocation")
	assert.Same(t, earlyView, lateView)
}

func TestStateMachineRejectsOutOfOrderCalls(t *testing.T) {
	g := NewFrameGraph()
	require.NoError(t, g.ImportTexture("surface", new(wgpu.TextureView)))
	require.NoError(t, g.AddPass("present", nil, []string{"surface"}, noopPass))

	err := g.Execute(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState, "execute before resolve")

	require.NoError(t, g.Resolve())

	err = g.AddPass("late", nil, []string{"surface"}, noopPass)
	assert.ErrorIs(t, err, ErrInvalidState, "add pass after resolve")

	err = g.Resolve()
	assert.ErrorIs(t, err, ErrInvalidState, "double resolve")

	require.NoError(t, g.Execute(context.Background()))
	g.Retire()

	err = g.Execute(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState, "execute after retire")
}

func TestResolveRequiresAllocatorForTransients(t *testing.T) {
	g := NewFrameGraph()
	require.NoError(t, g.CreateTexture("color", colorDesc()))
	require.NoError(t, g.AddPass("scene", nil, []string{"color"}, noopPass))

	err := g.Resolve()
	assert.ErrorIs(t, err, ErrInvalidState)
}
