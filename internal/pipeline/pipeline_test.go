package pipeline

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/framepipe/internal/chain"
	"github.com/vkngwrapper/framepipe/internal/device"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/gpu/gputest"
)

var testShaders = ShaderBinaries{
	Vertex:   []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00},
	Fragment: []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00, 0xff, 0x00, 0x00, 0x00},
}

type fixture struct {
	driver *gputest.Driver
	ctx    *device.Context
	chain  *chain.Chain
	layout gpu.DescriptorSetLayout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	driver := gputest.New()
	surface := driver.Surface()
	ctx, err := device.Initialize(driver, surface)
	require.NoError(t, err)

	c, err := chain.Create(ctx, surface, gpu.Extent2D{Width: 600, Height: 600})
	require.NoError(t, err)

	layout, err := ctx.Device.CreateDescriptorSetLayout([]gpu.DescriptorBinding{{Binding: 0, Stages: gpu.StageVertex}})
	require.NoError(t, err)

	return &fixture{driver: driver, ctx: ctx, chain: c, layout: layout}
}

func TestBytesToBytecode(t *testing.T) {
	code, err := bytesToBytecode(testShaders.Fragment)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 0x00010000, 0x000000ff}, code)

	_, err = bytesToBytecode([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, gpu.ErrShader))

	_, err = bytesToBytecode(nil)
	assert.True(t, errors.Is(err, gpu.ErrShader))

	_, err = bytesToBytecode([]byte{0, 0, 0, 0})
	assert.True(t, errors.Is(err, gpu.ErrShader))
}

func TestBuild(t *testing.T) {
	f := newFixture(t)

	state, err := Build(f.ctx.Device, f.chain.Target(), testShaders, []gpu.DescriptorSetLayout{f.layout})
	require.NoError(t, err)

	assert.Len(t, state.Framebuffers, 3)
	assert.Equal(t, gpu.Extent2D{Width: 600, Height: 600}, state.Extent)

	layout := state.Layout.(*gputest.PipelineLayout)
	assert.Equal(t, []gpu.PushConstantRange{{Stages: gpu.StageVertex, Offset: 0, Size: 4}}, layout.PushConstants)
	assert.Equal(t, []gpu.DescriptorSetLayout{f.layout}, layout.SetLayouts)

	info := state.Pipeline.(*gputest.Pipeline).Info
	assert.Equal(t, gpu.PrimitiveTopologyTriangleList, info.Topology)
	assert.Equal(t, gpu.CullModeBack, info.CullMode)
	assert.Equal(t, gpu.FrontFaceClockwise, info.FrontFace)
	assert.Equal(t, []gpu.DynamicState{gpu.DynamicStateViewport}, info.DynamicStates)
	assert.Equal(t, gpu.Extent2D{Width: 600, Height: 600}, info.Scissor)
	assert.Equal(t, gpu.BlendFactorSrcAlpha, info.Blend.SrcColorBlendFactor)
	assert.Equal(t, gpu.BlendFactorOneMinusSrcAlpha, info.Blend.DstColorBlendFactor)
	assert.Equal(t, gpu.BlendFactorOne, info.Blend.SrcAlphaBlendFactor)
	assert.Equal(t, gpu.BlendFactorZero, info.Blend.DstAlphaBlendFactor)
	assert.Same(t, state.Cache, info.Cache)
	require.Len(t, info.Stages, 2)
	assert.Equal(t, "main", info.Stages[0].Name)
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, info.Stages[0].Module.(*gputest.ShaderModule).Code)

	renderPass := state.RenderPass.(*gputest.RenderPass)
	assert.Equal(t, f.chain.Format.Format, renderPass.Info.Format)

	state.Destroy()
	live := f.driver.LiveObjects()
	for _, kind := range []string{"shader-module", "pipeline-layout", "pipeline-cache", "render-pass", "pipeline", "framebuffer"} {
		assert.Zero(t, live[kind], kind)
	}
	assert.Equal(t, 1, live["descriptor-set-layout"])
}

func TestRebuildKeepsShadersAndLayout(t *testing.T) {
	f := newFixture(t)

	state, err := Build(f.ctx.Device, f.chain.Target(), testShaders, []gpu.DescriptorSetLayout{f.layout})
	require.NoError(t, err)

	layout := state.Layout
	cache := state.Cache
	vertexShader := state.vertexShader
	oldPipeline := state.Pipeline

	state.ReleaseFramebuffers()
	f.chain.Destroy()

	adapter := f.driver.Adapters[0]
	adapter.Capabilities.MinImageCount = 3
	next, err := chain.Create(f.ctx, f.driver.Surface(), gpu.Extent2D{Width: 800, Height: 400})
	require.NoError(t, err)

	require.NoError(t, state.Rebuild(next.Target()))

	assert.Same(t, layout, state.Layout)
	assert.Same(t, cache, state.Cache)
	assert.Same(t, vertexShader, state.vertexShader)
	assert.NotSame(t, oldPipeline, state.Pipeline)
	assert.Len(t, state.Framebuffers, 4)
	assert.Equal(t, gpu.Extent2D{Width: 800, Height: 400}, state.Extent)
	assert.Equal(t, gpu.Extent2D{Width: 800, Height: 400}, state.Framebuffers[0].(*gputest.Framebuffer).Extent)

	live := f.driver.LiveObjects()
	assert.Equal(t, 1, live["pipeline"])
	assert.Equal(t, 1, live["render-pass"])
	assert.Equal(t, 2, live["shader-module"])
}

func TestBuildReleasesOnFailure(t *testing.T) {
	f := newFixture(t)
	f.driver.Fail("CreateFramebuffer", 1, gpu.VulkanError(gpu.ResultErrorOutOfHostMemory, nil))

	_, err := Build(f.ctx.Device, f.chain.Target(), testShaders, []gpu.DescriptorSetLayout{f.layout})
	require.Error(t, err)

	live := f.driver.LiveObjects()
	for _, kind := range []string{"shader-module", "pipeline-layout", "pipeline-cache", "render-pass", "pipeline", "framebuffer"} {
		assert.Zero(t, live[kind], kind)
	}
}
