// Package pipeline owns the single graphics pipeline and everything it is
// built from. Shader modules, the pipeline layout and the pipeline cache
// live as long as the State; the render pass, framebuffers and pipeline
// follow the chain and are rebuilt with it.
package pipeline

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/chain"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/scene"
)

const spirvMagic = 0x07230203

// PushConstantSize is one float32 of elapsed time read by the vertex stage.
const PushConstantSize = 4

type ShaderBinaries struct {
	Vertex   []byte
	Fragment []byte
}

type State struct {
	device gpu.Device

	vertexShader   gpu.ShaderModule
	fragmentShader gpu.ShaderModule
	setLayouts     []gpu.DescriptorSetLayout

	Layout gpu.PipelineLayout
	Cache  gpu.PipelineCache

	RenderPass   gpu.RenderPass
	Framebuffers []gpu.Framebuffer
	Pipeline     gpu.Pipeline
	Extent       gpu.Extent2D
}

// Build creates the pipeline for target. setLayouts stay owned by the caller.
func Build(device gpu.Device, target chain.Target, shaders ShaderBinaries, setLayouts []gpu.DescriptorSetLayout) (*State, error) {
	s := &State{device: device, setLayouts: setLayouts}

	err := s.createShaderModules(shaders)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	s.Layout, err = device.CreatePipelineLayout(setLayouts, []gpu.PushConstantRange{
		{
			Stages: gpu.StageVertex,
			Offset: 0,
			Size:   PushConstantSize,
		},
	})
	if err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	s.Cache, err = device.CreatePipelineCache()
	if err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "create pipeline cache")
	}

	err = s.build(target)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	return s, nil
}

// ReleaseFramebuffers drops the framebuffers so the chain views they
// reference can be destroyed.
func (s *State) ReleaseFramebuffers() {
	for _, framebuffer := range s.Framebuffers {
		framebuffer.Destroy()
	}
	s.Framebuffers = nil
}

// Release destroys every object derived from the chain.
func (s *State) Release() {
	s.ReleaseFramebuffers()

	if s.Pipeline != nil {
		s.Pipeline.Destroy()
		s.Pipeline = nil
	}

	if s.RenderPass != nil {
		s.RenderPass.Destroy()
		s.RenderPass = nil
	}
}

// Rebuild recreates the render pass, framebuffers and pipeline for a new
// chain. The device must be idle.
func (s *State) Rebuild(target chain.Target) error {
	s.Release()
	return s.build(target)
}

func (s *State) Destroy() {
	if s == nil {
		return
	}

	s.Release()

	if s.Cache != nil {
		s.Cache.Destroy()
		s.Cache = nil
	}

	if s.Layout != nil {
		s.Layout.Destroy()
		s.Layout = nil
	}

	if s.fragmentShader != nil {
		s.fragmentShader.Destroy()
		s.fragmentShader = nil
	}

	if s.vertexShader != nil {
		s.vertexShader.Destroy()
		s.vertexShader = nil
	}
}

func (s *State) build(target chain.Target) error {
	var err error
	s.Extent = target.Extent

	s.RenderPass, err = s.device.CreateRenderPass(gpu.RenderPassInfo{Format: target.Format})
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}

	s.Pipeline, err = s.device.CreateGraphicsPipeline(s.pipelineInfo(target.Extent))
	if err != nil {
		return errors.Wrap(err, "create graphics pipeline")
	}

	for _, view := range target.Views {
		framebuffer, err := s.device.CreateFramebuffer(s.RenderPass, view, target.Extent)
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}

		s.Framebuffers = append(s.Framebuffers, framebuffer)
	}

	return nil
}

func (s *State) pipelineInfo(extent gpu.Extent2D) gpu.GraphicsPipelineInfo {
	return gpu.GraphicsPipelineInfo{
		Stages: []gpu.ShaderStageInfo{
			{Stage: gpu.StageVertex, Module: s.vertexShader, Name: "main"},
			{Stage: gpu.StageFragment, Module: s.fragmentShader, Name: "main"},
		},
		VertexBindings:   scene.VertexBindings(),
		VertexAttributes: scene.VertexAttributes(),
		Topology:         gpu.PrimitiveTopologyTriangleList,
		CullMode:         gpu.CullModeBack,
		FrontFace:        gpu.FrontFaceClockwise,
		Viewport:         gpu.FullViewport(extent),
		Scissor:          extent,
		Blend: gpu.ColorBlendAttachment{
			BlendEnabled:        true,
			SrcColorBlendFactor: gpu.BlendFactorSrcAlpha,
			DstColorBlendFactor: gpu.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        gpu.BlendOpAdd,
			SrcAlphaBlendFactor: gpu.BlendFactorOne,
			DstAlphaBlendFactor: gpu.BlendFactorZero,
			AlphaBlendOp:        gpu.BlendOpAdd,
		},
		DynamicStates: []gpu.DynamicState{gpu.DynamicStateViewport},
		Layout:        s.Layout,
		RenderPass:    s.RenderPass,
		Cache:         s.Cache,
	}
}

func (s *State) createShaderModules(shaders ShaderBinaries) error {
	vertexCode, err := bytesToBytecode(shaders.Vertex)
	if err != nil {
		return errors.Wrap(err, "vertex shader")
	}

	s.vertexShader, err = s.device.CreateShaderModule(vertexCode)
	if err != nil {
		return errors.Wrap(err, "create vertex shader module")
	}

	fragmentCode, err := bytesToBytecode(shaders.Fragment)
	if err != nil {
		return errors.Wrap(err, "fragment shader")
	}

	s.fragmentShader, err = s.device.CreateShaderModule(fragmentCode)
	if err != nil {
		return errors.Wrap(err, "create fragment shader module")
	}

	return nil
}

// bytesToBytecode repacks a SPIR-V blob into little-endian words.
func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, gpu.ApplicationError(gpu.CodeShader, "spir-v length %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	if byteCode[0] != spirvMagic {
		return nil, gpu.ApplicationError(gpu.CodeShader, "bad spir-v magic %#08x", byteCode[0])
	}

	return byteCode, nil
}
