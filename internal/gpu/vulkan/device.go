package vulkan

import (
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

type Device struct {
	device             core1_0.Device
	physicalDevice     core1_0.PhysicalDevice
	swapchainExtension khr_swapchain.Extension
}

func (d *Device) Queue(family, index int) gpu.Queue {
	return &Queue{
		queue:              d.device.GetQueue(family, index),
		swapchainExtension: d.swapchainExtension,
	}
}

func (d *Device) WaitIdle() error {
	res, err := d.device.WaitIdle()
	return tag(res, err)
}

func (d *Device) Destroy() {
	d.device.Destroy(nil)
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	sharingMode := core1_0.SharingModeExclusive
	var queueFamilies []int
	if info.ConcurrentAccess {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilies = info.QueueFamilies
	}

	caps, res, err := info.Surface.(*Surface).surface.PhysicalDeviceSurfaceCapabilities(d.physicalDevice)
	if err != nil {
		return nil, tag(res, err)
	}

	swapchain, res, err := d.swapchainExtension.CreateSwapchain(d.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: info.Surface.(*Surface).surface,

		MinImageCount:    info.MinImageCount,
		ImageFormat:      core1_0.Format(info.Format.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      core1_0.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageFlags(info.Usage),

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilies,

		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        true,
	})
	if err != nil {
		return nil, tag(res, err)
	}

	return &Swapchain{swapchain: swapchain}, nil
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	view, res, err := d.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image.(core1_0.Image),
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &ImageView{view: view}, nil
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	module, res, err := d.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &ShaderModule{module: module}, nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	var layoutBindings []core1_0.DescriptorSetLayoutBinding
	for _, binding := range bindings {
		layoutBindings = append(layoutBindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         binding.Binding,
			DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      core1_0.ShaderStageFlags(binding.Stages),
		})
	}

	layout, res, err := d.device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: layoutBindings,
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &DescriptorSetLayout{layout: layout}, nil
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout, pushConstants []gpu.PushConstantRange) (gpu.PipelineLayout, error) {
	var layouts []core1_0.DescriptorSetLayout
	for _, layout := range setLayouts {
		layouts = append(layouts, layout.(*DescriptorSetLayout).layout)
	}

	var ranges []core1_0.PushConstantRange
	for _, pushConstant := range pushConstants {
		ranges = append(ranges, core1_0.PushConstantRange{
			StageFlags: core1_0.ShaderStageFlags(pushConstant.Stages),
			Offset:     pushConstant.Offset,
			Size:       pushConstant.Size,
		})
	}

	layout, res, err := d.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts:         layouts,
		PushConstantRanges: ranges,
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &PipelineLayout{layout: layout}, nil
}

func (d *Device) CreatePipelineCache() (gpu.PipelineCache, error) {
	cache, res, err := d.device.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{})
	if err != nil {
		return nil, tag(res, err)
	}
	return &PipelineCache{cache: cache}, nil
}

// CreateRenderPass builds a single-subpass pass with one cleared color
// attachment that ends ready for presentation.
func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	renderPass, res, err := d.device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         core1_0.Format(info.Format),
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &RenderPass{renderPass: renderPass}, nil
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	var stages []core1_0.PipelineShaderStageCreateInfo
	for _, stage := range info.Stages {
		stages = append(stages, core1_0.PipelineShaderStageCreateInfo{
			Stage:  core1_0.ShaderStageFlags(stage.Stage),
			Module: stage.Module.(*ShaderModule).module,
			Name:   stage.Name,
		})
	}

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{}
	for _, binding := range info.VertexBindings {
		vertexInput.VertexBindingDescriptions = append(vertexInput.VertexBindingDescriptions, core1_0.VertexInputBindingDescription{
			Binding:   binding.Binding,
			Stride:    binding.Stride,
			InputRate: core1_0.VertexInputRateVertex,
		})
	}
	for _, attribute := range info.VertexAttributes {
		vertexInput.VertexAttributeDescriptions = append(vertexInput.VertexAttributeDescriptions, core1_0.VertexInputAttributeDescription{
			Binding:  attribute.Binding,
			Location: attribute.Location,
			Format:   core1_0.Format(attribute.Format),
			Offset:   attribute.Offset,
		})
	}

	var dynamicStates []core1_0.DynamicState
	for _, state := range info.DynamicStates {
		dynamicStates = append(dynamicStates, core1_0.DynamicState(state))
	}
	var dynamicState *core1_0.PipelineDynamicStateCreateInfo
	if len(dynamicStates) > 0 {
		dynamicState = &core1_0.PipelineDynamicStateCreateInfo{
			DynamicStates: dynamicStates,
		}
	}

	var cache core1_0.PipelineCache
	if info.Cache != nil {
		cache = info.Cache.(*PipelineCache).cache
	}

	blend := info.Blend
	pipelines, res, err := d.device.CreateGraphicsPipelines(cache, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages:           stages,
			VertexInputState: vertexInput,
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology:               core1_0.PrimitiveTopology(info.Topology),
				PrimitiveRestartEnable: false,
			},
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{
					{
						X:        info.Viewport.X,
						Y:        info.Viewport.Y,
						Width:    info.Viewport.Width,
						Height:   info.Viewport.Height,
						MinDepth: info.Viewport.MinDepth,
						MaxDepth: info.Viewport.MaxDepth,
					},
				},
				Scissors: []core1_0.Rect2D{
					{
						Offset: core1_0.Offset2D{X: 0, Y: 0},
						Extent: core1_0.Extent2D{Width: info.Scissor.Width, Height: info.Scissor.Height},
					},
				},
			},
			RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
				DepthClampEnable:        false,
				RasterizerDiscardEnable: false,

				PolygonMode: core1_0.PolygonModeFill,
				CullMode:    core1_0.CullModeFlags(info.CullMode),
				FrontFace:   core1_0.FrontFace(info.FrontFace),

				DepthBiasEnable: false,

				LineWidth: 1.0,
			},
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				SampleShadingEnable:  false,
				RasterizationSamples: core1_0.Samples1,
				MinSampleShading:     1.0,
			},
			ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
				LogicOpEnabled: false,
				LogicOp:        core1_0.LogicOpCopy,

				BlendConstants: [4]float32{0, 0, 0, 0},
				Attachments: []core1_0.PipelineColorBlendAttachmentState{
					{
						BlendEnabled:        blend.BlendEnabled,
						SrcColorBlendFactor: core1_0.BlendFactor(blend.SrcColorBlendFactor),
						DstColorBlendFactor: core1_0.BlendFactor(blend.DstColorBlendFactor),
						ColorBlendOp:        core1_0.BlendOp(blend.ColorBlendOp),
						SrcAlphaBlendFactor: core1_0.BlendFactor(blend.SrcAlphaBlendFactor),
						DstAlphaBlendFactor: core1_0.BlendFactor(blend.DstAlphaBlendFactor),
						AlphaBlendOp:        core1_0.BlendOp(blend.AlphaBlendOp),
						ColorWriteMask:      core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
					},
				},
			},
			DynamicState:      dynamicState,
			Layout:            info.Layout.(*PipelineLayout).layout,
			RenderPass:        info.RenderPass.(*RenderPass).renderPass,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &Pipeline{pipeline: pipelines[0]}, nil
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, view gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	framebuffer, res, err := d.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass: pass.(*RenderPass).renderPass,
		Layers:     1,
		Attachments: []core1_0.ImageView{
			view.(*ImageView).view,
		},
		Width:  extent.Width,
		Height: extent.Height,
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &Framebuffer{framebuffer: framebuffer}, nil
}

// CreateBuffer shares the buffer between the listed families when more than
// one is given.
func (d *Device) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, error) {
	bufferInfo := core1_0.BufferCreateInfo{
		Size:        info.Size,
		Usage:       core1_0.BufferUsageFlags(info.Usage),
		SharingMode: core1_0.SharingModeExclusive,
	}
	if len(info.QueueFamilies) > 1 {
		bufferInfo.SharingMode = core1_0.SharingModeConcurrent
		bufferInfo.QueueFamilyIndices = info.QueueFamilies
	}

	buffer, res, err := d.device.CreateBuffer(nil, bufferInfo)
	if err != nil {
		return nil, tag(res, err)
	}
	return &Buffer{buffer: buffer}, nil
}

func (d *Device) AllocateMemory(size int, memoryType int) (gpu.DeviceMemory, error) {
	memory, res, err := d.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryType,
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &DeviceMemory{memory: memory}, nil
}

func (d *Device) CreateCommandPool(family int, flags gpu.CommandPoolFlags) (gpu.CommandPool, error) {
	pool, res, err := d.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateFlags(flags),
		QueueFamilyIndex: family,
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &CommandPool{device: d.device, pool: pool}, nil
}

func (d *Device) CreateDescriptorPool(maxSets, uniformDescriptors int) (gpu.DescriptorPool, error) {
	pool, res, err := d.device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: maxSets,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: uniformDescriptors,
			},
		},
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &DescriptorPool{device: d.device, pool: pool}, nil
}

func (d *Device) UpdateUniformDescriptor(set gpu.DescriptorSet, binding int, buffer gpu.Buffer, offset, size int) error {
	return d.device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:          set.(core1_0.DescriptorSet),
			DstBinding:      binding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeUniformBuffer,

			BufferInfo: []core1_0.DescriptorBufferInfo{
				{
					Buffer: buffer.(*Buffer).buffer,
					Offset: offset,
					Range:  size,
				},
			},
		},
	}, nil)
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	semaphore, res, err := d.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, tag(res, err)
	}
	return &Semaphore{semaphore: semaphore}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}

	fence, res, err := d.device.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: flags,
	})
	if err != nil {
		return nil, tag(res, err)
	}
	return &Fence{fence: fence}, nil
}

func (d *Device) WaitForFences(fences []gpu.Fence) error {
	res, err := d.device.WaitForFences(true, common.NoTimeout, unwrapFences(fences))
	return tag(res, err)
}

func (d *Device) ResetFences(fences []gpu.Fence) error {
	res, err := d.device.ResetFences(unwrapFences(fences))
	return tag(res, err)
}

func unwrapFences(fences []gpu.Fence) []core1_0.Fence {
	var out []core1_0.Fence
	for _, fence := range fences {
		out = append(out, fence.(*Fence).fence)
	}
	return out
}
