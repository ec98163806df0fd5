// Package gpu is the boundary between the renderer and the graphics driver.
// Every object is created and destroyed explicitly, and every creation can
// fail. The Vulkan implementation lives in the vulkan subpackage.
package gpu

// Surface is an opaque presentation target owned by the windowing side.
type Surface interface {
	Destroy()
}

type Instance interface {
	EnumerateAdapters() ([]Adapter, error)
}

type Adapter interface {
	Properties() AdapterProperties
	QueueFamilies() []QueueFamily
	MemoryTypes() []MemoryType
	Extensions() (map[string]struct{}, error)

	SurfaceSupport(surface Surface, family int) (bool, error)
	SurfaceCapabilities(surface Surface) (SurfaceCapabilities, error)
	SurfaceFormats(surface Surface) ([]SurfaceFormat, error)
	SurfacePresentModes(surface Surface) ([]PresentMode, error)

	CreateDevice(queueFamilies []int, extensions []string) (Device, error)
}

type Device interface {
	Queue(family, index int) Queue
	WaitIdle() error
	Destroy()

	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	CreateImageView(image Image, format Format) (ImageView, error)

	CreateShaderModule(code []uint32) (ShaderModule, error)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	CreatePipelineLayout(setLayouts []DescriptorSetLayout, pushConstants []PushConstantRange) (PipelineLayout, error)
	CreatePipelineCache() (PipelineCache, error)
	CreateRenderPass(info RenderPassInfo) (RenderPass, error)
	CreateGraphicsPipeline(info GraphicsPipelineInfo) (Pipeline, error)
	CreateFramebuffer(pass RenderPass, view ImageView, extent Extent2D) (Framebuffer, error)

	CreateBuffer(info BufferInfo) (Buffer, error)
	AllocateMemory(size int, memoryType int) (DeviceMemory, error)

	CreateCommandPool(family int, flags CommandPoolFlags) (CommandPool, error)
	CreateDescriptorPool(maxSets, uniformDescriptors int) (DescriptorPool, error)
	UpdateUniformDescriptor(set DescriptorSet, binding int, buffer Buffer, offset, size int) error

	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	// WaitForFences blocks without a timeout until every fence is signaled.
	WaitForFences(fences []Fence) error
	ResetFences(fences []Fence) error
}

type Queue interface {
	Submit(fence Fence, infos []SubmitInfo) error
	// Present returns the raw result alongside the error so callers can
	// tell a stale chain apart from a hard failure.
	Present(info PresentInfo) (Result, error)
	WaitIdle() error
}

type Swapchain interface {
	Images() ([]Image, error)
	// AcquireNextImage blocks without a timeout. Out-of-date is reported
	// as ResultErrorOutOfDate together with a non-nil error.
	AcquireNextImage(signal Semaphore) (int, Result, error)
	Destroy()
}

type Image interface{}

type ImageView interface {
	Destroy()
}

type ShaderModule interface {
	Destroy()
}

type DescriptorSetLayout interface {
	Destroy()
}

type PipelineLayout interface {
	Destroy()
}

type PipelineCache interface {
	Destroy()
}

type RenderPass interface {
	Destroy()
}

type Pipeline interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type Buffer interface {
	MemoryRequirements() MemoryRequirements
	BindMemory(memory DeviceMemory, offset int) error
	Destroy()
}

type DeviceMemory interface {
	// Write maps [offset, offset+len(data)), copies data in and unmaps.
	Write(offset int, data []byte) error
	Free()
}

type CommandPool interface {
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)
	Destroy()
}

type CommandBuffer interface {
	Reset() error
	Begin(oneTimeSubmit bool) error
	End() error

	CopyBuffer(src, dst Buffer, regions []BufferCopy) error
	// UpdateBuffer records an inline write of data into dst. Must be
	// recorded outside a render pass.
	UpdateBuffer(dst Buffer, offset int, data []byte) error
	BufferBarrier(src, dst PipelineStage, barriers []BufferBarrier) error

	BeginRenderPass(begin RenderPassBegin) error
	EndRenderPass()
	BindPipeline(pipeline Pipeline)
	SetViewport(viewport Viewport)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset int, data []byte)
	BindVertexBuffer(buffer Buffer, offset int)
	BindIndexBuffer(buffer Buffer, offset int, indexType IndexType)
	BindDescriptorSet(layout PipelineLayout, set DescriptorSet)
	DrawIndexed(indexCount, firstIndex, vertexOffset int)
}

type DescriptorPool interface {
	AllocateSets(layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	Destroy()
}

type DescriptorSet interface{}

type Semaphore interface {
	Destroy()
}

type Fence interface {
	Destroy()
}
