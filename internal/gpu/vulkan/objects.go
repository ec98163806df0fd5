package vulkan

import (
	"unsafe"

	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

var (
	_ gpu.Adapter   = (*Adapter)(nil)
	_ gpu.Device    = (*Device)(nil)
	_ gpu.Queue     = (*Queue)(nil)
	_ gpu.Swapchain = (*Swapchain)(nil)

	_ gpu.CommandPool    = (*CommandPool)(nil)
	_ gpu.CommandBuffer  = (*CommandBuffer)(nil)
	_ gpu.DescriptorPool = (*DescriptorPool)(nil)
	_ gpu.Buffer         = (*Buffer)(nil)
	_ gpu.DeviceMemory   = (*DeviceMemory)(nil)
)

type ImageView struct{ view core1_0.ImageView }

func (v *ImageView) Destroy() { v.view.Destroy(nil) }

type ShaderModule struct{ module core1_0.ShaderModule }

func (m *ShaderModule) Destroy() { m.module.Destroy(nil) }

type DescriptorSetLayout struct{ layout core1_0.DescriptorSetLayout }

func (l *DescriptorSetLayout) Destroy() { l.layout.Destroy(nil) }

type PipelineLayout struct{ layout core1_0.PipelineLayout }

func (l *PipelineLayout) Destroy() { l.layout.Destroy(nil) }

type PipelineCache struct{ cache core1_0.PipelineCache }

func (c *PipelineCache) Destroy() { c.cache.Destroy(nil) }

type RenderPass struct{ renderPass core1_0.RenderPass }

func (p *RenderPass) Destroy() { p.renderPass.Destroy(nil) }

type Pipeline struct{ pipeline core1_0.Pipeline }

func (p *Pipeline) Destroy() { p.pipeline.Destroy(nil) }

type Framebuffer struct{ framebuffer core1_0.Framebuffer }

func (f *Framebuffer) Destroy() { f.framebuffer.Destroy(nil) }

type Semaphore struct{ semaphore core1_0.Semaphore }

func (s *Semaphore) Destroy() { s.semaphore.Destroy(nil) }

type Fence struct{ fence core1_0.Fence }

func (f *Fence) Destroy() { f.fence.Destroy(nil) }

type Buffer struct {
	buffer core1_0.Buffer
}

func (b *Buffer) MemoryRequirements() gpu.MemoryRequirements {
	reqs := b.buffer.MemoryRequirements()
	return gpu.MemoryRequirements{
		Size:           reqs.Size,
		Alignment:      reqs.Alignment,
		MemoryTypeBits: reqs.MemoryTypeBits,
	}
}

func (b *Buffer) BindMemory(memory gpu.DeviceMemory, offset int) error {
	res, err := b.buffer.BindBufferMemory(memory.(*DeviceMemory).memory, offset)
	return tag(res, err)
}

func (b *Buffer) Destroy() {
	b.buffer.Destroy(nil)
}

type DeviceMemory struct {
	memory core1_0.DeviceMemory
}

func (m *DeviceMemory) Write(offset int, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	memoryPtr, res, err := m.memory.Map(offset, len(data), 0)
	if err != nil {
		return tag(res, err)
	}
	defer m.memory.Unmap()

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), len(data))
	copy(dataBuffer, data)
	return nil
}

func (m *DeviceMemory) Free() {
	m.memory.Free(nil)
}

// DescriptorPool hands out raw core1_0.DescriptorSet values; sets are freed
// with the pool.
type DescriptorPool struct {
	device core1_0.Device
	pool   core1_0.DescriptorPool
}

func (p *DescriptorPool) AllocateSets(layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	var setLayouts []core1_0.DescriptorSetLayout
	for _, layout := range layouts {
		setLayouts = append(setLayouts, layout.(*DescriptorSetLayout).layout)
	}

	sets, res, err := p.device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: p.pool,
		SetLayouts:     setLayouts,
	})
	if err != nil {
		return nil, tag(res, err)
	}

	var out []gpu.DescriptorSet
	for _, set := range sets {
		out = append(out, set)
	}
	return out, nil
}

func (p *DescriptorPool) Destroy() {
	p.pool.Destroy(nil)
}
