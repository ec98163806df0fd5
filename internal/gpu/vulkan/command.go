package vulkan

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

// queueFamilyIgnored is VK_QUEUE_FAMILY_IGNORED: barriers never transfer
// ownership between families.
const queueFamilyIgnored = -1

type CommandPool struct {
	device core1_0.Device
	pool   core1_0.CommandPool
}

func (p *CommandPool) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	buffers, res, err := p.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, tag(res, err)
	}

	var out []gpu.CommandBuffer
	for _, buffer := range buffers {
		out = append(out, &CommandBuffer{buffer: buffer})
	}
	return out, nil
}

func (p *CommandPool) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}

	var raw []core1_0.CommandBuffer
	for _, buffer := range buffers {
		raw = append(raw, buffer.(*CommandBuffer).buffer)
	}
	p.device.FreeCommandBuffers(raw)
}

func (p *CommandPool) Destroy() {
	p.pool.Destroy(nil)
}

type CommandBuffer struct {
	buffer core1_0.CommandBuffer
}

func (c *CommandBuffer) Reset() error {
	res, err := c.buffer.Reset(0)
	return tag(res, err)
}

func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	var flags core1_0.CommandBufferUsageFlags
	if oneTimeSubmit {
		flags = core1_0.CommandBufferUsageOneTimeSubmit
	}

	res, err := c.buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: flags,
	})
	return tag(res, err)
}

func (c *CommandBuffer) End() error {
	res, err := c.buffer.End()
	return tag(res, err)
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions []gpu.BufferCopy) error {
	var copies []core1_0.BufferCopy
	for _, region := range regions {
		copies = append(copies, core1_0.BufferCopy{
			SrcOffset: region.SrcOffset,
			DstOffset: region.DstOffset,
			Size:      region.Size,
		})
	}
	return c.buffer.CmdCopyBuffer(src.(*Buffer).buffer, dst.(*Buffer).buffer, copies)
}

// UpdateBuffer records data inline. The command takes whole 32-bit words, so
// data must be a multiple of four bytes.
func (c *CommandBuffer) UpdateBuffer(dst gpu.Buffer, offset int, data []byte) error {
	c.buffer.CmdUpdateBuffer(dst.(*Buffer).buffer, offset, len(data), data)
	return nil
}

func (c *CommandBuffer) BufferBarrier(src, dst gpu.PipelineStage, barriers []gpu.BufferBarrier) error {
	var bufferBarriers []core1_0.BufferMemoryBarrier
	for _, barrier := range barriers {
		bufferBarriers = append(bufferBarriers, core1_0.BufferMemoryBarrier{
			SrcAccessMask:       core1_0.AccessFlags(barrier.SrcAccess),
			DstAccessMask:       core1_0.AccessFlags(barrier.DstAccess),
			SrcQueueFamilyIndex: queueFamilyIgnored,
			DstQueueFamilyIndex: queueFamilyIgnored,
			Buffer:              barrier.Buffer.(*Buffer).buffer,
			Offset:              barrier.Offset,
			Size:                barrier.Size,
		})
	}

	return c.buffer.CmdPipelineBarrier(core1_0.PipelineStageFlags(src), core1_0.PipelineStageFlags(dst), 0, nil, bufferBarriers, nil)
}

func (c *CommandBuffer) BeginRenderPass(begin gpu.RenderPassBegin) error {
	return c.buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  begin.RenderPass.(*RenderPass).renderPass,
			Framebuffer: begin.Framebuffer.(*Framebuffer).framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: core1_0.Extent2D{Width: begin.Extent.Width, Height: begin.Extent.Height},
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat(begin.ClearColor),
			},
		})
}

func (c *CommandBuffer) EndRenderPass() {
	c.buffer.CmdEndRenderPass()
}

func (c *CommandBuffer) BindPipeline(pipeline gpu.Pipeline) {
	c.buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, pipeline.(*Pipeline).pipeline)
}

func (c *CommandBuffer) SetViewport(viewport gpu.Viewport) {
	c.buffer.CmdSetViewport([]core1_0.Viewport{
		{
			X:        viewport.X,
			Y:        viewport.Y,
			Width:    viewport.Width,
			Height:   viewport.Height,
			MinDepth: viewport.MinDepth,
			MaxDepth: viewport.MaxDepth,
		},
	})
}

func (c *CommandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset int, data []byte) {
	c.buffer.CmdPushConstants(layout.(*PipelineLayout).layout, core1_0.ShaderStageFlags(stages), offset, data)
}

func (c *CommandBuffer) BindVertexBuffer(buffer gpu.Buffer, offset int) {
	c.buffer.CmdBindVertexBuffers([]core1_0.Buffer{buffer.(*Buffer).buffer}, []int{offset})
}

func (c *CommandBuffer) BindIndexBuffer(buffer gpu.Buffer, offset int, indexType gpu.IndexType) {
	c.buffer.CmdBindIndexBuffer(buffer.(*Buffer).buffer, offset, core1_0.IndexType(indexType))
}

func (c *CommandBuffer) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	c.buffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, layout.(*PipelineLayout).layout, []core1_0.DescriptorSet{
		set.(core1_0.DescriptorSet),
	}, nil)
}

func (c *CommandBuffer) DrawIndexed(indexCount, firstIndex, vertexOffset int) {
	c.buffer.CmdDrawIndexed(indexCount, 1, firstIndex, vertexOffset, 0)
}
