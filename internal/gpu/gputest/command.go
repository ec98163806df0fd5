package gputest

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

// Draw is the state captured when a recorded DrawIndexed executes.
type Draw struct {
	Pipeline     *Pipeline
	Framebuffer  *Framebuffer
	Viewport     gpu.Viewport
	PushConstant []byte
	Uniform      UniformBinding

	VertexBuffer *Buffer
	VertexOffset int
	IndexBuffer  *Buffer
	IndexOffset  int
	IndexType    gpu.IndexType

	IndexCount int
	FirstIndex int
	VertexBase int
}

// Vertices resolves every index of the draw into the vertex record it
// addresses, in submission order.
func (d Draw) Vertices(stride int) [][]byte {
	indices := d.IndexBuffer.Bytes()[d.IndexOffset:]
	vertices := d.VertexBuffer.Bytes()[d.VertexOffset:]
	size := d.IndexType.Size()

	records := make([][]byte, 0, d.IndexCount)
	for i := d.FirstIndex; i < d.FirstIndex+d.IndexCount; i++ {
		var index int
		if size == 2 {
			index = int(binary.LittleEndian.Uint16(indices[i*2:]))
		} else {
			index = int(binary.LittleEndian.Uint32(indices[i*4:]))
		}
		index += d.VertexBase
		records = append(records, vertices[index*stride:(index+1)*stride])
	}
	return records
}

// CommandBuffer stores recorded commands as closures that run at submit.
type CommandBuffer struct {
	driver *Driver
	pool   *CommandPool
	fence  *Fence

	commands     []func() error
	recording    bool
	inRenderPass bool

	Submissions int
	Recorded    []string

	// state bound while executing
	draw Draw
}

func (c *CommandBuffer) busy() bool {
	return c.fence != nil && c.fence.pending
}

func (c *CommandBuffer) Reset() error {
	if err := c.driver.check("ResetCommandBuffer"); err != nil {
		return err
	}
	if c.pool.Flags&gpu.CommandPoolCreateResetBuffer == 0 {
		return errors.New("gputest: pool does not allow individual command buffer resets")
	}
	if c.busy() {
		return errors.New("gputest: resetting a command buffer still in flight")
	}
	c.commands = nil
	c.Recorded = nil
	return nil
}

func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	if err := c.driver.check("BeginCommandBuffer"); err != nil {
		return err
	}
	if c.busy() {
		return errors.New("gputest: recording into a command buffer still in flight")
	}
	c.commands = nil
	c.Recorded = nil
	c.recording = true
	c.draw = Draw{}
	return nil
}

func (c *CommandBuffer) End() error {
	if err := c.driver.check("EndCommandBuffer"); err != nil {
		return err
	}
	if c.inRenderPass {
		return errors.New("gputest: ending a command buffer inside a render pass")
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) add(name string, command func() error) {
	c.Recorded = append(c.Recorded, name)
	c.commands = append(c.commands, command)
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions []gpu.BufferCopy) error {
	if c.inRenderPass {
		return errors.New("gputest: copy recorded inside a render pass")
	}
	s, d := src.(*Buffer), dst.(*Buffer)
	c.add("copy", func() error {
		for _, region := range regions {
			if region.SrcOffset+region.Size > s.Info.Size || region.DstOffset+region.Size > d.Info.Size {
				return errors.Newf("gputest: copy region %+v out of bounds", region)
			}
			copy(d.Bytes()[region.DstOffset:region.DstOffset+region.Size], s.Bytes()[region.SrcOffset:])
		}
		return nil
	})
	return nil
}

func (c *CommandBuffer) UpdateBuffer(dst gpu.Buffer, offset int, data []byte) error {
	if c.inRenderPass {
		return errors.New("gputest: inline update recorded inside a render pass")
	}
	if len(data)%4 != 0 || offset%4 != 0 || len(data) > 65536 {
		return errors.Newf("gputest: invalid inline update of %d bytes at %d", len(data), offset)
	}
	d := dst.(*Buffer)
	payload := append([]byte(nil), data...)
	c.add("update", func() error {
		copy(d.Bytes()[offset:offset+len(payload)], payload)
		return nil
	})
	return nil
}

func (c *CommandBuffer) BufferBarrier(src, dst gpu.PipelineStage, barriers []gpu.BufferBarrier) error {
	c.add("barrier", func() error { return nil })
	return nil
}

func (c *CommandBuffer) BeginRenderPass(begin gpu.RenderPassBegin) error {
	if c.inRenderPass {
		return errors.New("gputest: nested render pass")
	}
	c.inRenderPass = true
	fb := begin.Framebuffer.(*Framebuffer)
	c.add("begin-render-pass", func() error {
		c.draw.Framebuffer = fb
		return nil
	})
	return nil
}

func (c *CommandBuffer) EndRenderPass() {
	c.inRenderPass = false
	c.add("end-render-pass", func() error { return nil })
}

func (c *CommandBuffer) BindPipeline(pipeline gpu.Pipeline) {
	p := pipeline.(*Pipeline)
	c.add("bind-pipeline", func() error {
		c.draw.Pipeline = p
		return nil
	})
}

func (c *CommandBuffer) SetViewport(viewport gpu.Viewport) {
	c.add("set-viewport", func() error {
		c.draw.Viewport = viewport
		return nil
	})
}

func (c *CommandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset int, data []byte) {
	payload := append([]byte(nil), data...)
	c.add("push-constants", func() error {
		c.draw.PushConstant = payload
		return nil
	})
}

func (c *CommandBuffer) BindVertexBuffer(buffer gpu.Buffer, offset int) {
	b := buffer.(*Buffer)
	c.add("bind-vertex-buffer", func() error {
		c.draw.VertexBuffer = b
		c.draw.VertexOffset = offset
		return nil
	})
}

func (c *CommandBuffer) BindIndexBuffer(buffer gpu.Buffer, offset int, indexType gpu.IndexType) {
	b := buffer.(*Buffer)
	c.add("bind-index-buffer", func() error {
		c.draw.IndexBuffer = b
		c.draw.IndexOffset = offset
		c.draw.IndexType = indexType
		return nil
	})
}

func (c *CommandBuffer) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	binding := set.(*DescriptorSet).Bindings[0]
	c.add("bind-descriptor-set", func() error {
		c.draw.Uniform = binding
		return nil
	})
}

func (c *CommandBuffer) DrawIndexed(indexCount, firstIndex, vertexOffset int) {
	c.add("draw-indexed", func() error {
		if c.draw.Pipeline == nil || c.draw.Framebuffer == nil {
			return errors.New("gputest: draw without a bound pipeline or render pass")
		}
		draw := c.draw
		draw.IndexCount = indexCount
		draw.FirstIndex = firstIndex
		draw.VertexBase = vertexOffset
		c.driver.Draws = append(c.driver.Draws, draw)
		return nil
	})
}
