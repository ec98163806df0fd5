// Package upload places static geometry and the per-slot uniform regions in
// one device-local buffer. Vertex and index data go through a staging buffer
// once; uniform regions are rewritten inline by each frame's command buffer.
package upload

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/device"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

// Layout describes where each region lives inside the geometry buffer. Every
// region starts on an alignment boundary.
type Layout struct {
	VertexOffset int
	VertexSize   int
	IndexOffset  int
	IndexSize    int

	UniformOffsets []int
	UniformSize    int

	Size int
}

func alignUp(offset, alignment int) int {
	return (offset + alignment - 1) / alignment * alignment
}

// ComputeLayout packs vertex, index and uniformSlots uniform regions in that
// order. Inline buffer updates need 4-byte offsets, so the alignment never
// drops below 4.
func ComputeLayout(vertexBytes, indexBytes, uniformSize, uniformSlots, alignment int) Layout {
	if alignment < 4 {
		alignment = 4
	}

	layout := Layout{
		VertexOffset: 0,
		VertexSize:   vertexBytes,
		IndexSize:    indexBytes,
		UniformSize:  uniformSize,
	}

	offset := layout.VertexOffset + vertexBytes
	layout.IndexOffset = alignUp(offset, alignment)
	offset = layout.IndexOffset + indexBytes

	if uniformSize > 0 {
		for i := 0; i < uniformSlots; i++ {
			uniformOffset := alignUp(offset, alignment)
			layout.UniformOffsets = append(layout.UniformOffsets, uniformOffset)
			offset = uniformOffset + uniformSize
		}
	}

	layout.Size = alignUp(offset, 4)
	return layout
}

type HostData struct {
	Vertices  []byte
	Indices   []byte
	IndexType gpu.IndexType

	UniformSize  int
	UniformSlots int
}

func (h HostData) IndexCount() int {
	return len(h.Indices) / h.IndexType.Size()
}

type GeometryBuffer struct {
	Buffer gpu.Buffer
	Memory gpu.DeviceMemory
	Layout Layout

	IndexType  gpu.IndexType
	IndexCount int
}

// FindMemoryType returns the first type allowed by typeBits that has every
// requested property.
func FindMemoryType(types []gpu.MemoryType, typeBits uint32, properties gpu.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range types {
		typeBit := uint32(1 << i)

		if (typeBits&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, gpu.ApplicationError(gpu.CodeNoCompatibleMemoryType, "no memory type with properties %#x in bits %#x", uint32(properties), typeBits)
}

// UploadStatic creates the geometry buffer and fills its vertex and index
// regions through a staging copy on the transfer queue. It blocks until the
// copy completes.
func UploadStatic(ctx *device.Context, data HostData) (*GeometryBuffer, error) {
	layout := ComputeLayout(len(data.Vertices), len(data.Indices), data.UniformSize, data.UniformSlots, ctx.Properties.MinUniformBufferOffsetAlignment)

	var sharedFamilies []int
	if *ctx.Families.GraphicsFamily != *ctx.Families.TransferFamily {
		sharedFamilies = []int{*ctx.Families.GraphicsFamily, *ctx.Families.TransferFamily}
	}

	usage := gpu.BufferUsageTransferDst | gpu.BufferUsageVertexBuffer | gpu.BufferUsageIndexBuffer
	if data.UniformSize > 0 {
		usage |= gpu.BufferUsageUniformBuffer
	}

	buffer, memory, err := createBuffer(ctx, layout.Size, usage, gpu.MemoryPropertyDeviceLocal, sharedFamilies)
	g := &GeometryBuffer{
		Buffer:     buffer,
		Memory:     memory,
		Layout:     layout,
		IndexType:  data.IndexType,
		IndexCount: data.IndexCount(),
	}
	if err != nil {
		g.Destroy()
		return nil, errors.Wrap(err, "create geometry buffer")
	}

	err = g.stage(ctx, data)
	if err != nil {
		g.Destroy()
		return nil, err
	}

	return g, nil
}

func (g *GeometryBuffer) stage(ctx *device.Context, data HostData) error {
	stagingBuffer, stagingBufferMemory, err := createBuffer(ctx, g.Layout.Size, gpu.BufferUsageTransferSrc, gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent, nil)
	if stagingBuffer != nil {
		defer stagingBuffer.Destroy()
	}
	if stagingBufferMemory != nil {
		defer stagingBufferMemory.Free()
	}

	if err != nil {
		return errors.Wrap(err, "create staging buffer")
	}

	host := make([]byte, g.Layout.IndexOffset+g.Layout.IndexSize)
	copy(host[g.Layout.VertexOffset:], data.Vertices)
	copy(host[g.Layout.IndexOffset:], data.Indices)

	err = stagingBufferMemory.Write(0, host)
	if err != nil {
		return errors.Wrap(err, "write staging memory")
	}

	pool, err := ctx.Device.CreateCommandPool(*ctx.Families.TransferFamily, gpu.CommandPoolCreateTransient)
	if err != nil {
		return errors.Wrap(err, "create transfer command pool")
	}
	defer pool.Destroy()

	buffers, err := pool.AllocateCommandBuffers(1)
	if err != nil {
		return errors.Wrap(err, "allocate transfer command buffer")
	}
	defer pool.FreeCommandBuffers(buffers)
	cmd := buffers[0]

	err = cmd.Begin(true)
	if err != nil {
		return err
	}

	err = cmd.CopyBuffer(stagingBuffer, g.Buffer, []gpu.BufferCopy{
		{
			SrcOffset: g.Layout.VertexOffset,
			DstOffset: g.Layout.VertexOffset,
			Size:      g.Layout.VertexSize,
		},
		{
			SrcOffset: g.Layout.IndexOffset,
			DstOffset: g.Layout.IndexOffset,
			Size:      g.Layout.IndexSize,
		},
	})
	if err != nil {
		return err
	}

	err = cmd.End()
	if err != nil {
		return err
	}

	err = ctx.TransferQueue.Submit(nil, []gpu.SubmitInfo{
		{
			CommandBuffers: []gpu.CommandBuffer{cmd},
		},
	})
	if err != nil {
		return errors.Wrap(err, "submit geometry upload")
	}

	return errors.Wrap(ctx.TransferQueue.WaitIdle(), "wait for geometry upload")
}

func createBuffer(ctx *device.Context, size int, usage gpu.BufferUsage, properties gpu.MemoryPropertyFlags, sharedFamilies []int) (gpu.Buffer, gpu.DeviceMemory, error) {
	buffer, err := ctx.Device.CreateBuffer(gpu.BufferInfo{
		Size:          size,
		Usage:         usage,
		QueueFamilies: sharedFamilies,
	})
	if err != nil {
		return nil, nil, err
	}

	memRequirements := buffer.MemoryRequirements()
	memoryTypeIndex, err := FindMemoryType(ctx.Adapter.MemoryTypes(), memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return buffer, nil, err
	}

	memory, err := ctx.Device.AllocateMemory(memRequirements.Size, memoryTypeIndex)
	if err != nil {
		if _, tagged := gpu.FailureOf(err); !tagged {
			err = gpu.VulkanError(gpu.ResultErrorOutOfDeviceMemory, err)
		}
		return buffer, nil, err
	}

	err = buffer.BindMemory(memory, 0)
	return buffer, memory, err
}

// BindGeometry binds the vertex and index regions.
func (g *GeometryBuffer) BindGeometry(cmd gpu.CommandBuffer) {
	cmd.BindVertexBuffer(g.Buffer, g.Layout.VertexOffset)
	cmd.BindIndexBuffer(g.Buffer, g.Layout.IndexOffset, g.IndexType)
}

// RecordUniformWrite records an inline write of data into the slot's uniform
// region followed by a barrier that makes it visible to the vertex stage.
// Must be recorded before the render pass begins.
func (g *GeometryBuffer) RecordUniformWrite(cmd gpu.CommandBuffer, slot int, data []byte) error {
	if slot < 0 || slot >= len(g.Layout.UniformOffsets) {
		return errors.Newf("no uniform region for slot %d", slot)
	}
	if len(data) > g.Layout.UniformSize {
		return errors.Newf("uniform data of %d bytes exceeds region of %d", len(data), g.Layout.UniformSize)
	}

	offset := g.Layout.UniformOffsets[slot]
	err := cmd.UpdateBuffer(g.Buffer, offset, data)
	if err != nil {
		return err
	}

	return cmd.BufferBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageVertexShader, []gpu.BufferBarrier{
		{
			SrcAccess: gpu.AccessTransferWrite,
			DstAccess: gpu.AccessUniformRead,
			Buffer:    g.Buffer,
			Offset:    offset,
			Size:      len(data),
		},
	})
}

// Destroy releases the buffer, then its memory.
func (g *GeometryBuffer) Destroy() {
	if g == nil {
		return
	}

	if g.Buffer != nil {
		g.Buffer.Destroy()
		g.Buffer = nil
	}

	if g.Memory != nil {
		g.Memory.Free()
		g.Memory = nil
	}
}
