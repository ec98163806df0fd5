package upload

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/framepipe/internal/device"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/gpu/gputest"
)

func newContext(t *testing.T, driver *gputest.Driver) *device.Context {
	t.Helper()

	ctx, err := device.Initialize(driver, driver.Surface())
	require.NoError(t, err)
	return ctx
}

func sequence(n int, start byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = start + byte(i)
	}
	return data
}

func TestComputeLayout(t *testing.T) {
	layout := ComputeLayout(100, 30, 192, 2, 256)
	assert.Equal(t, 0, layout.VertexOffset)
	assert.Equal(t, 256, layout.IndexOffset)
	assert.Equal(t, []int{512, 768}, layout.UniformOffsets)
	assert.Equal(t, 960, layout.Size)

	layout = ComputeLayout(10, 6, 0, 2, 0)
	assert.Equal(t, 12, layout.IndexOffset)
	assert.Empty(t, layout.UniformOffsets)
	assert.Equal(t, 20, layout.Size)
}

func TestComputeLayoutOffsetsIncrease(t *testing.T) {
	for _, alignment := range []int{1, 4, 16, 64, 256} {
		layout := ComputeLayout(60, 18, 192, 3, alignment)

		offsets := append([]int{layout.VertexOffset, layout.IndexOffset}, layout.UniformOffsets...)
		sizes := append([]int{layout.VertexSize, layout.IndexSize}, 192, 192, 192)
		for i := 1; i < len(offsets); i++ {
			assert.GreaterOrEqual(t, offsets[i], offsets[i-1]+sizes[i-1])
			assert.Zero(t, offsets[i]%4)
			if alignment >= 4 {
				assert.Zero(t, offsets[i]%alignment)
			}
		}
		assert.LessOrEqual(t, offsets[len(offsets)-1]+192, layout.Size)
	}
}

func TestFindMemoryType(t *testing.T) {
	types := []gpu.MemoryType{
		{PropertyFlags: gpu.MemoryPropertyHostVisible},
		{PropertyFlags: gpu.MemoryPropertyDeviceLocal},
		{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent},
	}

	index, err := FindMemoryType(types, 0b111, gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent)
	require.NoError(t, err)
	assert.Equal(t, 2, index)

	index, err = FindMemoryType(types, 0b111, gpu.MemoryPropertyHostVisible)
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	_, err = FindMemoryType(types, 0b101, gpu.MemoryPropertyDeviceLocal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrNoCompatibleMemoryType))
}

func TestUploadStatic(t *testing.T) {
	driver := gputest.New()
	ctx := newContext(t, driver)

	vertices := sequence(60, 1)
	indices := []byte{0, 0, 1, 0, 2, 0}

	geometry, err := UploadStatic(ctx, HostData{
		Vertices:     vertices,
		Indices:      indices,
		IndexType:    gpu.IndexTypeUInt16,
		UniformSize:  192,
		UniformSlots: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, geometry.IndexCount)

	buffer := geometry.Buffer.(*gputest.Buffer)
	data := buffer.Bytes()
	assert.Equal(t, vertices, data[geometry.Layout.VertexOffset:geometry.Layout.VertexOffset+60])
	assert.Equal(t, indices, data[geometry.Layout.IndexOffset:geometry.Layout.IndexOffset+6])
	assert.Equal(t, []int{0, 1}, buffer.Info.QueueFamilies)
	assert.NotZero(t, buffer.Info.Usage&gpu.BufferUsageUniformBuffer)
	assert.Equal(t, gpu.MemoryPropertyDeviceLocal, buffer.Memory.Properties)

	assert.Equal(t, []string{"submit 1", "queue.wait-idle 1"}, driver.Events)
	live := driver.LiveObjects()
	assert.Equal(t, 1, live["buffer"])
	assert.Equal(t, 1, live["memory"])
	assert.Zero(t, live["command-pool"])
	assert.Zero(t, live["command-buffer"])

	geometry.Destroy()
	live = driver.LiveObjects()
	assert.Zero(t, live["buffer"])
	assert.Zero(t, live["memory"])
}

func TestUploadStaticOutOfDeviceMemory(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{name: "tagged", err: gpu.VulkanError(gpu.ResultErrorOutOfDeviceMemory, nil)},
		{name: "untagged", err: errors.New("allocation refused")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			driver := gputest.New()
			ctx := newContext(t, driver)
			driver.Fail("AllocateMemory", 1, tc.err)

			_, err := UploadStatic(ctx, HostData{Vertices: sequence(20, 0), Indices: sequence(6, 0), IndexType: gpu.IndexTypeUInt16})
			require.Error(t, err)
			assert.True(t, errors.Is(err, gpu.ErrOutOfDeviceMemory))

			live := driver.LiveObjects()
			assert.Zero(t, live["buffer"])
			assert.Zero(t, live["memory"])
		})
	}
}

func TestUploadStaticNoCompatibleMemoryType(t *testing.T) {
	driver := gputest.New()
	driver.Adapters[0].Memory = []gpu.MemoryType{
		{PropertyFlags: gpu.MemoryPropertyDeviceLocal},
	}
	ctx := newContext(t, driver)

	_, err := UploadStatic(ctx, HostData{Vertices: sequence(20, 0), Indices: sequence(6, 0), IndexType: gpu.IndexTypeUInt16})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrNoCompatibleMemoryType))

	failure, ok := gpu.FailureOf(err)
	require.True(t, ok)
	assert.Equal(t, gpu.CategoryApplication, failure.Category)

	live := driver.LiveObjects()
	assert.Zero(t, live["buffer"])
	assert.Zero(t, live["memory"])
}

func TestRecordUniformWrite(t *testing.T) {
	driver := gputest.New()
	ctx := newContext(t, driver)

	vertices := sequence(40, 1)
	geometry, err := UploadStatic(ctx, HostData{
		Vertices:     vertices,
		Indices:      sequence(6, 0),
		IndexType:    gpu.IndexTypeUInt16,
		UniformSize:  16,
		UniformSlots: 2,
	})
	require.NoError(t, err)
	defer geometry.Destroy()

	pool, err := ctx.Device.CreateCommandPool(*ctx.Families.GraphicsFamily, gpu.CommandPoolCreateResetBuffer)
	require.NoError(t, err)
	defer pool.Destroy()
	buffers, err := pool.AllocateCommandBuffers(1)
	require.NoError(t, err)
	defer pool.FreeCommandBuffers(buffers)
	cmd := buffers[0]

	uniform := sequence(16, 100)
	require.NoError(t, cmd.Begin(true))
	require.NoError(t, geometry.RecordUniformWrite(cmd, 1, uniform))
	require.NoError(t, cmd.End())
	require.NoError(t, ctx.GraphicsQueue.Submit(nil, []gpu.SubmitInfo{{CommandBuffers: buffers}}))

	data := geometry.Buffer.(*gputest.Buffer).Bytes()
	offset := geometry.Layout.UniformOffsets[1]
	assert.Equal(t, uniform, data[offset:offset+16])
	assert.Equal(t, vertices, data[:40])
	assert.Equal(t, []string{"update", "barrier"}, cmd.(*gputest.CommandBuffer).Recorded)

	assert.Error(t, geometry.RecordUniformWrite(cmd, 2, uniform))
	assert.Error(t, geometry.RecordUniformWrite(cmd, 0, sequence(20, 0)))
}
