package chain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/framepipe/internal/device"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/gpu/gputest"
)

func newContext(t *testing.T) (*gputest.Driver, *gputest.Surface, *device.Context) {
	t.Helper()

	driver := gputest.New()
	surface := driver.Surface()
	ctx, err := device.Initialize(driver, surface)
	require.NoError(t, err)
	return driver, surface, ctx
}

func TestImageCount(t *testing.T) {
	testCases := []struct {
		name     string
		min, max int
		expected int
	}{
		{name: "min plus one", min: 2, max: 4, expected: 3},
		{name: "clamped to max", min: 3, max: 3, expected: 3},
		{name: "unbounded", min: 2, max: 0, expected: 3},
		{name: "single image surface", min: 1, max: 1, expected: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			count := ImageCount(gpu.SurfaceCapabilities{MinImageCount: tc.min, MaxImageCount: tc.max})
			assert.Equal(t, tc.expected, count)
			assert.GreaterOrEqual(t, count, tc.min)
			if tc.max > 0 {
				assert.LessOrEqual(t, count, tc.max)
			}
		})
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	undefined := []gpu.SurfaceFormat{{Format: gpu.FormatUndefined, ColorSpace: gpu.ColorSpaceSRGBNonlinear}}
	assert.Equal(t, PreferredFormat, ChooseSurfaceFormat(undefined))

	withPreferred := []gpu.SurfaceFormat{
		{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
		PreferredFormat,
	}
	assert.Equal(t, PreferredFormat, ChooseSurfaceFormat(withPreferred))

	other := []gpu.SurfaceFormat{
		{Format: gpu.FormatR8G8B8A8UnsignedNormalized, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
		{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
	}
	assert.Equal(t, other[0], ChooseSurfaceFormat(other))
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, gpu.PresentModeImmediate, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox, gpu.PresentModeImmediate}))
	assert.Equal(t, gpu.PresentModeMailbox, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox}))
	assert.Equal(t, gpu.PresentModeFIFO, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFIFORelaxed, gpu.PresentModeFIFO}))
	assert.Equal(t, gpu.PresentModeFIFO, ChoosePresentMode(nil))
}

func TestChooseExtent(t *testing.T) {
	capabilities := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent2D{Width: -1, Height: -1},
		MinImageExtent: gpu.Extent2D{Width: 100, Height: 100},
		MaxImageExtent: gpu.Extent2D{Width: 1000, Height: 800},
	}

	assert.Equal(t, gpu.Extent2D{Width: 600, Height: 600}, ChooseExtent(capabilities, gpu.Extent2D{Width: 600, Height: 600}))
	assert.Equal(t, gpu.Extent2D{Width: 1000, Height: 100}, ChooseExtent(capabilities, gpu.Extent2D{Width: 5000, Height: 10}))

	capabilities.CurrentExtent = gpu.Extent2D{Width: 640, Height: 480}
	assert.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, ChooseExtent(capabilities, gpu.Extent2D{Width: 600, Height: 600}))
}

func TestCreate(t *testing.T) {
	driver, surface, ctx := newContext(t)

	c, err := Create(ctx, surface, gpu.Extent2D{Width: 600, Height: 600})
	require.NoError(t, err)

	assert.Len(t, c.Images, 3)
	assert.Len(t, c.Views, 3)
	assert.Equal(t, PreferredFormat, c.Format)
	assert.Equal(t, gpu.PresentModeMailbox, c.PresentMode)
	assert.Equal(t, gpu.Extent2D{Width: 600, Height: 600}, c.Extent)

	swapchain := c.Swapchain().(*gputest.Swapchain)
	assert.False(t, swapchain.Info.ConcurrentAccess)
	assert.Equal(t, gpu.ImageUsageColorAttachment|gpu.ImageUsageTransferDst, swapchain.Info.Usage)

	target := c.Target()
	assert.Equal(t, gpu.FormatB8G8R8A8UnsignedNormalized, target.Format)
	assert.Len(t, target.Views, 3)

	c.Destroy()
	live := driver.LiveObjects()
	assert.Zero(t, live["swapchain"])
	assert.Zero(t, live["image-view"])
	assert.Equal(t, []string{"swapchain.create 600x600", "image-view.destroy", "image-view.destroy", "image-view.destroy", "swapchain.destroy"}, driver.Events)
}

func TestCreateRejectsSurfaceWithoutFormats(t *testing.T) {
	driver, surface, ctx := newContext(t)
	driver.Adapters[0].Formats = nil

	c, err := Create(ctx, surface, gpu.Extent2D{Width: 600, Height: 600})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, gpu.ErrSurface))
	assert.Zero(t, driver.LiveObjects()["swapchain"])
}

func TestCreateConcurrentWhenPresentFamilyDiffers(t *testing.T) {
	driver := gputest.New()
	adapter := driver.Adapters[0]
	adapter.Families = append(adapter.Families, gpu.QueueFamily{Flags: gpu.QueueGraphics, Count: 1})
	adapter.PresentFamilies = map[int]bool{2: true}
	surface := driver.Surface()

	ctx, err := device.Initialize(driver, surface)
	require.NoError(t, err)

	c, err := Create(ctx, surface, gpu.Extent2D{Width: 600, Height: 600})
	require.NoError(t, err)

	info := c.Swapchain().(*gputest.Swapchain).Info
	assert.True(t, info.ConcurrentAccess)
	assert.Equal(t, []int{0, 2}, info.QueueFamilies)
}

func TestCreateReleasesViewsOnFailure(t *testing.T) {
	driver, surface, ctx := newContext(t)
	driver.Fail("CreateImageView", 2, gpu.VulkanError(gpu.ResultErrorOutOfDeviceMemory, nil))

	_, err := Create(ctx, surface, gpu.Extent2D{Width: 600, Height: 600})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrOutOfDeviceMemory))

	live := driver.LiveObjects()
	assert.Zero(t, live["swapchain"])
	assert.Zero(t, live["image-view"])
}

func TestAcquireForwardsStaleResult(t *testing.T) {
	driver, surface, ctx := newContext(t)
	c, err := Create(ctx, surface, gpu.Extent2D{Width: 600, Height: 600})
	require.NoError(t, err)
	defer c.Destroy()

	driver.AcquireResults = []gpu.Result{gpu.ResultSuboptimal, gpu.ResultErrorOutOfDate}

	index, res, err := c.Acquire(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, gpu.ResultSuboptimal, res)

	_, res, err = c.Acquire(nil)
	assert.Error(t, err)
	assert.True(t, res.Stale())
	assert.True(t, errors.Is(err, gpu.ErrOutOfDate))
}
