// Package chain owns the swapchain bound to the window surface together with
// one view per presentable image. A chain is never patched: surface changes
// destroy it and create a new one.
package chain

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/device"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

var PreferredFormat = gpu.SurfaceFormat{
	Format:     gpu.FormatB8G8R8A8UnsignedNormalized,
	ColorSpace: gpu.ColorSpaceSRGBNonlinear,
}

// PresentModePreference is walked in order; FIFO is always available.
var PresentModePreference = []gpu.PresentMode{
	gpu.PresentModeImmediate,
	gpu.PresentModeMailbox,
	gpu.PresentModeFIFO,
}

type Chain struct {
	device    gpu.Device
	swapchain gpu.Swapchain

	Format      gpu.SurfaceFormat
	PresentMode gpu.PresentMode
	Extent      gpu.Extent2D
	Images      []gpu.Image
	Views       []gpu.ImageView
}

// Target is what the pipeline needs to know about a chain.
type Target struct {
	Format gpu.Format
	Extent gpu.Extent2D
	Views  []gpu.ImageView
}

func (c *Chain) Target() Target {
	return Target{Format: c.Format.Format, Extent: c.Extent, Views: c.Views}
}

// Create builds a swapchain for surface sized from desired unless the surface
// dictates its own extent.
func Create(ctx *device.Context, surface gpu.Surface, desired gpu.Extent2D) (*Chain, error) {
	capabilities, err := ctx.Adapter.SurfaceCapabilities(surface)
	if err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}
	formats, err := ctx.Adapter.SurfaceFormats(surface)
	if err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}
	if len(formats) == 0 {
		return nil, gpu.ApplicationError(gpu.CodeSurface, "surface reports no formats")
	}
	presentModes, err := ctx.Adapter.SurfacePresentModes(surface)
	if err != nil {
		return nil, errors.Wrap(err, "query surface present modes")
	}

	surfaceFormat := ChooseSurfaceFormat(formats)
	presentMode := ChoosePresentMode(presentModes)
	extent := ChooseExtent(capabilities, desired)
	imageCount := ImageCount(capabilities)

	info := gpu.SwapchainInfo{
		Surface:       surface,
		MinImageCount: imageCount,
		Format:        surfaceFormat,
		Extent:        extent,
		Usage:         gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferDst,
		PresentMode:   presentMode,
	}

	if !ctx.SharesGraphicsAndPresent() {
		info.ConcurrentAccess = true
		info.QueueFamilies = []int{*ctx.Families.GraphicsFamily, *ctx.Families.PresentFamily}
	}

	swapchain, err := ctx.Device.CreateSwapchain(info)
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	c := &Chain{
		device:      ctx.Device,
		swapchain:   swapchain,
		Format:      surfaceFormat,
		PresentMode: presentMode,
		Extent:      extent,
	}

	err = c.createImageViews()
	if err != nil {
		c.Destroy()
		return nil, err
	}

	log.Printf("Created swapchain %dx%d with %d images (%s)", extent.Width, extent.Height, len(c.Images), presentMode)
	return c, nil
}

func (c *Chain) createImageViews() error {
	images, err := c.swapchain.Images()
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	c.Images = images

	for _, image := range images {
		view, err := c.device.CreateImageView(image, c.Format.Format)
		if err != nil {
			return errors.Wrap(err, "create image view")
		}

		c.Views = append(c.Views, view)
	}

	return nil
}

// Destroy releases the views, then the swapchain.
func (c *Chain) Destroy() {
	if c == nil {
		return
	}

	for _, view := range c.Views {
		view.Destroy()
	}
	c.Views = nil
	c.Images = nil

	if c.swapchain != nil {
		c.swapchain.Destroy()
		c.swapchain = nil
	}
}

// Swapchain exposes the handle for presentation.
func (c *Chain) Swapchain() gpu.Swapchain {
	return c.swapchain
}

// Acquire blocks until an image is available. Stale results are returned
// with the index so the caller can decide whether to rebuild.
func (c *Chain) Acquire(signal gpu.Semaphore) (int, gpu.Result, error) {
	return c.swapchain.AcquireNextImage(signal)
}

func ChooseSurfaceFormat(availableFormats []gpu.SurfaceFormat) gpu.SurfaceFormat {
	if len(availableFormats) == 1 && availableFormats[0].Format == gpu.FormatUndefined {
		return PreferredFormat
	}

	for _, format := range availableFormats {
		if format == PreferredFormat {
			return format
		}
	}

	return availableFormats[0]
}

func ChoosePresentMode(availablePresentModes []gpu.PresentMode) gpu.PresentMode {
	for _, preferred := range PresentModePreference {
		for _, presentMode := range availablePresentModes {
			if presentMode == preferred {
				return presentMode
			}
		}
	}

	return gpu.PresentModeFIFO
}

func ChooseExtent(capabilities gpu.SurfaceCapabilities, desired gpu.Extent2D) gpu.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := desired.Width
	height := desired.Height

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return gpu.Extent2D{Width: width, Height: height}
}

// ImageCount asks for one image more than the minimum. A maximum of zero
// means there is no upper bound.
func ImageCount(capabilities gpu.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}
