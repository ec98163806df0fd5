package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

type Adapter struct {
	physicalDevice   core1_0.PhysicalDevice
	surfaceExtension khr_surface.Extension

	properties gpu.AdapterProperties
}

func newAdapter(physicalDevice core1_0.PhysicalDevice, surfaceExtension khr_surface.Extension) (*Adapter, error) {
	props, err := physicalDevice.Properties()
	if err != nil {
		return nil, errors.Wrap(err, "read adapter properties")
	}

	return &Adapter{
		physicalDevice:   physicalDevice,
		surfaceExtension: surfaceExtension,
		properties: gpu.AdapterProperties{
			Name:                            props.DriverName,
			Type:                            gpu.AdapterType(props.DriverType),
			MinUniformBufferOffsetAlignment: props.Limits.MinUniformBufferOffsetAlignment,
		},
	}, nil
}

func (a *Adapter) Properties() gpu.AdapterProperties {
	return a.properties
}

func (a *Adapter) QueueFamilies() []gpu.QueueFamily {
	var families []gpu.QueueFamily
	for _, family := range a.physicalDevice.QueueFamilyProperties() {
		families = append(families, gpu.QueueFamily{
			Flags: gpu.QueueFlags(family.QueueFlags),
			Count: family.QueueCount,
		})
	}
	return families
}

func (a *Adapter) MemoryTypes() []gpu.MemoryType {
	var types []gpu.MemoryType
	for _, memoryType := range a.physicalDevice.MemoryProperties().MemoryTypes {
		types = append(types, gpu.MemoryType{
			PropertyFlags: gpu.MemoryPropertyFlags(memoryType.PropertyFlags),
			HeapIndex:     memoryType.HeapIndex,
		})
	}
	return types
}

func (a *Adapter) Extensions() (map[string]struct{}, error) {
	extensions, res, err := a.physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return nil, tag(res, err)
	}

	names := make(map[string]struct{}, len(extensions))
	for name := range extensions {
		names[name] = struct{}{}
	}
	return names, nil
}

func (a *Adapter) SurfaceSupport(surface gpu.Surface, family int) (bool, error) {
	supported, res, err := surface.(*Surface).surface.PhysicalDeviceSurfaceSupport(a.physicalDevice, family)
	if err != nil {
		return false, tag(res, err)
	}
	return supported, nil
}

func (a *Adapter) SurfaceCapabilities(surface gpu.Surface) (gpu.SurfaceCapabilities, error) {
	caps, res, err := surface.(*Surface).surface.PhysicalDeviceSurfaceCapabilities(a.physicalDevice)
	if err != nil {
		return gpu.SurfaceCapabilities{}, tag(res, err)
	}

	return gpu.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  gpu.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent: gpu.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent: gpu.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}, nil
}

func (a *Adapter) SurfaceFormats(surface gpu.Surface) ([]gpu.SurfaceFormat, error) {
	formats, res, err := surface.(*Surface).surface.PhysicalDeviceSurfaceFormats(a.physicalDevice)
	if err != nil {
		return nil, tag(res, err)
	}

	var out []gpu.SurfaceFormat
	for _, format := range formats {
		out = append(out, gpu.SurfaceFormat{
			Format:     gpu.Format(format.Format),
			ColorSpace: gpu.ColorSpace(format.ColorSpace),
		})
	}
	return out, nil
}

func (a *Adapter) SurfacePresentModes(surface gpu.Surface) ([]gpu.PresentMode, error) {
	modes, res, err := surface.(*Surface).surface.PhysicalDeviceSurfacePresentModes(a.physicalDevice)
	if err != nil {
		return nil, tag(res, err)
	}

	var out []gpu.PresentMode
	for _, mode := range modes {
		out = append(out, gpu.PresentMode(mode))
	}
	return out, nil
}

// CreateDevice opens one queue per distinct family with exactly the given
// extensions.
func (a *Adapter) CreateDevice(queueFamilies []int, extensions []string) (gpu.Device, error) {
	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range queueFamilies {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	device, res, err := a.physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueInfos,
		EnabledExtensionNames: extensions,
	})
	if err != nil {
		return nil, tag(res, err)
	}

	return &Device{
		device:             device,
		physicalDevice:     a.physicalDevice,
		swapchainExtension: khr_swapchain.CreateExtensionFromDevice(device),
	}, nil
}
