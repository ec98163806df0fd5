// Package device selects an adapter and owns the logical device and its
// queues. The Context is created first and destroyed last.
package device

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

const (
	SwapchainExtension         = "VK_KHR_swapchain"
	PortabilitySubsetExtension = "VK_KHR_portability_subset"
)

var RequiredExtensions = []string{SwapchainExtension}

type QueueFamilyIndices struct {
	GraphicsFamily *int
	TransferFamily *int
	ComputeFamily  *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.TransferFamily != nil && i.ComputeFamily != nil && i.PresentFamily != nil
}

// Unique lists the distinct families among graphics, transfer and present,
// in that order. Compute is resolved but never opened.
func (i *QueueFamilyIndices) Unique() []int {
	var families []int
	for _, family := range []*int{i.GraphicsFamily, i.TransferFamily, i.PresentFamily} {
		if family == nil {
			continue
		}
		seen := false
		for _, f := range families {
			if f == *family {
				seen = true
				break
			}
		}
		if !seen {
			families = append(families, *family)
		}
	}
	return families
}

type Context struct {
	Adapter    gpu.Adapter
	Properties gpu.AdapterProperties
	Device     gpu.Device
	Families   QueueFamilyIndices

	GraphicsQueue gpu.Queue
	TransferQueue gpu.Queue
	PresentQueue  gpu.Queue
}

// Initialize picks the first adapter able to render to surface and opens one
// queue per unique family.
func Initialize(instance gpu.Instance, surface gpu.Surface) (*Context, error) {
	adapters, err := instance.EnumerateAdapters()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate adapters")
	}

	var adapter gpu.Adapter
	var indices QueueFamilyIndices
	for _, candidate := range adapters {
		candidateIndices, suitable := isAdapterSuitable(candidate, surface)
		if suitable {
			adapter = candidate
			indices = candidateIndices
			break
		}
	}

	if adapter == nil {
		return nil, gpu.ApplicationError(gpu.CodeNoSuitableDevice, "no suitable adapter among %d", len(adapters))
	}

	extensions := append([]string(nil), RequiredExtensions...)

	// Needed to run through a portability implementation such as MoltenVK
	available, err := adapter.Extensions()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}
	if _, supported := available[PortabilitySubsetExtension]; supported {
		extensions = append(extensions, PortabilitySubsetExtension)
	}

	device, err := adapter.CreateDevice(indices.Unique(), extensions)
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	props := adapter.Properties()
	log.Printf("Selected adapter %q (graphics %d, transfer %d, compute %d, present %d)",
		props.Name, *indices.GraphicsFamily, *indices.TransferFamily, *indices.ComputeFamily, *indices.PresentFamily)

	return &Context{
		Adapter:       adapter,
		Properties:    props,
		Device:        device,
		Families:      indices,
		GraphicsQueue: device.Queue(*indices.GraphicsFamily, 0),
		TransferQueue: device.Queue(*indices.TransferFamily, 0),
		PresentQueue:  device.Queue(*indices.PresentFamily, 0),
	}, nil
}

// Destroy waits for the device to drain and releases it. The device is
// released even if the wait fails.
func (c *Context) Destroy() error {
	if c == nil || c.Device == nil {
		return nil
	}

	err := c.Device.WaitIdle()
	c.Device.Destroy()
	c.Device = nil
	return err
}

// SharesGraphicsAndPresent reports whether a single family serves both.
func (c *Context) SharesGraphicsAndPresent() bool {
	return *c.Families.GraphicsFamily == *c.Families.PresentFamily
}

func isAdapterSuitable(adapter gpu.Adapter, surface gpu.Surface) (QueueFamilyIndices, bool) {
	indices, err := FindQueueFamilies(adapter, surface)
	if err != nil || !indices.IsComplete() {
		return indices, false
	}

	if !checkExtensionSupport(adapter) {
		return indices, false
	}

	if adapter.Properties().Type != gpu.AdapterTypeDiscrete {
		return indices, false
	}

	formats, err := adapter.SurfaceFormats(surface)
	if err != nil {
		return indices, false
	}
	presentModes, err := adapter.SurfacePresentModes(surface)
	if err != nil {
		return indices, false
	}

	return indices, len(formats) > 0 && len(presentModes) > 0
}

func checkExtensionSupport(adapter gpu.Adapter) bool {
	extensions, err := adapter.Extensions()
	if err != nil {
		return false
	}

	for _, extension := range RequiredExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

// FindQueueFamilies resolves the first family for each capability. Graphics
// and compute families can also transfer, but a transfer-only family wins
// when the adapter has one.
func FindQueueFamilies(adapter gpu.Adapter, surface gpu.Surface) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}
	var dedicatedTransfer *int

	for familyIdx, family := range adapter.QueueFamilies() {
		if family.Count == 0 {
			continue
		}
		idx := familyIdx

		if indices.GraphicsFamily == nil && family.Flags&gpu.QueueGraphics != 0 {
			indices.GraphicsFamily = &idx
		}

		if indices.ComputeFamily == nil && family.Flags&gpu.QueueCompute != 0 {
			indices.ComputeFamily = &idx
		}

		if family.Flags&(gpu.QueueTransfer|gpu.QueueGraphics|gpu.QueueCompute) != 0 {
			if indices.TransferFamily == nil {
				indices.TransferFamily = &idx
			}
			if dedicatedTransfer == nil && family.Flags&(gpu.QueueGraphics|gpu.QueueCompute) == 0 {
				dedicatedTransfer = &idx
			}
		}

		if indices.PresentFamily == nil {
			supported, err := adapter.SurfaceSupport(surface, familyIdx)
			if err != nil {
				return indices, err
			}
			if supported {
				indices.PresentFamily = &idx
			}
		}
	}

	if dedicatedTransfer != nil {
		indices.TransferFamily = dedicatedTransfer
	}

	return indices, nil
}
