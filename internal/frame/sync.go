// Package frame paces the loop and owns the per-slot synchronization
// objects that bound how many frames the GPU may have in flight.
package frame

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

type SlotState int

const (
	SlotAvailable SlotState = iota
	SlotSubmitted
	SlotComplete
)

func (s SlotState) String() string {
	switch s {
	case SlotAvailable:
		return "Available"
	case SlotSubmitted:
		return "Submitted"
	case SlotComplete:
		return "Complete"
	}
	return "unknown"
}

// Slot is everything one frame in flight needs. Its fence must be signaled
// before the command buffer or the uniform region is touched again.
type Slot struct {
	Index          int
	ImageAcquired  gpu.Semaphore
	RenderComplete gpu.Semaphore
	Fence          gpu.Fence
	CommandBuffer  gpu.CommandBuffer
	DescriptorSet  gpu.DescriptorSet
	UniformOffset  int
	State          SlotState
}

type Synchronizer struct {
	device         gpu.Device
	commandPool    gpu.CommandPool
	descriptorPool gpu.DescriptorPool
	commandBuffers []gpu.CommandBuffer

	slots          []*Slot
	currentFrame   int
	imagesInFlight []gpu.Fence
}

// NewSynchronizer creates slots slots recording on family. Each slot gets a
// descriptor set of setLayout and the uniform region at the matching offset.
func NewSynchronizer(device gpu.Device, family int, setLayout gpu.DescriptorSetLayout, slots int, uniformOffsets []int) (*Synchronizer, error) {
	if slots <= 0 {
		return nil, errors.Newf("invalid slot count %d", slots)
	}
	if len(uniformOffsets) < slots {
		return nil, errors.Newf("%d uniform regions for %d slots", len(uniformOffsets), slots)
	}

	s := &Synchronizer{device: device}
	err := s.create(family, setLayout, slots, uniformOffsets)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	return s, nil
}

func (s *Synchronizer) create(family int, setLayout gpu.DescriptorSetLayout, slots int, uniformOffsets []int) error {
	var err error
	s.commandPool, err = s.device.CreateCommandPool(family, gpu.CommandPoolCreateTransient|gpu.CommandPoolCreateResetBuffer)
	if err != nil {
		return errors.Wrap(err, "create command pool")
	}

	s.commandBuffers, err = s.commandPool.AllocateCommandBuffers(slots)
	if err != nil {
		return errors.Wrap(err, "allocate command buffers")
	}

	s.descriptorPool, err = s.device.CreateDescriptorPool(slots, slots)
	if err != nil {
		return errors.Wrap(err, "create descriptor pool")
	}

	var allocLayouts []gpu.DescriptorSetLayout
	for i := 0; i < slots; i++ {
		allocLayouts = append(allocLayouts, setLayout)
	}

	descriptorSets, err := s.descriptorPool.AllocateSets(allocLayouts)
	if err != nil {
		return errors.Wrap(err, "allocate descriptor sets")
	}

	for i := 0; i < slots; i++ {
		slot := &Slot{
			Index:         i,
			CommandBuffer: s.commandBuffers[i],
			DescriptorSet: descriptorSets[i],
			UniformOffset: uniformOffsets[i],
			State:         SlotAvailable,
		}
		s.slots = append(s.slots, slot)

		slot.ImageAcquired, err = s.device.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "create image acquired semaphore")
		}

		slot.RenderComplete, err = s.device.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "create render complete semaphore")
		}

		slot.Fence, err = s.device.CreateFence(true)
		if err != nil {
			return errors.Wrap(err, "create in flight fence")
		}
	}

	return nil
}

func (s *Synchronizer) Slots() []*Slot {
	return s.slots
}

func (s *Synchronizer) Current() *Slot {
	return s.slots[s.currentFrame]
}

// Wait blocks until the current slot has retired along with whichever slot
// last rendered into imageIndex, then resets the current fence so it can be
// submitted again.
func (s *Synchronizer) Wait(imageIndex int) error {
	slot := s.Current()

	err := s.device.WaitForFences([]gpu.Fence{slot.Fence})
	if err != nil {
		return errors.Wrap(err, "wait for in flight fence")
	}
	s.complete(slot.Fence)

	if imageIndex >= 0 && imageIndex < len(s.imagesInFlight) {
		imageFence := s.imagesInFlight[imageIndex]
		if imageFence != nil && imageFence != slot.Fence {
			err = s.device.WaitForFences([]gpu.Fence{imageFence})
			if err != nil {
				return errors.Wrap(err, "wait for image in flight")
			}
			s.complete(imageFence)
		}
		s.imagesInFlight[imageIndex] = slot.Fence
	}

	err = s.device.ResetFences([]gpu.Fence{slot.Fence})
	if err != nil {
		return errors.Wrap(err, "reset in flight fence")
	}
	slot.State = SlotAvailable

	return nil
}

func (s *Synchronizer) complete(fence gpu.Fence) {
	for _, slot := range s.slots {
		if slot.Fence == fence && slot.State == SlotSubmitted {
			slot.State = SlotComplete
		}
	}
}

func (s *Synchronizer) MarkSubmitted() {
	s.Current().State = SlotSubmitted
}

// Advance moves to the next slot round-robin.
func (s *Synchronizer) Advance() {
	s.currentFrame = (s.currentFrame + 1) % len(s.slots)
}

// InFlight counts slots submitted but not yet observed complete.
func (s *Synchronizer) InFlight() int {
	count := 0
	for _, slot := range s.slots {
		if slot.State == SlotSubmitted {
			count++
		}
	}
	return count
}

// ResetImages forgets which slot rendered to which image. Called after the
// chain is rebuilt with count images.
func (s *Synchronizer) ResetImages(count int) {
	s.imagesInFlight = make([]gpu.Fence, count)
}

// Settle marks every submitted slot complete. The caller must have waited
// for device idle.
func (s *Synchronizer) Settle() {
	for _, slot := range s.slots {
		if slot.State == SlotSubmitted {
			slot.State = SlotComplete
		}
	}
}

func (s *Synchronizer) Destroy() {
	if s == nil {
		return
	}

	for _, slot := range s.slots {
		if slot.Fence != nil {
			slot.Fence.Destroy()
		}
		if slot.RenderComplete != nil {
			slot.RenderComplete.Destroy()
		}
		if slot.ImageAcquired != nil {
			slot.ImageAcquired.Destroy()
		}
	}
	s.slots = nil
	s.imagesInFlight = nil

	if s.descriptorPool != nil {
		s.descriptorPool.Destroy()
		s.descriptorPool = nil
	}

	if len(s.commandBuffers) > 0 {
		s.commandPool.FreeCommandBuffers(s.commandBuffers)
		s.commandBuffers = nil
	}

	if s.commandPool != nil {
		s.commandPool.Destroy()
		s.commandPool = nil
	}
}
