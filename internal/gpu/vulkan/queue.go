package vulkan

import (
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

type Queue struct {
	queue              core1_0.Queue
	swapchainExtension khr_swapchain.Extension
}

func (q *Queue) Submit(fence gpu.Fence, infos []gpu.SubmitInfo) error {
	var submitFence core1_0.Fence
	if fence != nil {
		submitFence = fence.(*Fence).fence
	}

	var submits []core1_0.SubmitInfo
	for _, info := range infos {
		var stages []core1_0.PipelineStageFlags
		for _, stage := range info.WaitStages {
			stages = append(stages, core1_0.PipelineStageFlags(stage))
		}

		var buffers []core1_0.CommandBuffer
		for _, buffer := range info.CommandBuffers {
			buffers = append(buffers, buffer.(*CommandBuffer).buffer)
		}

		submits = append(submits, core1_0.SubmitInfo{
			WaitSemaphores:   unwrapSemaphores(info.WaitSemaphores),
			WaitDstStageMask: stages,
			CommandBuffers:   buffers,
			SignalSemaphores: unwrapSemaphores(info.SignalSemaphores),
		})
	}

	res, err := q.queue.Submit(submitFence, submits)
	return tag(res, err)
}

func (q *Queue) Present(info gpu.PresentInfo) (gpu.Result, error) {
	res, err := q.swapchainExtension.QueuePresent(q.queue, khr_swapchain.PresentInfo{
		WaitSemaphores: unwrapSemaphores(info.WaitSemaphores),
		Swapchains:     []khr_swapchain.Swapchain{info.Swapchain.(*Swapchain).swapchain},
		ImageIndices:   []int{info.ImageIndex},
	})
	return gpu.Result(res), tag(res, err)
}

func (q *Queue) WaitIdle() error {
	res, err := q.queue.WaitIdle()
	return tag(res, err)
}

type Swapchain struct {
	swapchain khr_swapchain.Swapchain
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	images, res, err := s.swapchain.SwapchainImages()
	if err != nil {
		return nil, tag(res, err)
	}

	var out []gpu.Image
	for _, image := range images {
		out = append(out, image)
	}
	return out, nil
}

func (s *Swapchain) AcquireNextImage(signal gpu.Semaphore) (int, gpu.Result, error) {
	imageIndex, res, err := s.swapchain.AcquireNextImage(common.NoTimeout, signal.(*Semaphore).semaphore, nil)
	return imageIndex, gpu.Result(res), tag(res, err)
}

func (s *Swapchain) Destroy() {
	s.swapchain.Destroy(nil)
}

func unwrapSemaphores(semaphores []gpu.Semaphore) []core1_0.Semaphore {
	var out []core1_0.Semaphore
	for _, semaphore := range semaphores {
		out = append(out, semaphore.(*Semaphore).semaphore)
	}
	return out
}
