// Package renderer ties the device, chain, pipeline, geometry and frame slots
// into one owning context and drives the per-frame protocol over it.
package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/chain"
	"github.com/vkngwrapper/framepipe/internal/device"
	"github.com/vkngwrapper/framepipe/internal/frame"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/pipeline"
	"github.com/vkngwrapper/framepipe/internal/scene"
	"github.com/vkngwrapper/framepipe/internal/upload"
)

// FrameState is what a single Render call draws.
type FrameState struct {
	World *scene.World
	// Alpha is the fraction of an update interval not yet simulated.
	Alpha float64
}

type Renderer struct {
	cfg     Config
	surface gpu.Surface

	requested      gpu.Extent2D
	surfaceChanged bool

	device    *device.Context
	setLayout gpu.DescriptorSetLayout
	geometry  *upload.GeometryBuffer
	chain     *chain.Chain
	pipeline  *pipeline.State
	sync      *frame.Synchronizer

	rebuilds int
}

// New brings up everything needed to draw mesh into surface. The surface
// stays owned by the caller and must outlive the renderer.
func New(cfg Config, instance gpu.Instance, surface gpu.Surface, shaders pipeline.ShaderBinaries, mesh *scene.Mesh, extent gpu.Extent2D) (*Renderer, error) {
	r := &Renderer{
		cfg:       cfg,
		surface:   surface,
		requested: extent,
	}

	err := r.initialize(instance, shaders, mesh)
	if err != nil {
		r.Destroy()
		return nil, err
	}

	return r, nil
}

func (r *Renderer) initialize(instance gpu.Instance, shaders pipeline.ShaderBinaries, mesh *scene.Mesh) error {
	var err error
	r.device, err = device.Initialize(instance, r.surface)
	if err = gpu.Check(err, "Initialize device"); err != nil {
		return err
	}

	r.setLayout, err = r.device.Device.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{
			Binding: 0,
			Stages:  gpu.StageVertex,
		},
	})
	if err = gpu.Check(err, "Create descriptor set layout"); err != nil {
		return err
	}

	vertices, err := mesh.VertexBytes()
	if err = gpu.Check(err, "Encode vertices"); err != nil {
		return err
	}
	indices, err := mesh.IndexBytes()
	if err = gpu.Check(err, "Encode indices"); err != nil {
		return err
	}

	r.geometry, err = upload.UploadStatic(r.device, upload.HostData{
		Vertices:     vertices,
		Indices:      indices,
		IndexType:    gpu.IndexTypeUInt16,
		UniformSize:  scene.UniformSize,
		UniformSlots: r.cfg.Slots,
	})
	if err = gpu.Check(err, "Upload geometry"); err != nil {
		return err
	}

	r.chain, err = chain.Create(r.device, r.surface, r.requested)
	if err = gpu.Check(err, "Create swapchain"); err != nil {
		return err
	}

	r.pipeline, err = pipeline.Build(r.device.Device, r.chain.Target(), shaders, []gpu.DescriptorSetLayout{r.setLayout})
	if err = gpu.Check(err, "Create pipeline"); err != nil {
		return err
	}

	r.sync, err = frame.NewSynchronizer(r.device.Device, *r.device.Families.GraphicsFamily, r.setLayout, r.cfg.Slots, r.geometry.Layout.UniformOffsets)
	if err = gpu.Check(err, "Create frame slots"); err != nil {
		return err
	}
	r.sync.ResetImages(len(r.chain.Images))

	return nil
}

func (r *Renderer) Device() *device.Context           { return r.device }
func (r *Renderer) Chain() *chain.Chain               { return r.chain }
func (r *Renderer) Geometry() *upload.GeometryBuffer  { return r.geometry }
func (r *Renderer) Synchronizer() *frame.Synchronizer { return r.sync }
func (r *Renderer) Pipeline() *pipeline.State         { return r.pipeline }
func (r *Renderer) SurfaceChanged() bool              { return r.surfaceChanged }
func (r *Renderer) Rebuilds() int                     { return r.rebuilds }

// Resize records the new drawable size. The chain is rebuilt after the next
// present whatever the present result.
func (r *Renderer) Resize(width, height int) {
	r.requested = gpu.Extent2D{Width: width, Height: height}
	r.surfaceChanged = true
}

// Render draws one frame into the next chain image and presents it. Stale
// presentation is handled here by rebuilding and is never returned.
func (r *Renderer) Render(state FrameState) error {
	slot := r.sync.Current()

	imageIndex, res, err := r.chain.Acquire(slot.ImageAcquired)
	if res == gpu.ResultErrorOutOfDate {
		return r.Rebuild()
	} else if err != nil {
		return errors.Wrap(err, "acquire next image")
	}
	if res == gpu.ResultSuboptimal {
		r.surfaceChanged = true
	}

	err = r.sync.Wait(imageIndex)
	if err != nil {
		return err
	}

	err = r.record(slot, imageIndex, state)
	if err != nil {
		return errors.Wrap(err, "record frame")
	}

	err = r.device.GraphicsQueue.Submit(slot.Fence, []gpu.SubmitInfo{
		{
			WaitSemaphores:   []gpu.Semaphore{slot.ImageAcquired},
			WaitStages:       []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []gpu.CommandBuffer{slot.CommandBuffer},
			SignalSemaphores: []gpu.Semaphore{slot.RenderComplete},
		},
	})
	if err != nil {
		return errors.Wrap(err, "submit frame")
	}
	r.sync.MarkSubmitted()

	res, err = r.device.PresentQueue.Present(gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{slot.RenderComplete},
		Swapchain:      r.chain.Swapchain(),
		ImageIndex:     imageIndex,
	})
	r.sync.Advance()

	if err != nil && !res.Stale() {
		return errors.Wrap(err, "present frame")
	}
	if res.Stale() || r.surfaceChanged {
		return r.Rebuild()
	}

	return nil
}

func (r *Renderer) record(slot *frame.Slot, imageIndex int, state FrameState) error {
	world := state.World
	if world == nil {
		world = &scene.World{}
	}

	ubo, err := world.Uniforms(r.chain.Extent).Bytes()
	if err != nil {
		return err
	}

	cmd := slot.CommandBuffer
	err = cmd.Reset()
	if err != nil {
		return err
	}

	err = cmd.Begin(true)
	if err != nil {
		return err
	}

	err = r.geometry.RecordUniformWrite(cmd, slot.Index, ubo)
	if err != nil {
		return err
	}

	err = r.device.Device.UpdateUniformDescriptor(slot.DescriptorSet, 0, r.geometry.Buffer, slot.UniformOffset, scene.UniformSize)
	if err != nil {
		return err
	}

	err = cmd.BeginRenderPass(gpu.RenderPassBegin{
		RenderPass:  r.pipeline.RenderPass,
		Framebuffer: r.pipeline.Framebuffers[imageIndex],
		Extent:      r.chain.Extent,
		ClearColor:  r.cfg.ClearColor,
	})
	if err != nil {
		return err
	}

	cmd.BindPipeline(r.pipeline.Pipeline)
	cmd.SetViewport(gpu.FullViewport(r.chain.Extent))
	cmd.PushConstants(r.pipeline.Layout, gpu.StageVertex, 0, world.TimeConstant())
	r.geometry.BindGeometry(cmd)
	cmd.BindDescriptorSet(r.pipeline.Layout, slot.DescriptorSet)
	cmd.DrawIndexed(r.geometry.IndexCount, 0, 0)
	cmd.EndRenderPass()

	return cmd.End()
}

// Rebuild replaces the chain and everything derived from it. The device,
// geometry and frame slots survive. While the requested size is empty the
// rebuild is deferred and the surface stays marked as changed.
func (r *Renderer) Rebuild() error {
	if r.requested.Empty() {
		r.surfaceChanged = true
		return nil
	}

	err := r.device.Device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	r.sync.Settle()

	r.pipeline.ReleaseFramebuffers()
	r.chain.Destroy()
	r.chain = nil
	r.pipeline.Release()

	r.chain, err = chain.Create(r.device, r.surface, r.requested)
	if err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}

	err = r.pipeline.Rebuild(r.chain.Target())
	if err != nil {
		return errors.Wrap(err, "recreate pipeline")
	}

	r.sync.ResetImages(len(r.chain.Images))
	r.surfaceChanged = false
	r.rebuilds++

	return nil
}

// WaitIdle blocks until the device has retired every submission.
func (r *Renderer) WaitIdle() error {
	if r.device == nil || r.device.Device == nil {
		return nil
	}

	err := r.device.Device.WaitIdle()
	if err != nil {
		return err
	}
	if r.sync != nil {
		r.sync.Settle()
	}
	return nil
}

// Destroy releases everything in reverse creation order, ending with the
// device. It is safe on a partially built renderer.
func (r *Renderer) Destroy() error {
	if r == nil {
		return nil
	}

	var err error
	if r.device != nil && r.device.Device != nil {
		err = r.device.Device.WaitIdle()
	}

	r.sync.Destroy()
	r.sync = nil

	if r.pipeline != nil {
		r.pipeline.ReleaseFramebuffers()
	}
	r.chain.Destroy()
	r.chain = nil

	r.pipeline.Destroy()
	r.pipeline = nil

	r.geometry.Destroy()
	r.geometry = nil

	if r.setLayout != nil {
		r.setLayout.Destroy()
		r.setLayout = nil
	}

	deviceErr := r.device.Destroy()
	r.device = nil

	if err != nil {
		return err
	}
	return deviceErr
}
