// Package gputest is an in-memory implementation of the gpu driver boundary.
// It records every call, emulates fences and executes buffer commands into
// host byte slices at submit time. The GPU side only makes progress when the
// CPU waits on a fence or on idle, which keeps in-flight accounting exact.
package gputest

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

// Driver is the shared state behind one fake instance.
type Driver struct {
	Adapters []*Adapter

	// Events is an ordered log of the calls that matter for frame ordering.
	Events []string

	Acquires int
	Submits  int
	Presents int

	InFlight    int
	MaxInFlight int

	// AcquireResults and PresentResults are consumed front to back. An empty
	// queue yields ResultSuccess.
	AcquireResults []gpu.Result
	PresentResults []gpu.Result

	// Live counts created minus destroyed objects by kind.
	Live map[string]int

	Draws []Draw

	faults  map[string]*fault
	pending []*Fence
	device  *Device
}

type fault struct {
	skip int
	err  error
}

// New returns a driver with a single adapter that satisfies every
// requirement of the renderer.
func New() *Driver {
	d := &Driver{Live: map[string]int{}, faults: map[string]*fault{}}
	d.Adapters = []*Adapter{d.NewAdapter("Fake Discrete GPU")}
	return d
}

// NewAdapter builds a suitable adapter bound to this driver. Callers may
// tweak its fields before the first enumeration.
func (d *Driver) NewAdapter(name string) *Adapter {
	return &Adapter{
		driver: d,
		Props: gpu.AdapterProperties{
			Name:                            name,
			Type:                            gpu.AdapterTypeDiscrete,
			MinUniformBufferOffsetAlignment: 256,
		},
		Families: []gpu.QueueFamily{
			{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, Count: 16},
			{Flags: gpu.QueueTransfer, Count: 2},
		},
		PresentFamilies: map[int]bool{0: true},
		Memory: []gpu.MemoryType{
			{PropertyFlags: gpu.MemoryPropertyDeviceLocal},
			{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent},
		},
		Exts: map[string]struct{}{"VK_KHR_swapchain": {}},
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  4,
			CurrentExtent:  gpu.Extent2D{Width: -1, Height: -1},
			MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			{Format: gpu.FormatB8G8R8A8UnsignedNormalized, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox},
	}
}

// Fail makes the named operation fail with err after skip successful calls.
func (d *Driver) Fail(op string, skip int, err error) {
	d.faults[op] = &fault{skip: skip, err: err}
}

// Surface returns a presentation target for this driver.
func (d *Driver) Surface() *Surface {
	d.Live["surface"]++
	return &Surface{driver: d}
}

// Device is the logical device created through the adapter, if any.
func (d *Driver) Device() *Device {
	return d.device
}

// ResetCounters clears call counters and the event log, typically after
// initialization so a test only sees steady-state traffic.
func (d *Driver) ResetCounters() {
	d.Events = nil
	d.Acquires = 0
	d.Submits = 0
	d.Presents = 0
	d.MaxInFlight = d.InFlight
	d.Draws = nil
}

// LiveObjects returns the kinds that still have undestroyed objects.
func (d *Driver) LiveObjects() map[string]int {
	live := map[string]int{}
	for kind, count := range d.Live {
		if count != 0 {
			live[kind] = count
		}
	}
	return live
}

func (d *Driver) EnumerateAdapters() ([]gpu.Adapter, error) {
	if err := d.check("EnumerateAdapters"); err != nil {
		return nil, err
	}
	adapters := make([]gpu.Adapter, 0, len(d.Adapters))
	for _, adapter := range d.Adapters {
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func (d *Driver) check(op string) error {
	f, ok := d.faults[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(d.faults, op)
	return f.err
}

func (d *Driver) record(format string, args ...interface{}) {
	d.Events = append(d.Events, fmt.Sprintf(format, args...))
}

func (d *Driver) create(kind string) {
	d.Live[kind]++
}

func (d *Driver) destroy(kind string) {
	d.Live[kind]--
	if d.Live[kind] < 0 {
		panic(fmt.Sprintf("gputest: %s destroyed twice", kind))
	}
}

func (d *Driver) retire(fence *Fence) {
	for i, p := range d.pending {
		if p == fence {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			break
		}
	}
	fence.pending = false
	fence.signaled = true
	d.InFlight--
}

func (d *Driver) retireAll() {
	for len(d.pending) > 0 {
		d.retire(d.pending[0])
	}
}

func nextResult(queue *[]gpu.Result) gpu.Result {
	if len(*queue) == 0 {
		return gpu.ResultSuccess
	}
	res := (*queue)[0]
	*queue = (*queue)[1:]
	return res
}

type Surface struct {
	driver    *Driver
	destroyed bool
}

func (s *Surface) Destroy() {
	s.destroyed = true
	s.driver.destroy("surface")
}

type Adapter struct {
	driver *Driver

	Props           gpu.AdapterProperties
	Families        []gpu.QueueFamily
	PresentFamilies map[int]bool
	Memory          []gpu.MemoryType
	Exts            map[string]struct{}
	Capabilities    gpu.SurfaceCapabilities
	Formats         []gpu.SurfaceFormat
	PresentModes    []gpu.PresentMode

	// Requested holds the arguments of the last CreateDevice call.
	RequestedFamilies   []int
	RequestedExtensions []string
}

func (a *Adapter) Properties() gpu.AdapterProperties { return a.Props }
func (a *Adapter) QueueFamilies() []gpu.QueueFamily  { return a.Families }
func (a *Adapter) MemoryTypes() []gpu.MemoryType     { return a.Memory }

func (a *Adapter) Extensions() (map[string]struct{}, error) {
	return a.Exts, a.driver.check("Extensions")
}

func (a *Adapter) SurfaceSupport(surface gpu.Surface, family int) (bool, error) {
	if err := a.driver.check("SurfaceSupport"); err != nil {
		return false, err
	}
	return a.PresentFamilies[family], nil
}

func (a *Adapter) SurfaceCapabilities(surface gpu.Surface) (gpu.SurfaceCapabilities, error) {
	return a.Capabilities, a.driver.check("SurfaceCapabilities")
}

func (a *Adapter) SurfaceFormats(surface gpu.Surface) ([]gpu.SurfaceFormat, error) {
	return a.Formats, a.driver.check("SurfaceFormats")
}

func (a *Adapter) SurfacePresentModes(surface gpu.Surface) ([]gpu.PresentMode, error) {
	return a.PresentModes, a.driver.check("SurfacePresentModes")
}

func (a *Adapter) CreateDevice(queueFamilies []int, extensions []string) (gpu.Device, error) {
	if err := a.driver.check("CreateDevice"); err != nil {
		return nil, err
	}
	a.RequestedFamilies = append([]int(nil), queueFamilies...)
	a.RequestedExtensions = append([]string(nil), extensions...)

	device := &Device{driver: a.driver, adapter: a, queues: map[int]*Queue{}}
	a.driver.device = device
	a.driver.create("device")
	return device, nil
}

type Device struct {
	driver  *Driver
	adapter *Adapter
	queues  map[int]*Queue

	Destroyed bool
}

func (d *Device) Queue(family, index int) gpu.Queue {
	q, ok := d.queues[family]
	if !ok {
		q = &Queue{driver: d.driver, Family: family}
		d.queues[family] = q
	}
	return q
}

func (d *Device) WaitIdle() error {
	if err := d.driver.check("DeviceWaitIdle"); err != nil {
		return err
	}
	d.driver.record("device.wait-idle")
	d.driver.retireAll()
	return nil
}

func (d *Device) Destroy() {
	d.Destroyed = true
	d.driver.destroy("device")
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	if err := d.driver.check("CreateSwapchain"); err != nil {
		return nil, err
	}
	d.driver.record("swapchain.create %dx%d", info.Extent.Width, info.Extent.Height)
	d.driver.create("swapchain")
	images := make([]gpu.Image, info.MinImageCount)
	for i := range images {
		images[i] = &Image{Index: i}
	}
	return &Swapchain{driver: d.driver, Info: info, images: images, next: -1}, nil
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	if err := d.driver.check("CreateImageView"); err != nil {
		return nil, err
	}
	d.driver.create("image-view")
	return &ImageView{object: object{d.driver, "image-view"}, Image: image.(*Image), Format: format}, nil
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	if err := d.driver.check("CreateShaderModule"); err != nil {
		return nil, err
	}
	d.driver.create("shader-module")
	return &ShaderModule{object: object{d.driver, "shader-module"}, Code: code}, nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	if err := d.driver.check("CreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	d.driver.create("descriptor-set-layout")
	return &DescriptorSetLayout{object: object{d.driver, "descriptor-set-layout"}, Bindings: bindings}, nil
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout, pushConstants []gpu.PushConstantRange) (gpu.PipelineLayout, error) {
	if err := d.driver.check("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	d.driver.create("pipeline-layout")
	return &PipelineLayout{object: object{d.driver, "pipeline-layout"}, SetLayouts: setLayouts, PushConstants: pushConstants}, nil
}

func (d *Device) CreatePipelineCache() (gpu.PipelineCache, error) {
	if err := d.driver.check("CreatePipelineCache"); err != nil {
		return nil, err
	}
	d.driver.create("pipeline-cache")
	return &object{d.driver, "pipeline-cache"}, nil
}

func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	if err := d.driver.check("CreateRenderPass"); err != nil {
		return nil, err
	}
	d.driver.record("render-pass.create")
	d.driver.create("render-pass")
	return &RenderPass{object: object{d.driver, "render-pass"}, Info: info}, nil
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	if err := d.driver.check("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	d.driver.record("pipeline.create")
	d.driver.create("pipeline")
	return &Pipeline{object: object{d.driver, "pipeline"}, Info: info}, nil
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, view gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	if err := d.driver.check("CreateFramebuffer"); err != nil {
		return nil, err
	}
	d.driver.create("framebuffer")
	return &Framebuffer{object: object{d.driver, "framebuffer"}, RenderPass: pass.(*RenderPass), View: view.(*ImageView), Extent: extent}, nil
}

func (d *Device) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, error) {
	if err := d.driver.check("CreateBuffer"); err != nil {
		return nil, err
	}
	d.driver.create("buffer")
	bits := uint32(1)<<uint(len(d.adapter.Memory)) - 1
	return &Buffer{object: object{d.driver, "buffer"}, Info: info, typeBits: bits}, nil
}

func (d *Device) AllocateMemory(size int, memoryType int) (gpu.DeviceMemory, error) {
	if err := d.driver.check("AllocateMemory"); err != nil {
		return nil, err
	}
	if memoryType < 0 || memoryType >= len(d.adapter.Memory) {
		return nil, errors.Newf("gputest: memory type %d out of range", memoryType)
	}
	d.driver.create("memory")
	return &DeviceMemory{
		driver:     d.driver,
		Data:       make([]byte, size),
		Properties: d.adapter.Memory[memoryType].PropertyFlags,
	}, nil
}

func (d *Device) CreateCommandPool(family int, flags gpu.CommandPoolFlags) (gpu.CommandPool, error) {
	if err := d.driver.check("CreateCommandPool"); err != nil {
		return nil, err
	}
	d.driver.create("command-pool")
	return &CommandPool{object: object{d.driver, "command-pool"}, Family: family, Flags: flags}, nil
}

func (d *Device) CreateDescriptorPool(maxSets, uniformDescriptors int) (gpu.DescriptorPool, error) {
	if err := d.driver.check("CreateDescriptorPool"); err != nil {
		return nil, err
	}
	d.driver.create("descriptor-pool")
	return &DescriptorPool{object: object{d.driver, "descriptor-pool"}, MaxSets: maxSets}, nil
}

func (d *Device) UpdateUniformDescriptor(set gpu.DescriptorSet, binding int, buffer gpu.Buffer, offset, size int) error {
	if err := d.driver.check("UpdateUniformDescriptor"); err != nil {
		return err
	}
	s := set.(*DescriptorSet)
	s.Bindings[binding] = UniformBinding{Buffer: buffer.(*Buffer), Offset: offset, Size: size}
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.driver.check("CreateSemaphore"); err != nil {
		return nil, err
	}
	d.driver.create("semaphore")
	return &object{d.driver, "semaphore"}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.driver.check("CreateFence"); err != nil {
		return nil, err
	}
	d.driver.create("fence")
	return &Fence{object: object{d.driver, "fence"}, signaled: signaled}, nil
}

func (d *Device) WaitForFences(fences []gpu.Fence) error {
	if err := d.driver.check("WaitForFences"); err != nil {
		return err
	}
	for _, f := range fences {
		fence := f.(*Fence)
		if fence.pending {
			d.driver.retire(fence)
			continue
		}
		if !fence.signaled {
			return errors.New("gputest: waiting on an unsignaled fence with no pending work")
		}
	}
	d.driver.record("fence.wait")
	return nil
}

func (d *Device) ResetFences(fences []gpu.Fence) error {
	if err := d.driver.check("ResetFences"); err != nil {
		return err
	}
	for _, f := range fences {
		fence := f.(*Fence)
		if fence.pending {
			return errors.New("gputest: resetting a fence still in use by a submission")
		}
		fence.signaled = false
	}
	return nil
}

type Queue struct {
	driver *Driver
	Family int
}

func (q *Queue) Submit(fence gpu.Fence, infos []gpu.SubmitInfo) error {
	if err := q.driver.check("Submit"); err != nil {
		return err
	}
	q.driver.Submits++
	q.driver.record("submit %d", q.Family)

	for _, info := range infos {
		for _, b := range info.CommandBuffers {
			cmd := b.(*CommandBuffer)
			if cmd.recording {
				return errors.New("gputest: submitting a command buffer that is still recording")
			}
			for _, command := range cmd.commands {
				if err := command(); err != nil {
					return err
				}
			}
			cmd.Submissions++
		}
	}

	if fence == nil {
		return nil
	}
	f := fence.(*Fence)
	if f.signaled || f.pending {
		return errors.New("gputest: submitting with a fence that was not reset")
	}
	f.pending = true
	for _, info := range infos {
		for _, b := range info.CommandBuffers {
			b.(*CommandBuffer).fence = f
		}
	}
	q.driver.pending = append(q.driver.pending, f)
	q.driver.InFlight++
	if q.driver.InFlight > q.driver.MaxInFlight {
		q.driver.MaxInFlight = q.driver.InFlight
	}
	return nil
}

func (q *Queue) Present(info gpu.PresentInfo) (gpu.Result, error) {
	if err := q.driver.check("Present"); err != nil {
		return gpu.ResultErrorUnknown, err
	}
	q.driver.Presents++
	res := nextResult(&q.driver.PresentResults)
	q.driver.record("present %d %s", info.ImageIndex, res)
	if res < 0 {
		return res, gpu.VulkanError(res, nil)
	}
	return res, nil
}

func (q *Queue) WaitIdle() error {
	if err := q.driver.check("QueueWaitIdle"); err != nil {
		return err
	}
	q.driver.record("queue.wait-idle %d", q.Family)
	q.driver.retireAll()
	return nil
}

type Swapchain struct {
	driver *Driver
	Info   gpu.SwapchainInfo
	images []gpu.Image
	next   int
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	return s.images, s.driver.check("SwapchainImages")
}

func (s *Swapchain) AcquireNextImage(signal gpu.Semaphore) (int, gpu.Result, error) {
	if err := s.driver.check("AcquireNextImage"); err != nil {
		return -1, gpu.ResultErrorUnknown, err
	}
	s.driver.Acquires++
	res := nextResult(&s.driver.AcquireResults)
	s.driver.record("acquire %s", res)
	if res < 0 {
		return -1, res, gpu.VulkanError(res, nil)
	}
	s.next = (s.next + 1) % len(s.images)
	return s.next, res, nil
}

func (s *Swapchain) Destroy() {
	s.driver.record("swapchain.destroy")
	s.driver.destroy("swapchain")
}

type Image struct {
	Index int
}

type object struct {
	driver *Driver
	kind   string
}

func (o *object) Destroy() {
	if o.kind == "framebuffer" || o.kind == "pipeline" || o.kind == "render-pass" || o.kind == "image-view" {
		o.driver.record("%s.destroy", o.kind)
	}
	o.driver.destroy(o.kind)
}

type ImageView struct {
	object
	Image  *Image
	Format gpu.Format
}

type ShaderModule struct {
	object
	Code []uint32
}

type DescriptorSetLayout struct {
	object
	Bindings []gpu.DescriptorBinding
}

type PipelineLayout struct {
	object
	SetLayouts    []gpu.DescriptorSetLayout
	PushConstants []gpu.PushConstantRange
}

type RenderPass struct {
	object
	Info gpu.RenderPassInfo
}

type Pipeline struct {
	object
	Info gpu.GraphicsPipelineInfo
}

type Framebuffer struct {
	object
	RenderPass *RenderPass
	View       *ImageView
	Extent     gpu.Extent2D
}

type Buffer struct {
	object
	Info     gpu.BufferInfo
	Memory   *DeviceMemory
	Offset   int
	typeBits uint32
}

// TypeBits overrides the memory type bits the buffer reports.
func (b *Buffer) TypeBits(bits uint32) {
	b.typeBits = bits
}

func (b *Buffer) MemoryRequirements() gpu.MemoryRequirements {
	return gpu.MemoryRequirements{Size: b.Info.Size, Alignment: 16, MemoryTypeBits: b.typeBits}
}

func (b *Buffer) BindMemory(memory gpu.DeviceMemory, offset int) error {
	if err := b.driver.check("BindMemory"); err != nil {
		return err
	}
	b.Memory = memory.(*DeviceMemory)
	b.Offset = offset
	return nil
}

// Bytes returns the backing bytes of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.Memory.Data[b.Offset : b.Offset+b.Info.Size]
}

type DeviceMemory struct {
	driver     *Driver
	Data       []byte
	Properties gpu.MemoryPropertyFlags
	Freed      bool
}

func (m *DeviceMemory) Write(offset int, data []byte) error {
	if err := m.driver.check("MemoryWrite"); err != nil {
		return err
	}
	if m.Properties&gpu.MemoryPropertyHostVisible == 0 {
		return errors.New("gputest: mapping memory that is not host visible")
	}
	if offset+len(data) > len(m.Data) {
		return errors.Newf("gputest: write of %d bytes at %d overflows %d", len(data), offset, len(m.Data))
	}
	copy(m.Data[offset:], data)
	return nil
}

func (m *DeviceMemory) Free() {
	m.Freed = true
	m.driver.destroy("memory")
}

type CommandPool struct {
	object
	Family int
	Flags  gpu.CommandPoolFlags
}

func (p *CommandPool) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	if err := p.driver.check("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	buffers := make([]gpu.CommandBuffer, count)
	for i := range buffers {
		p.driver.create("command-buffer")
		buffers[i] = &CommandBuffer{driver: p.driver, pool: p}
	}
	return buffers, nil
}

func (p *CommandPool) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	for range buffers {
		p.driver.destroy("command-buffer")
	}
}

type DescriptorPool struct {
	object
	MaxSets int
}

func (p *DescriptorPool) AllocateSets(layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	if err := p.driver.check("AllocateSets"); err != nil {
		return nil, err
	}
	if len(layouts) > p.MaxSets {
		return nil, errors.Newf("gputest: %d sets requested from a pool of %d", len(layouts), p.MaxSets)
	}
	sets := make([]gpu.DescriptorSet, len(layouts))
	for i := range sets {
		sets[i] = &DescriptorSet{Bindings: map[int]UniformBinding{}}
	}
	return sets, nil
}

type UniformBinding struct {
	Buffer *Buffer
	Offset int
	Size   int
}

type DescriptorSet struct {
	Bindings map[int]UniformBinding
}

type Fence struct {
	object
	signaled bool
	pending  bool
}

func (f *Fence) Signaled() bool { return f.signaled }
func (f *Fence) Pending() bool  { return f.pending }
