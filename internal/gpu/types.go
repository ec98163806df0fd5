package gpu

// The enumerations below carry the Vulkan numeric values so a backend can
// convert them with a plain cast.

type Format int32

const (
	FormatUndefined                  Format = 0
	FormatR8G8B8A8UnsignedNormalized Format = 37
	FormatB8G8R8A8UnsignedNormalized Format = 44
	FormatB8G8R8A8SRGB               Format = 50
	FormatR32G32SignedFloat          Format = 103
	FormatR32G32B32SignedFloat       Format = 106
)

type ColorSpace int32

const (
	ColorSpaceSRGBNonlinear ColorSpace = 0
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFO Relaxed"
	}
	return "unknown"
}

type Extent2D struct {
	Width  int
	Height int
}

func (e Extent2D) Empty() bool {
	return e.Width <= 0 || e.Height <= 0
}

// SurfaceCapabilities mirrors VkSurfaceCapabilitiesKHR. A CurrentExtent width
// of -1 means the surface size is determined by the swapchain extent.
type SurfaceCapabilities struct {
	MinImageCount  int
	MaxImageCount  int
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

type QueueFamily struct {
	Flags QueueFlags
	Count int
}

type AdapterType int32

const (
	AdapterTypeOther      AdapterType = 0
	AdapterTypeIntegrated AdapterType = 1
	AdapterTypeDiscrete   AdapterType = 2
	AdapterTypeVirtual    AdapterType = 3
	AdapterTypeCPU        AdapterType = 4
)

type AdapterProperties struct {
	Name                            string
	Type                            AdapterType
	MinUniformBufferOffsetAlignment int
}

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x1
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x2
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x4
)

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     int
}

type MemoryRequirements struct {
	Size           int
	Alignment      int
	MemoryTypeBits uint32
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc   BufferUsage = 0x1
	BufferUsageTransferDst   BufferUsage = 0x2
	BufferUsageUniformBuffer BufferUsage = 0x10
	BufferUsageIndexBuffer   BufferUsage = 0x40
	BufferUsageVertexBuffer  BufferUsage = 0x80
)

type ImageUsage uint32

const (
	ImageUsageTransferDst     ImageUsage = 0x2
	ImageUsageColorAttachment ImageUsage = 0x10
)

type ShaderStage uint32

const (
	StageVertex   ShaderStage = 0x1
	StageFragment ShaderStage = 0x10
)

type IndexType int32

const (
	IndexTypeUInt16 IndexType = 0
	IndexTypeUInt32 IndexType = 1
)

func (t IndexType) Size() int {
	if t == IndexTypeUInt16 {
		return 2
	}
	return 4
}

type CommandPoolFlags uint32

const (
	CommandPoolCreateTransient   CommandPoolFlags = 0x1
	CommandPoolCreateResetBuffer CommandPoolFlags = 0x2
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x1
	PipelineStageVertexShader          PipelineStage = 0x8
	PipelineStageColorAttachmentOutput PipelineStage = 0x400
	PipelineStageTransfer              PipelineStage = 0x1000
)

type Access uint32

const (
	AccessUniformRead          Access = 0x8
	AccessColorAttachmentRead  Access = 0x80
	AccessColorAttachmentWrite Access = 0x100
	AccessTransferWrite        Access = 0x1000
)

type PrimitiveTopology int32

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = 3
)

type CullMode uint32

const (
	CullModeNone CullMode = 0
	CullModeBack CullMode = 0x2
)

type FrontFace int32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type BlendFactor int32

const (
	BlendFactorZero             BlendFactor = 0
	BlendFactorOne              BlendFactor = 1
	BlendFactorSrcAlpha         BlendFactor = 6
	BlendFactorOneMinusSrcAlpha BlendFactor = 7
)

type BlendOp int32

const (
	BlendOpAdd BlendOp = 0
)

type DynamicState int32

const (
	DynamicStateViewport DynamicState = 0
	DynamicStateScissor  DynamicState = 1
)

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// FullViewport covers the whole extent with the [0, 1] depth range.
func FullViewport(extent Extent2D) Viewport {
	return Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

type VertexBinding struct {
	Binding int
	Stride  int
}

type VertexAttribute struct {
	Binding  int
	Location int
	Format   Format
	Offset   int
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset int
	Size   int
}

type DescriptorBinding struct {
	Binding int
	Stages  ShaderStage
}

type ColorBlendAttachment struct {
	BlendEnabled        bool
	SrcColorBlendFactor BlendFactor
	DstColorBlendFactor BlendFactor
	ColorBlendOp        BlendOp
	SrcAlphaBlendFactor BlendFactor
	DstAlphaBlendFactor BlendFactor
	AlphaBlendOp        BlendOp
}

type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
	Name   string
}

// GraphicsPipelineInfo is the fixed-function description handed to the
// backend. Viewports listed in DynamicStates are ignored at build time and
// must be set on the command buffer.
type GraphicsPipelineInfo struct {
	Stages           []ShaderStageInfo
	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute
	Topology         PrimitiveTopology
	CullMode         CullMode
	FrontFace        FrontFace
	Viewport         Viewport
	Scissor          Extent2D
	Blend            ColorBlendAttachment
	DynamicStates    []DynamicState
	Layout           PipelineLayout
	RenderPass       RenderPass
	Cache            PipelineCache
}

type RenderPassInfo struct {
	Format Format
}

type SwapchainInfo struct {
	Surface          Surface
	MinImageCount    int
	Format           SurfaceFormat
	Extent           Extent2D
	Usage            ImageUsage
	PresentMode      PresentMode
	QueueFamilies    []int
	ConcurrentAccess bool
}

type BufferInfo struct {
	Size          int
	Usage         BufferUsage
	QueueFamilies []int
}

type BufferCopy struct {
	SrcOffset int
	DstOffset int
	Size      int
}

type BufferBarrier struct {
	SrcAccess Access
	DstAccess Access
	Buffer    Buffer
	Offset    int
	Size      int
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     int
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
}
