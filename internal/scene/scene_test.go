package scene

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

func TestVertexLayout(t *testing.T) {
	bindings := VertexBindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, 20, bindings[0].Stride)

	attributes := VertexAttributes()
	require.Len(t, attributes, 2)
	assert.Equal(t, 0, attributes[0].Offset)
	assert.Equal(t, gpu.FormatR32G32SignedFloat, attributes[0].Format)
	assert.Equal(t, 8, attributes[1].Offset)
	assert.Equal(t, gpu.FormatR32G32B32SignedFloat, attributes[1].Format)
}

func TestLoadHouse(t *testing.T) {
	mesh, err := LoadHouse()
	require.NoError(t, err)

	assert.Len(t, mesh.Vertices, 11)
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3, 4, 5, 6, 7, 8, 9, 7, 9, 10}, mesh.Indices)

	assert.Equal(t, mgl32.Vec2{-0.4, -0.1}, mesh.Vertices[0].Position)
	assert.InDelta(t, 0.85, mesh.Vertices[0].Color[0], 1e-6)
	assert.Equal(t, mgl32.Vec2{0, -0.6}, mesh.Vertices[4].Position)
	assert.InDelta(t, 0.70, mesh.Vertices[4].Color[0], 1e-6)
}

func TestLoadTriangulatesFans(t *testing.T) {
	source := `o pentagon
v 0 -1 0
v 1 0 0
v 0.5 1 0
v -0.5 1 0
v -1 0 0
f 1 2 3 4 5
`
	mesh, err := Load(strings.NewReader(source), strings.NewReader(""))
	require.NoError(t, err)

	assert.Len(t, mesh.Vertices, 5)
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3, 0, 3, 4}, mesh.Indices)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, mesh.Vertices[0].Color)
}

func TestMeshBytes(t *testing.T) {
	mesh := &Mesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec2{1, 2}, Color: mgl32.Vec3{3, 4, 5}},
		},
		Indices: []uint16{0, 0, 0},
	}

	vertexBytes, err := mesh.VertexBytes()
	require.NoError(t, err)
	require.Len(t, vertexBytes, 20)
	for i, expected := range []float32{1, 2, 3, 4, 5} {
		assert.Equal(t, expected, math.Float32frombits(binary.LittleEndian.Uint32(vertexBytes[i*4:])))
	}

	indexBytes, err := mesh.IndexBytes()
	require.NoError(t, err)
	assert.Len(t, indexBytes, 6)
	assert.Equal(t, 3, mesh.IndexCount())
}

func TestWorldUpdate(t *testing.T) {
	world := &World{}
	for i := 0; i < 60; i++ {
		world.Update(time.Second / 60)
	}
	assert.InDelta(t, 1.0, world.Time, 1e-4)

	constant := world.TimeConstant()
	require.Len(t, constant, 4)
	assert.Equal(t, world.Time, math.Float32frombits(binary.LittleEndian.Uint32(constant)))
}

func TestUniforms(t *testing.T) {
	world := &World{}

	ubo := world.Uniforms(gpu.Extent2D{Width: 1200, Height: 600})
	assert.Equal(t, mgl32.Ident4(), ubo.Model)
	assert.InDelta(t, 0.5, ubo.Proj.At(0, 0), 1e-6)
	assert.InDelta(t, 1.0, ubo.Proj.At(1, 1), 1e-6)

	ubo = world.Uniforms(gpu.Extent2D{Width: 300, Height: 600})
	assert.InDelta(t, 1.0, ubo.Proj.At(0, 0), 1e-6)
	assert.InDelta(t, 0.5, ubo.Proj.At(1, 1), 1e-6)

	data, err := ubo.Bytes()
	require.NoError(t, err)
	assert.Len(t, data, UniformSize)
	assert.Equal(t, 192, UniformSize)
}
