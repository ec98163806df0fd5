// Package scene holds the static geometry, its vertex format and the small
// amount of simulation state the shaders consume.
package scene

import (
	"bytes"
	"embed"
	"encoding/binary"
	"io"
	"math"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

//go:embed meshes
var fileSystem embed.FS

type Vertex struct {
	Position mgl32.Vec2
	Color    mgl32.Vec3
}

func VertexBindings() []gpu.VertexBinding {
	v := Vertex{}
	return []gpu.VertexBinding{
		{
			Binding: 0,
			Stride:  int(unsafe.Sizeof(v)),
		},
	}
}

func VertexAttributes() []gpu.VertexAttribute {
	v := Vertex{}
	return []gpu.VertexAttribute{
		{
			Binding:  0,
			Location: 0,
			Format:   gpu.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   gpu.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
	}
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint16
}

func (m *Mesh) VertexBytes() ([]byte, error) {
	return encode(m.Vertices)
}

func (m *Mesh) IndexBytes() ([]byte, error) {
	return encode(m.Indices)
}

func (m *Mesh) IndexCount() int {
	return len(m.Indices)
}

func encode(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, binary.LittleEndian, data)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadHouse decodes the embedded house mesh.
func LoadHouse() (*Mesh, error) {
	meshFile, err := fileSystem.Open("meshes/house.obj")
	if err != nil {
		return nil, err
	}
	defer meshFile.Close()

	matFile, err := fileSystem.Open("meshes/house.mtl")
	if err != nil {
		return nil, err
	}
	defer matFile.Close()

	return Load(meshFile, matFile)
}

type vertexKey struct {
	position int
	material string
}

// Load decodes a Wavefront mesh, drops the z coordinate and colors each
// vertex with the diffuse color of its face material. Polygons are split
// into fans.
func Load(mesh, materials io.Reader) (*Mesh, error) {
	decoder, err := obj.DecodeReader(mesh, materials)
	if err != nil {
		return nil, errors.Wrap(err, "decode mesh")
	}

	m := &Mesh{}
	uniqueVertices := make(map[vertexKey]uint16)

	addVertex := func(face obj.Face, faceIndex int) error {
		key := vertexKey{position: face.Vertices[faceIndex], material: face.Material}
		index, vertexExists := uniqueVertices[key]

		if !vertexExists {
			if len(m.Vertices) > math.MaxUint16 {
				return errors.Newf("mesh has more than %d unique vertices", math.MaxUint16+1)
			}

			vert := Vertex{
				Position: mgl32.Vec2{
					decoder.Vertices[key.position*3],
					decoder.Vertices[key.position*3+1],
				},
				Color: mgl32.Vec3{1, 1, 1},
			}

			material, hasMaterial := decoder.Materials[face.Material]
			if hasMaterial {
				vert.Color = mgl32.Vec3{material.Diffuse.R, material.Diffuse.G, material.Diffuse.B}
			}

			index = uint16(len(m.Vertices))
			m.Vertices = append(m.Vertices, vert)
			uniqueVertices[key] = index
		}

		m.Indices = append(m.Indices, index)
		return nil
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					err = addVertex(face, corner)
					if err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if len(m.Indices) == 0 {
		return nil, errors.New("mesh has no faces")
	}

	return m, nil
}

// World is the simulated state. It only advances in fixed steps.
type World struct {
	Time float32
}

func (w *World) Update(step time.Duration) {
	w.Time += float32(step.Seconds())
}

// TimeConstant is the push-constant payload for the vertex stage.
func (w *World) TimeConstant() []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, math.Float32bits(w.Time))
	return data
}

type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

var UniformSize = binary.Size(UniformBufferObject{})

// Uniforms spins the mesh around the view axis and corrects for the aspect
// ratio of extent.
func (w *World) Uniforms(extent gpu.Extent2D) UniformBufferObject {
	ubo := UniformBufferObject{}
	timePeriod := float32(math.Mod(float64(w.Time), 8.0))

	ubo.Model = mgl32.HomogRotate3D(timePeriod*mgl32.DegToRad(45.0), mgl32.Vec3{0, 0, 1})
	ubo.View = mgl32.Ident4()

	ubo.Proj = mgl32.Ident4()
	if extent.Width > 0 && extent.Height > 0 {
		aspectRatio := float32(extent.Width) / float32(extent.Height)
		if aspectRatio > 1 {
			ubo.Proj = mgl32.Scale3D(1/aspectRatio, 1, 1)
		} else {
			ubo.Proj = mgl32.Scale3D(1, aspectRatio, 1)
		}
	}

	return ubo
}

func (u UniformBufferObject) Bytes() ([]byte, error) {
	return encode(&u)
}
