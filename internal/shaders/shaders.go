// Package shaders compiles the embedded WGSL stages to SPIR-V.
package shaders

import (
	_ "embed"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

//go:embed vertex.wgsl
var vertexSource string

//go:embed fragment.wgsl
var fragmentSource string

// Binaries returns the vertex and fragment stages as SPIR-V bytes. Both
// stages use "main" as their entry point.
func Binaries() (vertex, fragment []byte, err error) {
	vertex, err = compile("vertex", vertexSource)
	if err != nil {
		return nil, nil, err
	}

	fragment, err = compile("fragment", fragmentSource)
	if err != nil {
		return nil, nil, err
	}

	return vertex, fragment, nil
}

func compile(stage, source string) ([]byte, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, errors.WithSecondaryError(gpu.ApplicationError(gpu.CodeShader, "compile %s shader", stage), err)
	}
	return spirvBytes, nil
}
