package shaders

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

func skipUnsupported(t *testing.T, err error) {
	t.Helper()

	errStr := err.Error()
	if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

func TestBinaries(t *testing.T) {
	vertex, fragment, err := Binaries()
	if err != nil {
		skipUnsupported(t, err)
	}
	require.NoError(t, err)

	for name, spirv := range map[string][]byte{"vertex": vertex, "fragment": fragment} {
		require.GreaterOrEqual(t, len(spirv), 4, name)
		assert.Zero(t, len(spirv)%4, name)

		magic := uint32(spirv[0]) |
			uint32(spirv[1])<<8 |
			uint32(spirv[2])<<16 |
			uint32(spirv[3])<<24
		assert.Equal(t, uint32(0x07230203), magic, name)
	}
}

func TestCompileErrorIsTagged(t *testing.T) {
	_, err := compile("vertex", "fn main( {")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrShader))
}
