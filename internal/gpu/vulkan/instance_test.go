package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

func TestTagNilError(t *testing.T) {
	assert.NoError(t, tag(core1_0.VKSuccess, nil))
}

func TestTagFailureResult(t *testing.T) {
	err := tag(common.VkResult(gpu.ResultErrorDeviceLost), errors.New("lost"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrDeviceLost))

	failure, ok := gpu.FailureOf(err)
	require.True(t, ok)
	assert.Equal(t, gpu.CategoryVulkan, failure.Category)
}

func TestTagKeepsNonFailureResults(t *testing.T) {
	cause := errors.New("wrapper failure")
	err := tag(core1_0.VKSuccess, cause)
	assert.Equal(t, cause, err)

	_, ok := gpu.FailureOf(err)
	assert.False(t, ok)
}

func TestQueueFamilyIgnored(t *testing.T) {
	// VK_QUEUE_FAMILY_IGNORED is ~0U, which the wrapper takes as a signed int.
	assert.Equal(t, -1, queueFamilyIgnored)
}

func TestInstanceDestroyIsNilSafe(t *testing.T) {
	var i *Instance
	assert.NotPanics(t, i.Destroy)
	assert.NotPanics(t, (&Instance{}).Destroy)
}
