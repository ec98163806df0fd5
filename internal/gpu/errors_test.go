package gpu

import (
	"bytes"
	"log"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	previous := logger
	SetLogger(log.New(&buf, "", 0))
	t.Cleanup(func() { SetLogger(previous) })
	return &buf
}

func TestVulkanErrorMatchesSentinel(t *testing.T) {
	err := VulkanError(ResultErrorOutOfDate, errors.New("swapchain out of date"))
	assert.True(t, errors.Is(err, ErrOutOfDate))
	assert.False(t, errors.Is(err, ErrDeviceLost))
	assert.Contains(t, err.Error(), "VK_ERROR_OUT_OF_DATE_KHR")

	failure, ok := FailureOf(err)
	require.True(t, ok)
	assert.Equal(t, CategoryVulkan, failure.Category)
	assert.Equal(t, int(ResultErrorOutOfDate), failure.Code)
}

func TestVulkanErrorWithoutCause(t *testing.T) {
	err := VulkanError(ResultErrorDeviceLost, nil)
	assert.True(t, errors.Is(err, ErrDeviceLost))
}

func TestApplicationError(t *testing.T) {
	err := ApplicationError(CodeNoSuitableDevice, "no adapter among %d", 3)
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
	assert.Contains(t, err.Error(), "no adapter among 3")

	failure, ok := FailureOf(err)
	require.True(t, ok)
	assert.Equal(t, CategoryApplication, failure.Category)
}

func TestFailureOfPlainError(t *testing.T) {
	_, ok := FailureOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestCategoriesDoNotCollide(t *testing.T) {
	// Application code 1 and VK_NOT_READY share a number.
	app := &Failure{Category: CategoryApplication, Code: 1}
	vk := &Failure{Category: CategoryVulkan, Code: 1}
	assert.False(t, errors.Is(app, vk))
}

func TestCheck(t *testing.T) {
	buf := captureLog(t)

	assert.NoError(t, Check(nil, "Create nothing"))
	assert.Empty(t, buf.String())

	err := Check(VulkanError(ResultErrorOutOfDeviceMemory, nil), "Allocate memory")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfDeviceMemory))
	assert.Contains(t, err.Error(), "Allocate memory")
	assert.Equal(t, "Vulkan failure [-2]: Allocate memory\n", buf.String())

	buf.Reset()
	Check(errors.New("boom"), "Load model")
	assert.Equal(t, "Application failure: Load model: boom\n", buf.String())
}

func TestResultStale(t *testing.T) {
	assert.True(t, ResultErrorOutOfDate.Stale())
	assert.True(t, ResultSuboptimal.Stale())
	assert.False(t, ResultSuccess.Stale())
	assert.False(t, ResultErrorDeviceLost.Stale())
}
