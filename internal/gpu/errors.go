package gpu

import (
	"fmt"
	"log"
	"os"

	"github.com/cockroachdb/errors"
)

// Result carries VkResult numeric values.
type Result int32

const (
	ResultSuccess                  Result = 0
	ResultNotReady                 Result = 1
	ResultTimeout                  Result = 2
	ResultIncomplete               Result = 5
	ResultErrorOutOfHostMemory     Result = -1
	ResultErrorOutOfDeviceMemory   Result = -2
	ResultErrorInitializationFail  Result = -3
	ResultErrorDeviceLost          Result = -4
	ResultErrorExtensionNotPresent Result = -7
	ResultErrorFeatureNotPresent   Result = -8
	ResultErrorUnknown             Result = -13
	ResultErrorSurfaceLost         Result = -1000000000
	ResultSuboptimal               Result = 1000001003
	ResultErrorOutOfDate           Result = -1000001004
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "VK_SUCCESS"
	case ResultNotReady:
		return "VK_NOT_READY"
	case ResultTimeout:
		return "VK_TIMEOUT"
	case ResultIncomplete:
		return "VK_INCOMPLETE"
	case ResultErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case ResultErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case ResultErrorInitializationFail:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case ResultErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case ResultErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case ResultErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case ResultErrorUnknown:
		return "VK_ERROR_UNKNOWN"
	case ResultErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	case ResultSuboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case ResultErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	}
	return fmt.Sprintf("VkResult(%d)", int32(r))
}

// Stale reports whether the result asks for a chain rebuild.
func (r Result) Stale() bool {
	return r == ResultErrorOutOfDate || r == ResultSuboptimal
}

type Category int

const (
	CategoryApplication Category = iota
	CategoryVulkan
)

func (c Category) String() string {
	if c == CategoryVulkan {
		return "Vulkan"
	}
	return "Application"
}

// Failure is the tagged result of a fallible operation. Two failures are the
// same error when category and code match.
type Failure struct {
	Category Category
	Code     int
}

func (f *Failure) Error() string {
	if f.Category == CategoryVulkan {
		return fmt.Sprintf("%s failure [%d]: %s", f.Category, f.Code, Result(f.Code))
	}
	return fmt.Sprintf("%s failure [%d]", f.Category, f.Code)
}

func (f *Failure) Is(target error) bool {
	other, ok := target.(*Failure)
	if !ok {
		return false
	}
	return other.Category == f.Category && other.Code == f.Code
}

// Application codes.
const (
	CodeWindow = iota + 1
	CodeSurface
	CodeNoSuitableDevice
	CodeNoCompatibleMemoryType
	CodeShader
)

var (
	ErrWindow                 = &Failure{Category: CategoryApplication, Code: CodeWindow}
	ErrSurface                = &Failure{Category: CategoryApplication, Code: CodeSurface}
	ErrNoSuitableDevice       = &Failure{Category: CategoryApplication, Code: CodeNoSuitableDevice}
	ErrNoCompatibleMemoryType = &Failure{Category: CategoryApplication, Code: CodeNoCompatibleMemoryType}
	ErrShader                 = &Failure{Category: CategoryApplication, Code: CodeShader}

	ErrOutOfDeviceMemory = &Failure{Category: CategoryVulkan, Code: int(ResultErrorOutOfDeviceMemory)}
	ErrOutOfDate         = &Failure{Category: CategoryVulkan, Code: int(ResultErrorOutOfDate)}
	ErrSurfaceLost       = &Failure{Category: CategoryVulkan, Code: int(ResultErrorSurfaceLost)}
	ErrDeviceLost        = &Failure{Category: CategoryVulkan, Code: int(ResultErrorDeviceLost)}
)

// VulkanError tags cause with the Vulkan result that produced it. A nil
// cause still yields an error as long as res is not a success code.
func VulkanError(res Result, cause error) error {
	failure := &Failure{Category: CategoryVulkan, Code: int(res)}
	if cause == nil {
		return failure
	}
	return errors.Mark(errors.WithSecondaryError(failure, cause), failure)
}

// ApplicationError tags an application-level failure with a code and message.
func ApplicationError(code int, format string, args ...interface{}) error {
	failure := &Failure{Category: CategoryApplication, Code: code}
	return errors.Mark(errors.Wrapf(failure, format, args...), failure)
}

// FailureOf extracts the tagged failure from err, if there is one.
func FailureOf(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

var logger = log.New(os.Stderr, "", log.LstdFlags)

// SetLogger replaces the diagnostic logger used by Check.
func SetLogger(l *log.Logger) {
	logger = l
}

// Check logs a failing err with its category, code and the step label, then
// returns it wrapped with the label. A nil err passes through untouched.
func Check(err error, step string) error {
	if err == nil {
		return nil
	}

	if failure, ok := FailureOf(err); ok {
		logger.Printf("%s failure [%d]: %s", failure.Category, failure.Code, step)
	} else {
		logger.Printf("Application failure: %s: %v", step, err)
	}

	return errors.Wrap(err, step)
}
