// Package vulkan implements the gpu driver boundary on top of vkngwrapper.
package vulkan

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"
	"github.com/vkngwrapper/framepipe/internal/gpu"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

type Options struct {
	ApplicationName  string
	EnableValidation bool
	// Logger receives validation messages. Defaults to the standard logger.
	Logger *log.Logger
}

type Instance struct {
	loader   core.Loader
	instance core1_0.Instance
	logger   *log.Logger

	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.Extension
}

// CreateInstance loads Vulkan through SDL and creates an instance with the
// window system extensions the window reported.
func CreateInstance(windowExtensions []string, opts Options) (*Instance, error) {
	loader, err := core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "create loader")
	}

	i := &Instance{loader: loader, logger: opts.Logger}
	if i.logger == nil {
		i.logger = log.Default()
	}

	err = i.createInstance(windowExtensions, opts)
	if err != nil {
		i.Destroy()
		return nil, err
	}

	if opts.EnableValidation {
		debugLoader := ext_debug_utils.CreateExtensionFromInstance(i.instance)
		var res common.VkResult
		i.debugMessenger, res, err = debugLoader.CreateDebugUtilsMessenger(i.instance, nil, i.debugMessengerOptions())
		if err != nil {
			i.Destroy()
			return nil, errors.Wrap(tag(res, err), "create debug messenger")
		}
	}

	i.surfaceExtension = khr_surface.CreateExtensionFromInstance(i.instance)
	return i, nil
}

func (i *Instance) createInstance(windowExtensions []string, opts Options) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, res, err := i.loader.AvailableExtensions()
	if err != nil {
		return errors.Wrap(tag(res, err), "enumerate instance extensions")
	}

	for _, ext := range windowExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return gpu.ApplicationError(gpu.CodeWindow, "missing window extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if opts.EnableValidation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.EnableValidation {
		layers, res, err := i.loader.AvailableLayers()
		if err != nil {
			return errors.Wrap(tag(res, err), "enumerate layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return gpu.VulkanError(gpu.ResultErrorExtensionNotPresent, errors.Newf("validation layer %s not available, install the LunarG Vulkan SDK", layer))
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = i.debugMessengerOptions()
	}

	i.instance, res, err = i.loader.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(tag(res, err), "create instance")
	}

	return nil
}

func (i *Instance) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    i.logDebug,
	}
}

func (i *Instance) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	i.logger.Printf("[%s %s] - %s", severity, msgType, data.Message)
	return false
}

// CreateSurface creates the presentation target for window.
func (i *Instance) CreateSurface(window *sdl.Window) (gpu.Surface, error) {
	surface, err := vkng_sdl2.CreateSurface(i.instance, i.surfaceExtension, window)
	if err != nil {
		return nil, gpu.ApplicationError(gpu.CodeSurface, "create window surface: %v", err)
	}

	return &Surface{surface: surface}, nil
}

func (i *Instance) EnumerateAdapters() ([]gpu.Adapter, error) {
	physicalDevices, res, err := i.instance.EnumeratePhysicalDevices()
	if err != nil {
		return nil, tag(res, err)
	}

	var adapters []gpu.Adapter
	for _, physicalDevice := range physicalDevices {
		adapter, err := newAdapter(physicalDevice, i.surfaceExtension)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

// Destroy releases the debug messenger, then the instance. Surfaces must be
// destroyed first.
func (i *Instance) Destroy() {
	if i == nil {
		return
	}

	if i.debugMessenger != nil {
		i.debugMessenger.Destroy(nil)
		i.debugMessenger = nil
	}

	if i.instance != nil {
		i.instance.Destroy(nil)
		i.instance = nil
	}
}

type Surface struct {
	surface khr_surface.Surface
}

func (s *Surface) Destroy() {
	s.surface.Destroy(nil)
}

// tag attaches the Vulkan result to err. Non-negative results leave err as
// it is.
func tag(res common.VkResult, err error) error {
	if err == nil {
		return nil
	}
	if res >= 0 {
		return err
	}
	return gpu.VulkanError(gpu.Result(res), err)
}
