package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var (
	ErrNoSuitableDevice = errors.New("vulkan: no physical device meets the requirements")
	ErrNoDepthFormat    = errors.New("vulkan: no supported depth format")
	ErrMissingLayer     = errors.New("vulkan: required layer is missing")
	ErrMissingExtension = errors.New("vulkan: required extension is missing")
	ErrDeviceLost       = errors.New("vulkan: device lost")
	ErrOutOfMemory      = errors.New("vulkan: out of memory")
)

type resultInfo struct {
	name     string
	extended string
}

var resultStrings = map[common.VkResult]resultInfo{
	core1_0.VKSuccess:                   {"VK_SUCCESS", "Command successfully completed"},
	core1_0.VKNotReady:                  {"VK_NOT_READY", "A fence or query has not yet completed"},
	core1_0.VKTimeout:                   {"VK_TIMEOUT", "A wait operation has not completed in the specified time"},
	core1_0.VKEventSet:                  {"VK_EVENT_SET", "An event is signaled"},
	core1_0.VKEventReset:                {"VK_EVENT_RESET", "An event is unsignaled"},
	core1_0.VKIncomplete:                {"VK_INCOMPLETE", "A return array was too small for the result"},
	khr_swapchain.VKSuboptimal:          {"VK_SUBOPTIMAL_KHR", "A swapchain no longer matches the surface properties exactly, but can still be used to present to the surface successfully"},
	core1_0.VKErrorOutOfHostMemory:      {"VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed"},
	core1_0.VKErrorOutOfDeviceMemory:    {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed"},
	core1_0.VKErrorInitializationFailed: {"VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed for implementation-specific reasons"},
	core1_0.VKErrorDeviceLost:           {"VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost"},
	core1_0.VKErrorMemoryMapFailed:      {"VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed"},
	core1_0.VKErrorLayerNotPresent:      {"VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded"},
	core1_0.VKErrorExtensionNotPresent:  {"VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported"},
	core1_0.VKErrorFeatureNotPresent:    {"VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported"},
	core1_0.VKErrorIncompatibleDriver:   {"VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver or is otherwise incompatible"},
	core1_0.VKErrorTooManyObjects:       {"VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created"},
	core1_0.VKErrorFormatNotSupported:   {"VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device"},
	core1_0.VKErrorFragmentedPool:       {"VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation of the pool's memory"},
	core1_0.VKErrorUnknown:              {"VK_ERROR_UNKNOWN", "An unknown error has occurred"},
	khr_swapchain.VKErrorOutOfDate:      {"VK_ERROR_OUT_OF_DATE_KHR", "A surface has changed in such a way that it is no longer compatible with the swapchain"},
}

// ResultString names a VkResult. With extended set, the description of the
// result is appended.
func ResultString(res common.VkResult, extended bool) string {
	info, ok := resultStrings[res]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int(res))
	}
	if extended {
		return info.name + " " + info.extended
	}
	return info.name
}

// ResultIsSuccess reports whether res is one of the non-error result codes.
func ResultIsSuccess(res common.VkResult) bool {
	switch res {
	case core1_0.VKSuccess, core1_0.VKNotReady, core1_0.VKTimeout,
		core1_0.VKEventSet, core1_0.VKEventReset, core1_0.VKIncomplete,
		khr_swapchain.VKSuboptimal:
		return true
	default:
		return false
	}
}

// callFailed annotates a driver failure with the originating call and the
// numeric result code.
func callFailed(err error, call string, res common.VkResult) error {
	if err == nil {
		err = errors.New(ResultString(res, true))
	}
	return errors.Wrapf(err, "%s failed: %s (%d)", call, ResultString(res, false), int(res))
}
