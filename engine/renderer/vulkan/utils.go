package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
)

type resultInfo struct {
	name        string
	description string
}

// From: https://www.khronos.org/registry/vulkan/specs/1.3-extensions/man/html/VkResult.html
var resultStrings = map[vk.Result]resultInfo{
	// Success codes
	vk.Success:    {"VK_SUCCESS", "Command successfully completed"},
	vk.NotReady:   {"VK_NOT_READY", "A fence or query has not yet completed"},
	vk.Timeout:    {"VK_TIMEOUT", "A wait operation has not completed in the specified time"},
	vk.EventSet:   {"VK_EVENT_SET", "An event is signaled"},
	vk.EventReset: {"VK_EVENT_RESET", "An event is unsignaled"},
	vk.Incomplete: {"VK_INCOMPLETE", "A return array was too small for the result"},
	vk.Suboptimal: {"VK_SUBOPTIMAL_KHR", "A swapchain no longer matches the surface properties exactly, but can still be used to present to the surface successfully."},

	// Error codes
	vk.ErrorOutOfHostMemory:       {"VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed."},
	vk.ErrorOutOfDeviceMemory:     {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed."},
	vk.ErrorInitializationFailed:  {"VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed for implementation-specific reasons."},
	vk.ErrorDeviceLost:            {"VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost."},
	vk.ErrorMemoryMapFailed:       {"VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed."},
	vk.ErrorLayerNotPresent:       {"VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded."},
	vk.ErrorExtensionNotPresent:   {"VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported."},
	vk.ErrorFeatureNotPresent:     {"VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported."},
	vk.ErrorIncompatibleDriver:    {"VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver or is otherwise incompatible for implementation-specific reasons."},
	vk.ErrorTooManyObjects:        {"VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created."},
	vk.ErrorFormatNotSupported:    {"VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device."},
	vk.ErrorFragmentedPool:        {"VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation of the pool's memory."},
	vk.ErrorSurfaceLost:           {"VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available."},
	vk.ErrorNativeWindowInUse:     {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The requested window is already in use by Vulkan or another API in a manner which prevents it from being used again."},
	vk.ErrorOutOfDate:             {"VK_ERROR_OUT_OF_DATE_KHR", "A surface has changed in such a way that it is no longer compatible with the swapchain."},
	vk.ErrorIncompatibleDisplay:   {"VK_ERROR_INCOMPATIBLE_DISPLAY_KHR", "The display used by a swapchain does not use the same presentable image layout, or is incompatible in a way that prevents sharing an image."},
	vk.ErrorOutOfPoolMemory:       {"VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed."},
	vk.ErrorInvalidExternalHandle: {"VK_ERROR_INVALID_EXTERNAL_HANDLE", "An external handle is not a valid handle of the specified type."},
	vk.ErrorFragmentation:         {"VK_ERROR_FRAGMENTATION", "A descriptor pool creation has failed due to fragmentation."},
	vk.ErrorUnknown:               {"VK_ERROR_UNKNOWN", "An unknown error has occurred; either the application has provided invalid input, or an implementation failure has occurred."},
}

// VulkanResultString names a result. The extended form appends the
// description from the registry.
func VulkanResultString(result vk.Result, getExtended bool) string {
	info, ok := resultStrings[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if getExtended {
		return info.name + " " + info.description
	}
	return info.name
}

// VulkanResultIsSuccess reports whether result is a success code. Error codes
// are negative.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

const end = "\x00"

func VulkanSafeString(s string) string {
	if strings.HasSuffix(s, end) {
		return s
	}
	return s + end
}

// VulkanSafeStrings returns a null-terminated copy of list.
func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}
