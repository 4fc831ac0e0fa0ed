package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func shaderStageFlag(stage metadata.ShaderStage) (vk.ShaderStageFlagBits, error) {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit, nil
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit, nil
	}
	return 0, fmt.Errorf("unsupported shader stage %s", stage)
}

// NewShaderModule wraps SPIR-V words in a shader module for one stage.
func NewShaderModule(context *VulkanContext, stage metadata.ShaderStage, code []uint32) (*VulkanShaderStage, error) {
	flag, err := shaderStageFlag(stage)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create %s shader module: %s", stage, VulkanResultString(res, true))
	}
	return &VulkanShaderStage{
		Handle: handle,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  flag,
			Module: handle,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}
