package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// lightCounts is pushed to the fragment stage whenever a pipeline is bound.
type lightCounts struct {
	Directional int32
	Point       int32
	Spot        int32
	_           int32
}

const lightCountsSize = uint32(unsafe.Sizeof(lightCounts{}))

func newLightCounts(l metadata.LightLayout) lightCounts {
	return lightCounts{
		Directional: int32(l.Directional),
		Point:       int32(l.Point),
		Spot:        int32(l.Spot),
	}
}

/**
 * @brief Holds a Vulkan pipeline. The layout is shared and owned by the
 * context.
 */
type VulkanPipeline struct {
	context *VulkanContext
	desc    metadata.PipelineDesc
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	lights lightCounts
}

func (p *VulkanPipeline) Desc() metadata.PipelineDesc { return p.desc }

func (p *VulkanPipeline) Destroy() {
	if p.Handle == vk.NullPipeline {
		return
	}
	_ = p.context.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
		p.Handle = vk.NullPipeline
		return nil
	})
}

// Bind sets the pipeline and its light counts on cmd.
func (p *VulkanPipeline) Bind(cmd *VulkanCommandBuffer) {
	vk.CmdBindPipeline(cmd.Handle, vk.PipelineBindPointGraphics, p.Handle)
	lights := p.lights
	vk.CmdPushConstants(cmd.Handle, p.context.PipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageFragmentBit), 0, lightCountsSize, unsafe.Pointer(&lights))
}

func validateLights(l metadata.LightLayout) error {
	if l.Directional < 0 || l.Point < 0 || l.Spot < 0 {
		return fmt.Errorf("negative light count in %+v", l)
	}
	if l.Directional+l.Point+l.Spot > metadata.MaxLights {
		return fmt.Errorf("%+v uses more than %d lights", l, metadata.MaxLights)
	}
	return nil
}

// createPipelineLayout builds the layout every pipeline shares: four sets in
// SetPass..SetTexture order plus the light counts push constant.
func createPipelineLayout(context *VulkanContext) (vk.PipelineLayout, error) {
	setLayouts := context.Descriptors.Layouts()
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       lightCountsSize,
		}},
	}
	var layout vk.PipelineLayout
	err := context.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreatePipelineLayout(context.Device.LogicalDevice, &info, context.Allocator, &layout)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreatePipelineLayout failed with %s", VulkanResultString(result, true))
		}
		return nil
	})
	return layout, err
}

func vertexAttributes() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
	}
}

func cullModeFor(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func polygonModeFor(mode metadata.FillMode) vk.PolygonMode {
	if mode == metadata.FillModeWireframe {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

// NewGraphicsPipeline builds a pipeline for the main renderpass from compiled
// shader stages.
func NewGraphicsPipeline(context *VulkanContext, desc metadata.PipelineDesc, code map[metadata.ShaderStage][]uint32) (*VulkanPipeline, error) {
	if err := validateLights(desc.Lights); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}
	if desc.FillMode == metadata.FillModeWireframe && context.Device.Features.FillModeNonSolid != vk.True {
		return nil, fmt.Errorf("pipeline %s: device does not support wireframe", desc.Name)
	}

	stages := make([]*VulkanShaderStage, 0, len(desc.Shader.Stages))
	defer func() {
		for _, s := range stages {
			s.Destroy(context)
		}
	}()
	createInfos := make([]vk.PipelineShaderStageCreateInfo, 0, len(desc.Shader.Stages))
	for _, sc := range desc.Shader.Stages {
		words, ok := code[sc.Stage]
		if !ok {
			return nil, fmt.Errorf("pipeline %s: no code for %s stage", desc.Name, sc.Stage)
		}
		stage, err := NewShaderModule(context, sc.Stage, words)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", desc.Name, err)
		}
		stages = append(stages, stage)
		createInfos = append(createInfos, stage.ShaderStageCreateInfo)
	}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             polygonModeFor(desc.FillMode),
		LineWidth:               1.0,
		CullMode:                cullModeFor(desc.CullMode),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(metadata.SizeOf[metadata.Vertex]()),
		InputRate: vk.VertexInputRateVertex,
	}
	attributes := vertexAttributes()
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(createInfos)),
		PStages:             createInfos,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              context.PipelineLayout,
		RenderPass:          context.MainRenderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pipelines)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreateGraphicsPipelines failed with %s", VulkanResultString(result, true))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}

	core.LogDebug("Graphics pipeline %s created", desc.Name)
	return &VulkanPipeline{
		context: context,
		desc:    desc,
		Handle:  pipelines[0],
		lights:  newLightCounts(desc.Lights),
	}, nil
}
