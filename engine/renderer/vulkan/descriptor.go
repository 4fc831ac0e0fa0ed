package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Descriptor set indices shared by the pipeline layout and the shaders.
const (
	SetPass uint32 = iota
	SetObject
	SetMaterial
	SetTexture
	setCount
)

const (
	descriptorPoolSets     uint32 = 512
	descriptorPoolUniforms uint32 = 512
	descriptorPoolSamplers uint32 = 128
)

// constantRange is how many bytes of a constant buffer each uniform set
// exposes to the shaders.
func constantRange(set uint32) uint64 {
	switch set {
	case SetPass:
		return metadata.SizeOf[metadata.PassConstants]()
	case SetObject:
		return metadata.SizeOf[metadata.ObjectConstants]()
	case SetMaterial:
		return metadata.SizeOf[metadata.MaterialConstants]()
	}
	return 0
}

// VulkanDescriptors owns the set layouts and a growing list of descriptor
// pools. Constant buffers are bound as dynamic uniform buffers, so one set per
// buffer covers every element and the draw only changes the offset.
type VulkanDescriptors struct {
	context *VulkanContext

	UniformLayout vk.DescriptorSetLayout
	SamplerLayout vk.DescriptorSetLayout

	pools []vk.DescriptorPool
}

func NewDescriptors(context *VulkanContext) (*VulkanDescriptors, error) {
	d := &VulkanDescriptors{context: context}

	uniform, err := d.createLayout(vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	})
	if err != nil {
		return nil, err
	}
	d.UniformLayout = uniform

	sampler, err := d.createLayout(vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	})
	if err != nil {
		d.Destroy()
		return nil, err
	}
	d.SamplerLayout = sampler

	if err := d.grow(); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *VulkanDescriptors) createLayout(binding vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}
	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.context.Device.LogicalDevice, &info, d.context.Allocator, &layout)); err != nil {
		return vk.NullDescriptorSetLayout, fmt.Errorf("vkCreateDescriptorSetLayout failed: %w", err)
	}
	return layout, nil
}

// Layouts lists the set layouts in set index order.
func (d *VulkanDescriptors) Layouts() []vk.DescriptorSetLayout {
	return []vk.DescriptorSetLayout{d.UniformLayout, d.UniformLayout, d.UniformLayout, d.SamplerLayout}
}

func (d *VulkanDescriptors) grow() error {
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       descriptorPoolSets,
		PoolSizeCount: 2,
		PPoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: descriptorPoolUniforms},
			{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: descriptorPoolSamplers},
		},
	}
	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(d.context.Device.LogicalDevice, &info, d.context.Allocator, &pool)); err != nil {
		return fmt.Errorf("vkCreateDescriptorPool failed: %w", err)
	}
	d.pools = append(d.pools, pool)
	return nil
}

// allocate takes a set from the newest pool, adding a pool when it is full.
func (d *VulkanDescriptors) allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	err := d.context.locks.SafeCall(DescriptorManagement, func() error {
		for attempt := 0; attempt < 2; attempt++ {
			allocInfo := vk.DescriptorSetAllocateInfo{
				SType:              vk.StructureTypeDescriptorSetAllocateInfo,
				DescriptorPool:     d.pools[len(d.pools)-1],
				DescriptorSetCount: 1,
				PSetLayouts:        []vk.DescriptorSetLayout{layout},
			}
			res := vk.AllocateDescriptorSets(d.context.Device.LogicalDevice, &allocInfo, &set)
			switch res {
			case vk.Success:
				return nil
			case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
				if err := d.grow(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("vkAllocateDescriptorSets failed with %s", VulkanResultString(res, true))
			}
		}
		return fmt.Errorf("descriptor pool exhausted")
	})
	return set, err
}

// UniformSet creates a dynamic uniform buffer set over buffer for the given
// set index.
func (d *VulkanDescriptors) UniformSet(buffer vk.Buffer, setIndex uint32) (vk.DescriptorSet, error) {
	set, err := d.allocate(d.UniformLayout)
	if err != nil {
		return set, err
	}
	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer,
		Offset: 0,
		Range:  vk.DeviceSize(constantRange(setIndex)),
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(d.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return set, nil
}

func (d *VulkanDescriptors) SamplerSet(view vk.ImageView, sampler vk.Sampler) (vk.DescriptorSet, error) {
	set, err := d.allocate(d.SamplerLayout)
	if err != nil {
		return set, err
	}
	imageInfo := vk.DescriptorImageInfo{
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		ImageView:   view,
		Sampler:     sampler,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(d.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return set, nil
}

// Destroy releases the pools, which frees every set allocated from them.
func (d *VulkanDescriptors) Destroy() {
	device := d.context.Device.LogicalDevice
	for _, pool := range d.pools {
		vk.DestroyDescriptorPool(device, pool, d.context.Allocator)
	}
	d.pools = nil
	if d.UniformLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, d.UniformLayout, d.context.Allocator)
		d.UniformLayout = vk.NullDescriptorSetLayout
	}
	if d.SamplerLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, d.SamplerLayout, d.context.Allocator)
		d.SamplerLayout = vk.NullDescriptorSetLayout
	}
}
