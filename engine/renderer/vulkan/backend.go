// Package vulkan implements the graphics device on top of Vulkan. Every
// frame records into a single primary command buffer that draws straight
// into the acquired swapchain image.
package vulkan

import (
	"fmt"
	"image"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/assets/loaders"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

const (
	validationLayer          = "VK_LAYER_KHRONOS_validation"
	minConstantBufferStride  = 256
	portabilityEnumerateFlag = 0x00000001
)

type Options struct {
	AppName string
	Width   uint32
	Height  uint32
	VSync   bool
	// Directory holding the compiled SPIR-V stages.
	ShaderDir string
	// Debug enables the validation layer and the debug report callback.
	Debug bool
}

// Device implements metadata.Device for a GLFW window.
type Device struct {
	context *VulkanContext
	window  *glfw.Window
	opts    Options

	queue   *Queue
	fences  *fencePool
	shaders *loaders.ShaderLoader
}

func New(window *glfw.Window, opts Options) (*Device, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %w", err)
	}

	d := &Device{
		context: &VulkanContext{
			FramebufferWidth:  opts.Width,
			FramebufferHeight: opts.Height,
			VSync:             opts.VSync,
			locks:             NewVulkanLockPool(),
		},
		window:  window,
		opts:    opts,
		shaders: &loaders.ShaderLoader{Dir: opts.ShaderDir},
	}
	d.queue = &Queue{device: d}
	d.fences = &fencePool{context: d.context}

	if err := d.initialize(); err != nil {
		core.LogError("vulkan initialization failed: %s", err)
		_ = d.Destroy()
		return nil, err
	}
	core.LogInfo("Vulkan device initialized successfully.")
	return d, nil
}

func (d *Device) initialize() error {
	if err := d.createInstance(); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := d.window.CreateWindowSurface(d.context.Instance, nil)
	if err != nil {
		return fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	d.context.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(d.context); err != nil {
		return err
	}

	sc, err := SwapchainCreate(d.context, d.context.FramebufferWidth, d.context.FramebufferHeight)
	if err != nil {
		return err
	}
	d.context.Swapchain = sc

	rp, err := RenderpassCreate(d.context, sc.ImageFormat.Format, 1.0, 0)
	if err != nil {
		return err
	}
	d.context.MainRenderpass = rp

	if err := sc.regenerateFramebuffers(d.context, rp); err != nil {
		return err
	}

	descriptors, err := NewDescriptors(d.context)
	if err != nil {
		return err
	}
	d.context.Descriptors = descriptors

	layout, err := createPipelineLayout(d.context)
	if err != nil {
		return err
	}
	d.context.PipelineLayout = layout
	return nil
}

func (d *Device) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(d.opts.AppName),
		PEngineName:        VulkanSafeString("Castle"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := d.window.GetRequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= portabilityEnumerateFlag
	}

	var layers []string
	if d.opts.Debug {
		if hasInstanceLayer(validationLayer) {
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		} else {
			core.LogWarn("Validation layer %s is not installed, continuing without it.", validationLayer)
		}
	}
	for _, e := range extensions {
		core.LogDebug("Instance extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, d.context.Allocator, &instance); res != vk.Success {
		return fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
	}
	d.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if len(layers) > 0 {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &dbg)); err != nil {
			return fmt.Errorf("vk.CreateDebugReportCallback failed with %w", err)
		}
		d.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if vk.ToString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (d *Device) Name() string { return "vulkan" }

// ConstantBufferAlignment keeps the 256 byte stride the renderer assumes,
// raised to the device limit for dynamic uniform offsets.
func (d *Device) ConstantBufferAlignment() uint64 {
	limits := d.context.Device.Properties.Limits
	return max(minConstantBufferStride, uint64(limits.MinUniformBufferOffsetAlignment))
}

func (d *Device) CreateUploadBuffer(size uint64) (metadata.Buffer, error) {
	b, err := newUploadBuffer(d.context, size)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Device) CreateStaticBuffer(usage metadata.BufferUsage, data []byte) (metadata.Buffer, error) {
	b, err := newStaticBuffer(d.context, usage, data)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Device) CreateTexture(desc metadata.TextureDesc, pixels *image.RGBA) (metadata.Texture, error) {
	t, err := newTexture(d.context, desc, pixels)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *Device) CreatePipeline(desc metadata.PipelineDesc) (metadata.Pipeline, error) {
	code, err := d.shaders.Load(desc.Shader)
	if err != nil {
		return nil, err
	}
	p, err := NewGraphicsPipeline(d.context, desc, code)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Device) CreateCommandAllocator() (metadata.CommandAllocator, error) {
	a, err := newCommandAllocator(d.context)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d *Device) CreateCommandList() (metadata.CommandList, error) {
	return newCommandList(d), nil
}

func (d *Device) CreateFence(initial uint64) (metadata.Fence, error) {
	return newFence(d.context, d.fences, initial), nil
}

func (d *Device) Queue() metadata.Queue { return d.queue }

// Resize records the new framebuffer size. The swapchain is rebuilt when
// the next frame begins.
func (d *Device) Resize(width, height uint32) error {
	d.context.FramebufferWidth = width
	d.context.FramebufferHeight = height
	d.context.FramebufferSizeGeneration++
	core.LogInfo("Vulkan device resized: w/h/gen: %d/%d/%d", width, height, d.context.FramebufferSizeGeneration)
	return nil
}

func (d *Device) BackBufferSize() (uint32, uint32) {
	extent := d.context.Swapchain.Extent
	return extent.Width, extent.Height
}

func (d *Device) WaitIdle() error {
	if d.context.Device == nil || d.context.Device.LogicalDevice == nil {
		return nil
	}
	switch res := vk.DeviceWaitIdle(d.context.Device.LogicalDevice); res {
	case vk.Success:
		return nil
	case vk.ErrorDeviceLost:
		return core.ErrDeviceLost
	default:
		return fmt.Errorf("vkDeviceWaitIdle failed: %s", VulkanResultString(res, true))
	}
}

// recreateSwapchain rebuilds the swapchain and its framebuffers at the
// current framebuffer size. A zero sized window leaves it untouched.
func (d *Device) recreateSwapchain() error {
	context := d.context
	if context.RecreatingSwapchain {
		return core.ErrSwapchainBooting
	}
	if context.FramebufferWidth == 0 || context.FramebufferHeight == 0 {
		core.LogDebug("recreateSwapchain called with a zero sized framebuffer, booting.")
		return core.ErrSwapchainBooting
	}
	context.RecreatingSwapchain = true
	defer func() { context.RecreatingSwapchain = false }()

	if err := d.WaitIdle(); err != nil {
		return err
	}
	err := context.locks.SafeCall(SwapchainManagement, func() error {
		sc, err := context.Swapchain.SwapchainRecreate(context, context.FramebufferWidth, context.FramebufferHeight)
		if err != nil {
			return err
		}
		context.Swapchain = sc
		return sc.regenerateFramebuffers(context, context.MainRenderpass)
	})
	if err != nil {
		return fmt.Errorf("failed to recreate the swapchain: %w", err)
	}
	context.FramebufferSizeLastGeneration = context.FramebufferSizeGeneration
	return nil
}

// Destroy tears everything down in reverse creation order. Resources the
// caller created must already be destroyed.
func (d *Device) Destroy() error {
	context := d.context
	if context.Device != nil && context.Device.LogicalDevice != nil {
		_ = d.WaitIdle()
		device := context.Device.LogicalDevice

		d.fences.destroy()
		if context.PipelineLayout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(device, context.PipelineLayout, context.Allocator)
			context.PipelineLayout = vk.NullPipelineLayout
		}
		if context.Descriptors != nil {
			context.Descriptors.Destroy()
			context.Descriptors = nil
		}
		if context.Swapchain != nil {
			context.Swapchain.SwapchainDestroy(context)
			context.Swapchain = nil
		}
		if context.MainRenderpass != nil {
			context.MainRenderpass.RenderpassDestroy(context)
			context.MainRenderpass = nil
		}
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(context)

	if context.Surface != vk.NullSurface {
		vk.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = vk.NullSurface
	}
	if context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(context.Instance, context.debugMessenger, context.Allocator)
		context.debugMessenger = vk.NullDebugReportCallback
	}
	if context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
	}
	return nil
}
