package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

func TestVulkanSafeString(t *testing.T) {
	if got := VulkanSafeString("main"); got != "main\x00" {
		t.Fatalf("got %q", got)
	}
	if got := VulkanSafeString("main\x00"); got != "main\x00" {
		t.Fatalf("terminated string changed to %q", got)
	}

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	if out[0] != "a\x00" || out[1] != "b\x00" {
		t.Fatalf("got %q", out)
	}
	if in[0] != "a" {
		t.Fatal("input slice was modified")
	}
}

func TestVulkanResultString(t *testing.T) {
	if got := VulkanResultString(vk.ErrorOutOfDate, false); got != "VK_ERROR_OUT_OF_DATE_KHR" {
		t.Fatalf("got %q", got)
	}
	if got := VulkanResultString(vk.Result(-12345), true); got != "VkResult(-12345)" {
		t.Fatalf("got %q", got)
	}
	if !VulkanResultIsSuccess(vk.Suboptimal) {
		t.Fatal("suboptimal is a success code")
	}
	if VulkanResultIsSuccess(vk.ErrorDeviceLost) {
		t.Fatal("device lost is an error")
	}
}

func TestChoosePresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate, vk.PresentModeMailbox}
	if got := choosePresentMode(all, true); got != vk.PresentModeFifo {
		t.Fatalf("vsync picked %d", got)
	}
	if got := choosePresentMode(all, false); got != vk.PresentModeMailbox {
		t.Fatalf("no vsync picked %d", got)
	}
	if got := choosePresentMode([]vk.PresentMode{vk.PresentModeFifo}, false); got != vk.PresentModeFifo {
		t.Fatalf("fifo only picked %d", got)
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other, srgb}); got.Format != srgb.Format {
		t.Fatalf("got format %d", got.Format)
	}
	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other}); got.Format != other.Format {
		t.Fatalf("fallback got format %d", got.Format)
	}
}

func TestConstantRange(t *testing.T) {
	if got := constantRange(SetObject); got != 128 {
		t.Fatalf("object constants are %d bytes", got)
	}
	if constantRange(SetTexture) != 0 {
		t.Fatal("the texture set has no constants")
	}
	if constantRange(SetPass) < uint64(metadata.MaxLights*48) {
		t.Fatal("pass constants do not cover the lights")
	}
}

func TestPipelineStateMapping(t *testing.T) {
	if cullModeFor(metadata.FaceCullModeNone) != vk.CullModeFlags(vk.CullModeNone) {
		t.Fatal("cull none")
	}
	if cullModeFor(metadata.FaceCullModeBack) != vk.CullModeFlags(vk.CullModeBackBit) {
		t.Fatal("cull back")
	}
	if polygonModeFor(metadata.FillModeWireframe) != vk.PolygonModeLine {
		t.Fatal("wireframe must rasterize lines")
	}
	if addressModeFor(metadata.TextureRepeatClampToEdge) != vk.SamplerAddressModeClampToEdge {
		t.Fatal("clamp to edge")
	}
	if filterFor(metadata.TextureFilterModeNearest) != vk.FilterNearest {
		t.Fatal("nearest filter")
	}

	attrs := vertexAttributes()
	last := attrs[len(attrs)-1]
	if last.Offset+8 != uint32(metadata.SizeOf[metadata.Vertex]()) {
		t.Fatalf("texcoord attribute ends at %d", last.Offset+8)
	}
}

func TestValidateLights(t *testing.T) {
	if err := validateLights(metadata.LightLayout{Directional: 1, Spot: 5}); err != nil {
		t.Fatal(err)
	}
	if err := validateLights(metadata.LightLayout{Directional: metadata.MaxLights, Point: 1}); err == nil {
		t.Fatal("expected an error for too many lights")
	}
	if err := validateLights(metadata.LightLayout{Point: -1}); err == nil {
		t.Fatal("expected an error for a negative count")
	}
	if lightCountsSize != 16 {
		t.Fatalf("light counts are %d bytes", lightCountsSize)
	}
}
