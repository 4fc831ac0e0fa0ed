// Package config loads the engine configuration: embedded TOML defaults
// overlaid with an optional user file.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed defaults.toml
var defaultsTOML []byte

type Config struct {
	App       AppConfig       `toml:"app"`
	Log       LogConfig       `toml:"log"`
	Renderer  RendererConfig  `toml:"renderer"`
	Waves     WavesConfig     `toml:"waves"`
	Camera    CameraConfig    `toml:"camera"`
	Scene     SceneConfig     `toml:"scene"`
	Assets    AssetsConfig    `toml:"assets"`
	Telemetry TelemetryConfig `toml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `toml:"-"`
}

type AppConfig struct {
	Name      string `toml:"name"`
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	Backend        string `toml:"backend"` // software | vulkan
	FramesInFlight int    `toml:"frames_in_flight"`
	VSync          bool   `toml:"vsync"`
	ShaderDir      string `toml:"shader_dir"`
	HeadlessFrames int    `toml:"headless_frames"` // >0 runs without a window for that many frames
	Screenshot     string `toml:"screenshot"`      // written after a headless run
}

type WavesConfig struct {
	Rows            int     `toml:"rows"`
	Cols            int     `toml:"cols"`
	SpatialStep     float32 `toml:"spatial_step"`
	TimeStep        float32 `toml:"time_step"`
	Speed           float32 `toml:"speed"`
	Damping         float32 `toml:"damping"`
	DisturbInterval float32 `toml:"disturb_interval"`
	MinMagnitude    float32 `toml:"min_magnitude"`
	MaxMagnitude    float32 `toml:"max_magnitude"`
	Seed            uint64  `toml:"seed"` // 0 picks a time based seed
}

type CameraConfig struct {
	Theta          float32 `toml:"theta"`
	Phi            float32 `toml:"phi"`
	Radius         float32 `toml:"radius"`
	MinPhi         float32 `toml:"min_phi"` // phi is clamped to [min_phi, pi - min_phi]
	MinRadius      float32 `toml:"min_radius"`
	MaxRadius      float32 `toml:"max_radius"`
	FovY           float32 `toml:"fov_y"`
	NearZ          float32 `toml:"near_z"`
	FarZ           float32 `toml:"far_z"`
	RotatePerPixel float32 `toml:"rotate_per_pixel"` // degrees
	ZoomPerPixel   float32 `toml:"zoom_per_pixel"`
}

type SceneConfig struct {
	Layout    string `toml:"layout"`
	HotReload bool   `toml:"hot_reload"`
}

type AssetsConfig struct {
	TexturesDir string `toml:"textures_dir"`
	Font        string `toml:"font"`
}

type TelemetryConfig struct {
	OutputDir   string `toml:"output_dir"`
	SampleEvery int    `toml:"sample_every"`
}

type DerivedConfig struct {
	Headless       bool
	AspectRatio    float32
	RotatePerPixel float32 // radians
	MaxPhi         float32
}

// Load reads the embedded defaults and overlays the file at path. Fields the
// file does not name keep their default value. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(defaultsTOML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the renderer cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Renderer.Backend) {
	case "software", "vulkan":
	default:
		return fmt.Errorf("renderer.backend %q: must be software or vulkan", c.Renderer.Backend)
	}
	if c.Renderer.FramesInFlight < 2 {
		return fmt.Errorf("renderer.frames_in_flight must be at least 2, got %d", c.Renderer.FramesInFlight)
	}
	if c.App.Width == 0 || c.App.Height == 0 {
		return fmt.Errorf("app size must be non-zero, got %dx%d", c.App.Width, c.App.Height)
	}
	if c.Waves.Rows < 9 || c.Waves.Cols < 9 {
		return fmt.Errorf("waves grid must be at least 9x9, got %dx%d", c.Waves.Rows, c.Waves.Cols)
	}
	if c.Waves.SpatialStep <= 0 || c.Waves.TimeStep <= 0 {
		return fmt.Errorf("waves spatial_step and time_step must be positive")
	}
	if c.Waves.MinMagnitude > c.Waves.MaxMagnitude {
		return fmt.Errorf("waves min_magnitude %.3f exceeds max_magnitude %.3f", c.Waves.MinMagnitude, c.Waves.MaxMagnitude)
	}
	if c.Camera.NearZ <= 0 || c.Camera.NearZ >= c.Camera.FarZ {
		return fmt.Errorf("camera near_z %.3f must be positive and below far_z %.3f", c.Camera.NearZ, c.Camera.FarZ)
	}
	if c.Camera.MinPhi <= 0 || float64(c.Camera.MinPhi) >= math.Pi/2 {
		return fmt.Errorf("camera min_phi %.3f must be in (0, pi/2)", c.Camera.MinPhi)
	}
	if c.Camera.MinRadius <= 0 || c.Camera.MinRadius > c.Camera.MaxRadius {
		return fmt.Errorf("camera radius clamp [%.3f, %.3f] is invalid", c.Camera.MinRadius, c.Camera.MaxRadius)
	}
	if c.Telemetry.SampleEvery < 1 {
		return fmt.Errorf("telemetry.sample_every must be at least 1, got %d", c.Telemetry.SampleEvery)
	}
	return nil
}

func (c *Config) computeDerived() {
	c.Renderer.Backend = strings.ToLower(c.Renderer.Backend)
	c.Derived.Headless = c.Renderer.HeadlessFrames > 0
	if c.App.Height != 0 {
		c.Derived.AspectRatio = float32(c.App.Width) / float32(c.App.Height)
	}
	c.Derived.RotatePerPixel = c.Camera.RotatePerPixel * math.Pi / 180
	c.Derived.MaxPhi = math.Pi - c.Camera.MinPhi
}

// Recompute refreshes derived values after fields were overridden, for
// example by command line flags.
func (c *Config) Recompute() error {
	c.computeDerived()
	return c.Validate()
}

// WriteTOML writes the configuration to a TOML file.
func (c *Config) WriteTOML(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
