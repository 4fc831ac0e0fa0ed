package engine

import (
	"fmt"
	"image"
	"path/filepath"
	"runtime"

	"github.com/spaghettifunk/castle/engine/assets/loaders"
	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/platform"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/scene"
	"github.com/spaghettifunk/castle/engine/renderer/software"
	"github.com/spaghettifunk/castle/engine/renderer/vulkan"
	"github.com/spaghettifunk/castle/engine/systems"
	"github.com/spaghettifunk/castle/engine/waves"
)

const maxTextureSize = 512

// createDevice opens the configured backend. The Vulkan device needs the
// platform window; the software device runs with or without one.
func createDevice(cfg *config.Config, p *platform.Platform, width, height uint32) (metadata.Device, error) {
	switch cfg.Renderer.Backend {
	case "software":
		font, err := hudFont(cfg.Assets.Font)
		if err != nil {
			core.LogWarn("HUD font: %s, using the built-in face", err.Error())
		}
		d, err := software.New(software.Options{
			Width:  width,
			Height: height,
			HUD:    true,
			Font:   font,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	case "vulkan":
		if p == nil {
			return nil, fmt.Errorf("the vulkan backend needs a window, headless runs use the software backend")
		}
		d, err := vulkan.New(p.Window, vulkan.Options{
			AppName:   cfg.App.Name,
			Width:     width,
			Height:    height,
			VSync:     cfg.Renderer.VSync,
			ShaderDir: cfg.Renderer.ShaderDir,
			Debug:     cfg.Log.Level == "debug",
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("%q: %w", cfg.Renderer.Backend, core.ErrUnknownBackend)
}

// hudFont picks the HUD text renderer from the file extension: AngelCode
// .fnt atlases go through the bitmap loader, anything else is treated as
// an OpenType face. An empty path keeps the built-in face.
func hudFont(path string) (software.TextDrawer, error) {
	if path == "" {
		return nil, nil
	}
	if filepath.Ext(path) == ".fnt" {
		bf, err := loaders.LoadBitmapFont(path)
		if err != nil {
			return nil, err
		}
		return bf, nil
	}
	face, err := loaders.LoadFontFace(path, 14)
	if err != nil {
		return nil, err
	}
	return software.NewFaceFont(face), nil
}

// loadLayout reads the castle layout named by the config, or the built-in
// one when none is set.
func loadLayout(cfg *config.Config) (*scene.Layout, error) {
	if cfg.Scene.Layout == "" {
		return scene.DefaultLayout()
	}
	return scene.LoadLayout(cfg.Scene.Layout)
}

// decodeTextures loads the layout's textures on a worker pool. Files that
// are missing or broken are replaced by generated textures.
func decodeTextures(dir string, entries []scene.TextureLayout) ([]*image.RGBA, error) {
	jobs, err := systems.NewJobSystem(min(runtime.NumCPU(), max(len(entries), 1)), len(entries))
	if err != nil {
		return nil, err
	}
	defer jobs.Shutdown()

	tl := &loaders.TextureLoader{Dir: dir, MaxSize: maxTextureSize}
	images := make([]*image.RGBA, len(entries))
	for i, t := range entries {
		jobs.Submit(systems.JobTask{
			Name: "texture " + t.Name,
			OnStart: func() error {
				img, fromFile := tl.LoadOrGenerate(t.Name, t.File)
				images[i] = img
				core.LogDebug("texture %s decoded (from file: %t)", t.Name, fromFile)
				return nil
			},
		})
	}
	jobs.Wait()
	return images, nil
}

// buildScene uploads the static geometry and textures and assembles the
// render item registry from the layout.
func buildScene(cfg *config.Config, device metadata.Device, grid *waves.Grid) (*scene.Registry, error) {
	layout, err := loadLayout(cfg)
	if err != nil {
		return nil, err
	}

	images, err := decodeTextures(cfg.Assets.TexturesDir, layout.Textures)
	if err != nil {
		return nil, err
	}

	textures := make(map[string]metadata.Texture, len(layout.Textures))
	release := func() {
		for _, t := range textures {
			t.Destroy()
		}
	}
	for i, t := range layout.Textures {
		tex, err := device.CreateTexture(metadata.NewTextureDesc(t.Name), images[i])
		if err != nil {
			release()
			return nil, fmt.Errorf("creating texture %s: %w", t.Name, err)
		}
		textures[t.Name] = tex
	}

	geometries, err := scene.BuildGeometries(device, grid)
	if err != nil {
		release()
		return nil, err
	}
	registry, err := scene.Build(geometries, textures, layout)
	if err != nil {
		for _, g := range geometries {
			g.Destroy()
		}
		release()
		return nil, err
	}
	return registry, nil
}
