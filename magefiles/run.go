//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and opens the castle in a Vulkan window.
func (Run) Vulkan() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run castle...")
	return goRun("run", ".", "-backend", "vulkan")
}

// Opens the castle with the software renderer.
func (Run) Software() error {
	return goRun("run", ".", "-backend", "software")
}

// Renders 120 frames without a window and writes a screenshot and telemetry.
func (Run) Headless() error {
	args := []string{"run", ".",
		"-backend", "software",
		"-headless", "120",
		"-screenshot", "out/castle.bmp",
		"-telemetry", "out/telemetry",
	}
	return goRun(args...)
}
