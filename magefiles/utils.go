//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

// goRun runs the go tool with its output on the console.
func goRun(args ...string) error {
	if err := sh.RunV(mg.GoCmd(), args...); err != nil {
		return fmt.Errorf("go %s: %w", args[0], err)
	}
	return nil
}

// compileStage turns one GLSL stage into src.spv, the name the renderer
// loads. Stages whose SPIR-V is newer than the source are skipped.
func compileStage(src string) error {
	out := src + ".spv"
	stale, err := target.Path(out, src)
	if err != nil {
		return err
	}
	if !stale {
		if mg.Verbose() {
			fmt.Printf("%s is up to date\n", filepath.Base(out))
		}
		return nil
	}
	fmt.Printf("Compiling %s\n", filepath.Base(src))
	if err := sh.Run("glslc", src, "-o", out); err != nil {
		return fmt.Errorf("glslc %s: %w", src, err)
	}
	return nil
}

func goModTidy() error {
	if err := goRun("mod", "tidy"); err != nil {
		return err
	}
	return goRun("vet", "./...")
}
