//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every GLSL stage under assets/shaders to SPIR-V.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the castle binary into bin/.
func (Build) Castle() error {
	mg.Deps(Build.Shaders)
	return goRun("build", "-o", "bin/castle", ".")
}

// Tidies the module and vets every package.
func Tidy() error {
	return goModTidy()
}

// Runs the unit tests of every package.
func Test() error {
	return goRun("test", "./...")
}

func buildShaders() error {
	for _, pattern := range []string{"*.vert", "*.frag"} {
		sources, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		for _, src := range sources {
			if err := compileStage(src); err != nil {
				return err
			}
		}
	}
	return nil
}
