package metadata

import "fmt"

/**
 * @brief Shader stages supported by the pipelines.
 */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000010
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vert"
	case ShaderStageFragment:
		return "frag"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type ShaderStageConfig struct {
	Stage ShaderStage
	/** @brief File name relative to the shader directory, without extension. */
	FileName string
}

/**
 * @brief Configuration for a shader program. Backends that compile shaders
 * ahead of time resolve each stage to "<dir>/<FileName>.<stage>.spv".
 */
type ShaderConfig struct {
	Name   string
	Stages []ShaderStageConfig
}

// DefaultShaderConfig describes the lit, textured opaque shader.
func DefaultShaderConfig() ShaderConfig {
	return ShaderConfig{
		Name: "Builtin.Default",
		Stages: []ShaderStageConfig{
			{Stage: ShaderStageVertex, FileName: "default"},
			{Stage: ShaderStageFragment, FileName: "default"},
		},
	}
}

// SpirvPath builds the compiled SPIR-V path of a stage.
func (sc ShaderStageConfig) SpirvPath(dir string) string {
	return fmt.Sprintf("%s/%s.%s.spv", dir, sc.FileName, sc.Stage)
}
