package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
)

type FillMode int

const (
	FillModeSolid FillMode = iota
	FillModeWireframe
)

const (
	PipelineOpaque    string = "opaque"
	PipelineWireframe string = "opaque_wireframe"
)

/**
 * @brief How the light array of the pass constants is split. Directional
 * lights come first, then point lights, then spot lights.
 */
type LightLayout struct {
	Directional int
	Point       int
	Spot        int
}

/**
 * @brief Fixed-function state plus the shader pair a pipeline is built
 * from. Shaders are names resolved by the backend against its shader
 * directory.
 */
type PipelineDesc struct {
	Name     string
	Shader   ShaderConfig
	FillMode FillMode
	CullMode FaceCullMode
	Lights   LightLayout
}

// DefaultPipelines returns the solid and wireframe variants of the opaque
// pass. Both use the same shaders and back-face culling.
func DefaultPipelines() (PipelineDesc, PipelineDesc) {
	opaque := PipelineDesc{
		Name:     PipelineOpaque,
		Shader:   DefaultShaderConfig(),
		FillMode: FillModeSolid,
		CullMode: FaceCullModeBack,
		Lights:   LightLayout{Directional: 1, Spot: 5},
	}
	wire := opaque
	wire.Name = PipelineWireframe
	wire.FillMode = FillModeWireframe
	return opaque, wire
}
