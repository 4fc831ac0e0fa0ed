package software

import (
	gomath "math"

	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// shadedVertex is the output of the vertex stage. Lighting is evaluated per
// vertex and split so the texture can modulate the diffuse part per pixel.
type shadedVertex struct {
	clip     math.Vec4
	uv       math.Vec2
	diffuse  math.Vec3
	specular math.Vec3
}

func (a shadedVertex) lerp(b shadedVertex, t float32) shadedVertex {
	return shadedVertex{
		clip:     a.clip.MulScalar(1 - t).Add(b.clip.MulScalar(t)),
		uv:       a.uv.MulScalar(1 - t).Add(b.uv.MulScalar(t)),
		diffuse:  a.diffuse.MulScalar(1 - t).Add(b.diffuse.MulScalar(t)),
		specular: a.specular.MulScalar(1 - t).Add(b.specular.MulScalar(t)),
	}
}

type shader struct {
	world        math.Mat4
	texTransform math.Mat4
	matTransform math.Mat4
	viewProj     math.Mat4

	eye     math.Vec3
	ambient math.Vec3
	albedo  math.Vec4
	fresnel math.Vec3
	shine   float32

	lights metadata.LightLayout
	light  [metadata.MaxLights]metadata.Light
}

// newShader undoes the transposition the constant buffers are stored with.
func newShader(pass metadata.PassConstants, obj metadata.ObjectConstants, mat metadata.MaterialConstants, layout metadata.LightLayout) *shader {
	return &shader{
		world:        obj.World.Transposed(),
		texTransform: obj.TexTransform.Transposed(),
		matTransform: mat.MatTransform.Transposed(),
		viewProj:     pass.ViewProj.Transposed(),
		eye:          pass.EyePosW,
		ambient:      pass.AmbientLight.ToVec3(),
		albedo:       mat.DiffuseAlbedo,
		fresnel:      mat.FresnelR0,
		shine:        1 - mat.Roughness,
		lights:       layout,
		light:        pass.Lights,
	}
}

func (s *shader) shade(in metadata.Vertex) shadedVertex {
	posW := in.Pos.ToVec4(1).Transform(s.world)
	p := posW.ToVec3()
	n := in.Normal.TransformNormal(s.world).Normalize()
	uv := math.NewVec4(in.TexC.X, in.TexC.Y, 0, 1).Transform(s.texTransform).Transform(s.matTransform)

	out := shadedVertex{
		clip: posW.Transform(s.viewProj),
		uv:   math.NewVec2(uv.X, uv.Y),
	}

	toEye := s.eye.Sub(p).Normalize()
	i := 0
	for ; i < s.lights.Directional && i < metadata.MaxLights; i++ {
		d, sp := s.directional(s.light[i], n, toEye)
		out.diffuse = out.diffuse.Add(d)
		out.specular = out.specular.Add(sp)
	}
	for end := i + s.lights.Point; i < end && i < metadata.MaxLights; i++ {
		d, sp := s.point(s.light[i], p, n, toEye)
		out.diffuse = out.diffuse.Add(d)
		out.specular = out.specular.Add(sp)
	}
	for end := i + s.lights.Spot; i < end && i < metadata.MaxLights; i++ {
		d, sp := s.spot(s.light[i], p, n, toEye)
		out.diffuse = out.diffuse.Add(d)
		out.specular = out.specular.Add(sp)
	}
	return out
}

func saturate(x float32) float32 {
	return math.Clamp(x, 0, 1)
}

func pow(x, y float32) float32 {
	return float32(gomath.Pow(float64(x), float64(y)))
}

func attenuation(d, falloffStart, falloffEnd float32) float32 {
	return saturate((falloffEnd - d) / (falloffEnd - falloffStart))
}

// schlick approximates the Fresnel reflectance.
func schlick(r0, normal, lightVec math.Vec3) math.Vec3 {
	f := 1 - saturate(normal.Dot(lightVec))
	f5 := f * f * f * f * f
	return r0.Add(math.NewVec3One().Sub(r0).MulScalar(f5))
}

// blinnPhong returns the diffuse strength and the specular colour of one
// light. The diffuse part is multiplied by the albedo per pixel.
func (s *shader) blinnPhong(strength, lightVec, normal, toEye math.Vec3) (math.Vec3, math.Vec3) {
	m := s.shine * 256
	halfVec := toEye.Add(lightVec).Normalize()

	roughness := (m + 8) * pow(max(halfVec.Dot(normal), 0), m) / 8
	specular := schlick(s.fresnel, halfVec, lightVec).MulScalar(roughness)
	// LDR: keep the specular term below one.
	specular = math.NewVec3(specular.X/(specular.X+1), specular.Y/(specular.Y+1), specular.Z/(specular.Z+1))

	return strength, specular.Mul(strength)
}

func (s *shader) directional(l metadata.Light, normal, toEye math.Vec3) (math.Vec3, math.Vec3) {
	lightVec := l.Direction.MulScalar(-1)
	ndotl := max(lightVec.Dot(normal), 0)
	return s.blinnPhong(l.Strength.MulScalar(ndotl), lightVec, normal, toEye)
}

func (s *shader) point(l metadata.Light, pos, normal, toEye math.Vec3) (math.Vec3, math.Vec3) {
	lightVec := l.Position.Sub(pos)
	d := lightVec.Length()
	if d > l.FalloffEnd || d == 0 {
		return math.Vec3{}, math.Vec3{}
	}
	lightVec = lightVec.MulScalar(1 / d)
	ndotl := max(lightVec.Dot(normal), 0)
	strength := l.Strength.MulScalar(ndotl * attenuation(d, l.FalloffStart, l.FalloffEnd))
	return s.blinnPhong(strength, lightVec, normal, toEye)
}

func (s *shader) spot(l metadata.Light, pos, normal, toEye math.Vec3) (math.Vec3, math.Vec3) {
	lightVec := l.Position.Sub(pos)
	d := lightVec.Length()
	if d > l.FalloffEnd || d == 0 {
		return math.Vec3{}, math.Vec3{}
	}
	lightVec = lightVec.MulScalar(1 / d)
	ndotl := max(lightVec.Dot(normal), 0)
	strength := l.Strength.MulScalar(ndotl * attenuation(d, l.FalloffStart, l.FalloffEnd))
	spotFactor := pow(max(lightVec.MulScalar(-1).Dot(l.Direction), 0), l.SpotPower)
	return s.blinnPhong(strength.MulScalar(spotFactor), lightVec, normal, toEye)
}
