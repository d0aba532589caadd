package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// Lighting produces the global uniform block: one camera, one point light
// and one material shared by every mesh.
type Lighting struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3
	// FovY is in degrees.
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32

	LightPos mgl32.Vec3
	LightCol mgl32.Vec3
	// LightFovY is in degrees. The light projection keeps the reversed
	// near and far planes of the shadow setup.
	LightFovY float32
	LightNear float32
	LightFar  float32

	Ka        mgl32.Vec3
	Kd        mgl32.Vec3
	Ks        mgl32.Vec3
	Shininess float32
}

func DefaultLighting() *Lighting {
	return &Lighting{
		Eye:    mgl32.Vec3{0, 2, 2},
		Target: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		FovY:   70,
		Aspect: 16.0 / 9.0,
		Near:   0.01,
		Far:    100,

		LightPos:  mgl32.Vec3{0, 5, 1},
		LightCol:  mgl32.Vec3{0.5, 0.5, 0.5},
		LightFovY: 60,
		LightNear: 10000,
		LightFar:  0.1,

		Ka:        mgl32.Vec3{0.2, 0.2, 0.2},
		Kd:        mgl32.Vec3{1, 1, 1},
		Ks:        mgl32.Vec3{0.8, 0.7, 0.7},
		Shininess: 10,
	}
}

// SetAspect follows the framebuffer. A zero height keeps the last aspect.
func (l *Lighting) SetAspect(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	l.Aspect = float32(width) / float32(height)
}

// flipY converts a GL style projection to Vulkan's downward y.
func flipY(m mgl32.Mat4) mgl32.Mat4 {
	m[5] *= -1
	return m
}

func (l *Lighting) Uniforms() *metadata.UniformBlock {
	view := mgl32.LookAtV(l.Eye, l.Target, l.Up)
	lightView := mgl32.LookAtV(l.LightPos, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})

	return &metadata.UniformBlock{
		View:      view,
		Proj:      flipY(mgl32.Perspective(mgl32.DegToRad(l.FovY), l.Aspect, l.Near, l.Far)),
		Normal:    view.Inv().Transpose(),
		LightView: lightView,
		LightProj: flipY(mgl32.Perspective(mgl32.DegToRad(l.LightFovY), 1, l.LightNear, l.LightFar)),
		LightPos:  l.LightPos.Vec4(1),
		LightCol:  l.LightCol.Vec4(1),
		Ka:        l.Ka.Vec4(0),
		Kd:        l.Kd.Vec4(0),
		Ks:        l.Ks.Vec4(l.Shininess),
	}
}
