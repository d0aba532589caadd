package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestDefaultUniforms(t *testing.T) {
	block := DefaultLighting().Uniforms()

	assert.Equal(t, mgl32.Vec4{0, 5, 1, 1}, block.LightPos)
	assert.Equal(t, mgl32.Vec4{0.5, 0.5, 0.5, 1}, block.LightCol)
	assert.Equal(t, mgl32.Vec4{0.2, 0.2, 0.2, 0}, block.Ka)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 0}, block.Kd)
	assert.Equal(t, mgl32.Vec4{0.8, 0.7, 0.7, 10}, block.Ks)
}

func TestProjectionIsFlipped(t *testing.T) {
	l := DefaultLighting()
	block := l.Uniforms()
	gl := mgl32.Perspective(mgl32.DegToRad(l.FovY), l.Aspect, l.Near, l.Far)

	assert.InDelta(t, -gl[5], block.Proj[5], 1e-6)
	assert.InDelta(t, gl[0], block.Proj[0], 1e-6)
	assert.Less(t, block.LightProj[5], float32(0))
}

func TestViewPutsTargetInFront(t *testing.T) {
	block := DefaultLighting().Uniforms()

	target := block.View.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Less(t, target.Z(), float32(0))
	assert.InDelta(t, 0, target.X(), 1e-5)

	light := block.LightView.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Less(t, light.Z(), float32(0))
}

func TestNormalMatrixIsInverseTransposeOfView(t *testing.T) {
	block := DefaultLighting().Uniforms()
	product := block.Normal.Transpose().Mul4(block.View)
	assert.True(t, product.ApproxEqualThreshold(mgl32.Ident4(), 1e-5))
}

func TestSetAspect(t *testing.T) {
	l := DefaultLighting()
	l.SetAspect(800, 400)
	assert.Equal(t, float32(2), l.Aspect)

	l.SetAspect(800, 0)
	assert.Equal(t, float32(2), l.Aspect)
}
