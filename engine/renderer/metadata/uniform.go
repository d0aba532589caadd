package metadata

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

/**
 * @brief Global uniform block (set 0, binding 0), std140 layout.
 * vec3 values are stored as vec4 so every member sits on a 16 byte boundary.
 */
type UniformBlock struct {
	View      mgl32.Mat4
	Proj      mgl32.Mat4
	Normal    mgl32.Mat4
	LightView mgl32.Mat4
	LightProj mgl32.Mat4
	LightPos  mgl32.Vec4
	LightCol  mgl32.Vec4
	Ka        mgl32.Vec4
	Kd        mgl32.Vec4
	/** @brief Specular color in xyz, shininess in w. */
	Ks mgl32.Vec4
}

const UniformBlockSize = uint64(unsafe.Sizeof(UniformBlock{}))
