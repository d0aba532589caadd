package metadata

import "github.com/cockroachdb/errors"

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/** @brief Winding order considered front facing. */
type FrontFace int

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

/** @brief Depth comparison operator. */
type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

/** @brief What happens to the color attachment contents when the pass begins. */
type AttachmentLoadOp int

const (
	/** @brief Cleared to the configured clear color. */
	AttachmentLoadOpClear AttachmentLoadOp = iota
	/** @brief Previous contents are kept. Undefined on the very first frame. */
	AttachmentLoadOpLoad
)

/**
 * @brief The configurable part of the mesh graphics pipeline and pass.
 * Everything else (topology, polygon mode, blending, sample count) is fixed.
 */
type PipelineConfig struct {
	CullMode     FaceCullMode
	FrontFace    FrontFace
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	ColorLoad    AttachmentLoadOp
	ClearColor   [4]float32
}

/** @brief Back-face culling, counter-clockwise winding, less-or-equal depth, explicit clear. */
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CullMode:     FaceCullModeBack,
		FrontFace:    FrontFaceCounterClockwise,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: CompareOpLessOrEqual,
		ColorLoad:    AttachmentLoadOpClear,
		ClearColor:   [4]float32{0, 0, 0, 1},
	}
}

var cullModes = map[string]FaceCullMode{
	"none":  FaceCullModeNone,
	"front": FaceCullModeFront,
	"back":  FaceCullModeBack,
	"both":  FaceCullModeFrontAndBack,
}

var frontFaces = map[string]FrontFace{
	"ccw": FrontFaceCounterClockwise,
	"cw":  FrontFaceClockwise,
}

var compareOps = map[string]CompareOp{
	"never":            CompareOpNever,
	"less":             CompareOpLess,
	"equal":            CompareOpEqual,
	"less_or_equal":    CompareOpLessOrEqual,
	"greater":          CompareOpGreater,
	"not_equal":        CompareOpNotEqual,
	"greater_or_equal": CompareOpGreaterOrEqual,
	"always":           CompareOpAlways,
}

var loadOps = map[string]AttachmentLoadOp{
	"clear": AttachmentLoadOpClear,
	"load":  AttachmentLoadOpLoad,
}

func ParseFaceCullMode(s string) (FaceCullMode, error) {
	if v, ok := cullModes[s]; ok {
		return v, nil
	}
	return 0, errors.Newf("unknown cull mode %q", s)
}

func ParseFrontFace(s string) (FrontFace, error) {
	if v, ok := frontFaces[s]; ok {
		return v, nil
	}
	return 0, errors.Newf("unknown front face %q", s)
}

func ParseCompareOp(s string) (CompareOp, error) {
	if v, ok := compareOps[s]; ok {
		return v, nil
	}
	return 0, errors.Newf("unknown depth compare op %q", s)
}

func ParseAttachmentLoadOp(s string) (AttachmentLoadOp, error) {
	if v, ok := loadOps[s]; ok {
		return v, nil
	}
	return 0, errors.Newf("unknown color load op %q", s)
}
