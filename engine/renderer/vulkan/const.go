package vulkan

import vk "github.com/goki/vulkan"

/** @brief Number of frame slots cycling between CPU recording and GPU execution. */
const FRAMES_IN_FLIGHT int = 2

/** @brief HDR color target the scene is rendered into before the blit. */
const DRAW_IMAGE_FORMAT = vk.FormatR16g16b16a16Sfloat

const DEPTH_IMAGE_FORMAT = vk.FormatD16Unorm

/** @brief Width and height of the (bound, not yet rendered) shadow map. */
const SHADOW_MAP_SIZE uint32 = 1024

/**
 * @brief Descriptor pool capacity. One set, sized by the sum of the
 * per-type counts.
 * @todo TODO: grow the pool when per-material sets are added
 */
const GLOBAL_DESCRIPTOR_MAX_SETS uint32 = 3

const (
	BINDING_GLOBAL_UBO     uint32 = 0
	BINDING_SHADOW_SAMPLER uint32 = 1
	BINDING_SHADOW_IMAGE   uint32 = 2
)

const ENGINE_NAME = "vkshadow"
