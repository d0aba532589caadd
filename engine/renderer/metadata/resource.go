package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not something the engine loads. */
	ResourceTypeNone ResourceType = iota
	/** @brief SPIR-V shader byte code. */
	ResourceTypeShader
	/** @brief Mesh file (OBJ or GLTF). */
	ResourceTypeModel
)

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}
