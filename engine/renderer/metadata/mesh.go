package metadata

import (
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

/** @brief Mesh file format discriminator carried by an upload request. */
type MeshType int

const (
	MeshTypeUndefined MeshType = iota
	MeshTypeOBJ
	MeshTypeGLTF
)

func (mt MeshType) String() string {
	switch mt {
	case MeshTypeOBJ:
		return "obj"
	case MeshTypeGLTF:
		return "gltf"
	default:
		return "undefined"
	}
}

/** @brief Picks the discriminator from a file extension. Unknown extensions map to MeshTypeUndefined. */
func MeshTypeFromPath(path string) MeshType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return MeshTypeOBJ
	case ".gltf", ".glb":
		return MeshTypeGLTF
	default:
		return MeshTypeUndefined
	}
}

/** @brief Path value of the request that stops the upload worker. */
const QuitRequestPath = "QUIT"

/**
 * @brief A request to load a mesh file and make it GPU resident.
 * Dequeued exactly once by the upload worker.
 */
type UploadRequest struct {
	/** @brief Identifier used to correlate log lines and the resulting record. */
	ID uuid.UUID
	/** @brief Source file path. */
	Path string
	/** @brief Format discriminator. */
	Type MeshType
	/** @brief Model matrix applied to every vertex of the mesh. */
	Transform mgl32.Mat4
}

/** @brief Builds a request with a fresh ID and the type inferred from the extension. */
func NewUploadRequest(path string, transform mgl32.Mat4) UploadRequest {
	return UploadRequest{
		ID:        uuid.New(),
		Path:      path,
		Type:      MeshTypeFromPath(path),
		Transform: transform,
	}
}

/** @brief The sentinel that terminates the upload worker. */
func QuitRequest() UploadRequest {
	return UploadRequest{Path: QuitRequestPath, Type: MeshTypeUndefined}
}

func (r UploadRequest) IsQuit() bool {
	return r.Type == MeshTypeUndefined && r.Path == QuitRequestPath
}

/** @brief CPU side geometry handed to the uploader. */
type MeshData struct {
	ID       uuid.UUID
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Model    mgl32.Mat4
}

/**
 * @brief Backend owned GPU buffers of a mesh. The renderer package only
 * needs to know they can be released.
 */
type MeshBuffers interface {
	Release() error
}

/**
 * @brief A GPU resident mesh. Immutable once created, shared read-only
 * between the upload worker and the render loop.
 */
type MeshRecord struct {
	ID   uuid.UUID
	Name string
	/** @brief Backend buffers (vertex and index). */
	Buffers MeshBuffers
	/** @brief GPU virtual address of the vertex buffer, pushed per draw. */
	VertexBufferAddress uint64
	IndexCount          uint32
	Model               mgl32.Mat4
}
