package loaders

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// GLTFImporter accepts the gltf discriminator so requests route to it, but
// no glTF parsing exists. Every import fails.
type GLTFImporter struct{}

func (gi *GLTFImporter) Import(path string) ([]metadata.Vertex, []uint32, error) {
	return nil, nil, errors.Wrapf(core.ErrUnsupportedFormat, "gltf import of %s", path)
}
