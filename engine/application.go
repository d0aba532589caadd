package engine

import (
	"bytes"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// ModelConfig is one mesh queued for upload at startup.
type ModelConfig struct {
	Path string `toml:"path"`
	// Type is "obj" or "gltf". Empty means inferred from the extension.
	Type      string     `toml:"type"`
	Translate [3]float32 `toml:"translate"`
}

type PipelineSection struct {
	CullMode     string `toml:"cull_mode"`
	FrontFace    string `toml:"front_face"`
	DepthTest    bool   `toml:"depth_test"`
	DepthWrite   bool   `toml:"depth_write"`
	DepthCompare string `toml:"depth_compare"`
}

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"height"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"pos_y"`

	LogLevel   string `toml:"log_level"`
	Validation bool   `toml:"validation"`

	// Holds mesh.vert.spv and mesh.frag.spv.
	ShaderDir   string `toml:"shader_dir"`
	ModelDir    string `toml:"model_dir"`
	WatchModels bool   `toml:"watch_models"`

	FenceTimeoutMS int64      `toml:"fence_timeout_ms"`
	ColorLoad      string     `toml:"color_load"`
	ClearColor     [4]float32 `toml:"clear_color"`

	Pipeline PipelineSection `toml:"pipeline"`
	Models   []ModelConfig   `toml:"models"`
}

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:           "VkShadow",
		StartWidth:     1280,
		StartHeight:    720,
		StartPosX:      100,
		StartPosY:      100,
		LogLevel:       "info",
		Validation:     false,
		ShaderDir:      "shaders/spirv",
		ModelDir:       "models",
		WatchModels:    true,
		FenceTimeoutMS: 1000,
		ColorLoad:      "clear",
		ClearColor:     [4]float32{0, 0, 0, 1},
		Pipeline: PipelineSection{
			CullMode:     "back",
			FrontFace:    "ccw",
			DepthTest:    true,
			DepthWrite:   true,
			DepthCompare: "less_or_equal",
		},
		Models: []ModelConfig{
			{Path: "models/bunny.obj", Type: "obj"},
			{Path: "models/teapot.obj", Type: "obj", Translate: [3]float32{2, 0, 0}},
			{Path: "models/square.obj", Type: "obj", Translate: [3]float32{-2, 0, 0}},
		},
	}
}

// LoadConfig overlays the TOML file at path on DefaultConfig. A missing
// file yields the defaults.
func LoadConfig(path string) (*ApplicationConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.LogWarn("config %s not found, using defaults", path)
			return config, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	// the models list is replaced, not merged
	defaultModels := config.Models
	config.Models = nil

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if config.Models == nil {
		config.Models = defaultModels
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.StartWidth == 0 || c.StartHeight == 0 {
		return errors.Newf("window size %dx%d must be non-zero", c.StartWidth, c.StartHeight)
	}
	if c.FenceTimeoutMS <= 0 {
		return errors.Newf("fence_timeout_ms must be positive, got %d", c.FenceTimeoutMS)
	}
	if _, err := c.PipelineConfig(); err != nil {
		return err
	}
	if _, err := c.UploadRequests(); err != nil {
		return err
	}
	return nil
}

func (c *ApplicationConfig) FenceTimeout() time.Duration {
	return time.Duration(c.FenceTimeoutMS) * time.Millisecond
}

func (c *ApplicationConfig) DrawExtent() metadata.Extent2D {
	return metadata.Extent2D{Width: c.StartWidth, Height: c.StartHeight}
}

func (c *ApplicationConfig) PipelineConfig() (metadata.PipelineConfig, error) {
	config := metadata.DefaultPipelineConfig()
	var err error
	if config.CullMode, err = metadata.ParseFaceCullMode(c.Pipeline.CullMode); err != nil {
		return config, err
	}
	if config.FrontFace, err = metadata.ParseFrontFace(c.Pipeline.FrontFace); err != nil {
		return config, err
	}
	if config.DepthCompare, err = metadata.ParseCompareOp(c.Pipeline.DepthCompare); err != nil {
		return config, err
	}
	if config.ColorLoad, err = metadata.ParseAttachmentLoadOp(c.ColorLoad); err != nil {
		return config, err
	}
	config.DepthTest = c.Pipeline.DepthTest
	config.DepthWrite = c.Pipeline.DepthWrite
	config.ClearColor = c.ClearColor
	return config, nil
}

// UploadRequests turns the models list into requests, in order.
func (c *ApplicationConfig) UploadRequests() ([]metadata.UploadRequest, error) {
	requests := make([]metadata.UploadRequest, 0, len(c.Models))
	for _, model := range c.Models {
		if model.Path == "" {
			return nil, errors.New("model entry without a path")
		}
		t := model.Translate
		req := metadata.NewUploadRequest(model.Path, mgl32.Translate3D(t[0], t[1], t[2]))
		switch model.Type {
		case "":
		case "obj":
			req.Type = metadata.MeshTypeOBJ
		case "gltf":
			req.Type = metadata.MeshTypeGLTF
		default:
			return nil, errors.Newf("model %s has unknown type %q", model.Path, model.Type)
		}
		requests = append(requests, req)
	}
	return requests, nil
}
