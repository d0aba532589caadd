package engine

import (
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// Uploads accepts mesh requests for the background upload worker.
type Uploads interface {
	Enqueue(req metadata.UploadRequest) error
}

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(uploads Uploads) error
type Update func(deltaTime float64) error

// Render returns a new uniform block when the scene constants changed, or
// nil to keep the current one.
type Render func(deltaTime float64) (*metadata.UniformBlock, error)
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
