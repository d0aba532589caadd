package testbed

import (
	"github.com/spaghettifunk/vkshadow/engine"
	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
	"github.com/spaghettifunk/vkshadow/engine/scene"
)

// TestGame queues the configured models and keeps the lighting uniforms in
// step with the window size.
type TestGame struct {
	*engine.Game
}

type gameState struct {
	lighting *scene.Lighting
	// set when the uniforms must be rewritten on the next frame
	dirty  bool
	width  uint32
	height uint32
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				lighting: scene.DefaultLighting(),
				width:    config.StartWidth,
				height:   config.StartHeight,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize(uploads engine.Uploads) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.State.(*gameState)

	requests, err := g.ApplicationConfig.UploadRequests()
	if err != nil {
		return err
	}
	for _, req := range requests {
		core.LogInfo("queueing %s (%s)", req.Path, req.Type)
		if err := uploads.Enqueue(req); err != nil {
			return err
		}
	}

	state.lighting.SetAspect(state.width, state.height)
	state.dirty = true
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	return nil
}

func (g *TestGame) Render(deltaTime float64) (*metadata.UniformBlock, error) {
	state := g.State.(*gameState)
	if !state.dirty {
		return nil, nil
	}
	state.dirty = false
	return state.lighting.Uniforms(), nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	if width == state.width && height == state.height && !state.dirty {
		return nil
	}
	state.width = width
	state.height = height
	state.lighting.SetAspect(width, height)
	state.dirty = true
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}
