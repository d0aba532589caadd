package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkshadow/engine/assets"
	"github.com/spaghettifunk/vkshadow/engine/assets/loaders"
	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/platform"
	"github.com/spaghettifunk/vkshadow/engine/renderer"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
	"github.com/spaghettifunk/vkshadow/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	minimizedSleep = 100 * time.Millisecond
	titleInterval  = 0.5
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig
	isRunning    atomic.Bool
	isSuspended  bool

	events       *core.EventBus
	platform     *platform.Platform
	assetManager *assets.AssetManager
	backend      *vulkan.VulkanRenderer
	renderer     *renderer.Renderer

	clock      *core.Clock
	metrics    *core.Metrics
	lastTime   float64
	titleTimer float64

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultConfig()
	}
	events := core.NewEventBus()

	p, err := platform.New(events)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	am, err := assets.NewAssetManager(assets.DefaultSettleDelay)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       g.ApplicationConfig,
		events:       events,
		platform:     p,
		assetManager: am,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}
	e.isRunning.Store(true)
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	config := e.config

	if err := core.SetLogLevel(config.LogLevel); err != nil {
		return err
	}

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onQuit)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.events.Register(core.EVENT_CODE_MINIMIZED, e.onMinimized)
	e.events.Register(core.EVENT_CODE_RESTORED, e.onMinimized)

	if err := e.platform.Startup(config.Name, config.StartPosX, config.StartPosY, config.StartWidth, config.StartHeight); err != nil {
		return err
	}

	dirs := []string{config.ShaderDir}
	if config.WatchModels {
		if _, err := os.Stat(config.ModelDir); err == nil {
			dirs = append(dirs, config.ModelDir)
		} else {
			core.LogWarn("model directory %s is not available, hot drop disabled", config.ModelDir)
		}
	}
	if err := e.assetManager.Initialize(dirs...); err != nil {
		return err
	}

	vertexCode, err := e.loadShader("mesh.vert.spv")
	if err != nil {
		return err
	}
	fragmentCode, err := e.loadShader("mesh.frag.spv")
	if err != nil {
		return err
	}
	pipeline, err := config.PipelineConfig()
	if err != nil {
		return err
	}

	e.backend = vulkan.New(e.platform, vulkan.Options{
		AppName:        config.Name,
		Validation:     config.Validation,
		DrawExtent:     config.DrawExtent(),
		Pipeline:       pipeline,
		VertexShader:   vertexCode,
		FragmentShader: fragmentCode,
		FenceTimeout:   config.FenceTimeout(),
	})
	if err := e.backend.Initialize(); err != nil {
		return err
	}

	e.renderer = renderer.New(e.backend, e.platform, map[metadata.MeshType]renderer.Importer{
		metadata.MeshTypeOBJ:  &loaders.OBJImporter{},
		metadata.MeshTypeGLTF: &loaders.GLTFImporter{},
	}, config.FenceTimeout())
	if err := e.renderer.Initialize(); err != nil {
		return err
	}

	if config.WatchModels {
		e.assetManager.OnModelAdded(e.onModelAdded)
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.renderer); err != nil {
			return err
		}
	}
	if err := e.resize(e.platform.FramebufferSize()); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) loadShader(name string) ([]uint32, error) {
	resource, err := e.assetManager.LoadAsset(filepath.Join(e.config.ShaderDir, name), metadata.ResourceTypeShader, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "loading shader %s", name)
	}
	code, ok := resource.Data.([]uint32)
	if !ok {
		return nil, errors.Newf("shader %s did not load as SPIR-V", name)
	}
	return code, nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		e.platform.PollEvents()
		if e.platform.ShouldClose() {
			break
		}

		if e.isSuspended || e.platform.IsMinimized() {
			time.Sleep(minimizedSleep)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				return err
			}
		}
		if e.gameInstance.FnRender != nil {
			block, err := e.gameInstance.FnRender(delta)
			if err != nil {
				core.LogError("Game render failed, shutting down.")
				return err
			}
			if block != nil {
				if err := e.writeUniforms(block); err != nil {
					return err
				}
			}
		}

		if _, err := e.renderer.Draw(); err != nil {
			if errors.Is(err, core.ErrSurfaceClosed) {
				core.LogInfo("Window closed while minimized, shutting down.")
				break
			}
			core.LogError(err.Error())
			return err
		}

		e.metrics.Update(delta)
		e.titleTimer += delta
		if e.titleTimer >= titleInterval {
			e.titleTimer = 0
			e.platform.SetTitle(fmt.Sprintf("%s: %.3f ms", e.config.Name, e.metrics.FrameTime()))
		}

		e.lastTime = currentTime
	}

	return nil
}

// RequestQuit stops the run loop at the next tick. Safe from any goroutine.
func (e *Engine) RequestQuit() {
	e.events.Fire(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT, Sender: e})
}

func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.currentStage = EngineStageShuttingDown
		e.isRunning.Store(false)

		var errs []error
		// stop hot drop before the upload worker goes away
		if err := e.assetManager.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		if e.renderer != nil {
			if err := e.renderer.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		} else if e.backend != nil {
			if err := e.backend.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.gameInstance.FnShutdown != nil {
			if err := e.gameInstance.FnShutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		e.events.Shutdown()
		if err := e.platform.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			e.shutdownErr = errors.Join(errs...)
		}
	})
	return e.shutdownErr
}

// The uniform buffer is shared by every frame in flight, so it is only
// rewritten with the GPU idle.
func (e *Engine) writeUniforms(block *metadata.UniformBlock) error {
	if err := e.renderer.Frames().Drain(); err != nil {
		return err
	}
	return e.renderer.WriteUniforms(block)
}

func (e *Engine) resize(width, height uint32) error {
	if e.gameInstance.FnOnResize == nil || width == 0 || height == 0 {
		return nil
	}
	return e.gameInstance.FnOnResize(width, height)
}

func (e *Engine) onModelAdded(path string) {
	req := metadata.NewUploadRequest(path, mgl32.Ident4())
	if req.Type == metadata.MeshTypeUndefined {
		return
	}
	if err := e.renderer.Enqueue(req); err != nil {
		core.LogWarn("could not queue %s: %s", path, err)
	}
}

func (e *Engine) onQuit(ctx core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.isRunning.Store(false)
	return true
}

func (e *Engine) onKey(ctx core.EventContext) bool {
	core.LogDebug("key %d pressed", ctx.Key)
	return false
}

func (e *Engine) onMinimized(ctx core.EventContext) bool {
	if ctx.Code == core.EVENT_CODE_MINIMIZED {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
	} else {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	return true
}

func (e *Engine) onResized(ctx core.EventContext) bool {
	width, height := ctx.U32[0], ctx.U32[1]
	core.LogDebug("Window resize: %d, %d", width, height)
	if e.renderer == nil {
		return false
	}
	e.renderer.RequestResize()
	if err := e.resize(width, height); err != nil {
		core.LogError(err.Error())
	}
	return true
}
