package platform

import (
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform is the glfw window. It is both the renderer's Surface and the
// Vulkan backend's SurfaceProvider.
type Platform struct {
	Window    *glfw.Window
	events    *core.EventBus
	minimized atomic.Bool
}

func New(events *core.EventBus) (*Platform, error) {
	if events == nil {
		return nil, errors.New("platform needs an event bus")
	}
	return &Platform{
		Window: nil,
		events: events,
	}, nil
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return errors.Wrap(err, "creating window")
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetIconifyCallback(p.iconifyCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	width, height := p.Window.GetFramebufferSize()
	if width < 0 || height < 0 {
		return 0, 0
	}
	return uint32(width), uint32(height)
}

// PollEvents processes pending window events without blocking.
func (p *Platform) PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one window event arrives.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

func (p *Platform) RequestClose() {
	p.Window.SetShouldClose(true)
}

func (p *Platform) IsMinimized() bool {
	return p.minimized.Load()
}

func (p *Platform) SetTitle(title string) {
	p.Window.SetTitle(title)
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "creating window surface")
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	p.events.Fire(core.EventContext{
		Code:   core.EVENT_CODE_KEY_PRESSED,
		Sender: p,
		Key:    core.KeyCode(key),
	})
	if key == glfw.KeyEscape {
		p.events.Fire(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT, Sender: p})
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	ctx := core.EventContext{Code: core.EVENT_CODE_RESIZED, Sender: p}
	ctx.U32[0] = uint32(max(width, 0))
	ctx.U32[1] = uint32(max(height, 0))
	p.events.Fire(ctx)
}

func (p *Platform) iconifyCallback(w *glfw.Window, iconified bool) {
	p.minimized.Store(iconified)
	code := core.EVENT_CODE_RESTORED
	if iconified {
		code = core.EVENT_CODE_MINIMIZED
	}
	p.events.Fire(core.EventContext{Code: code, Sender: p})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT, Sender: p})
}
