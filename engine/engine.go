package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/camera"
	"github.com/lumen3d/lumen/engine/collector"
	"github.com/lumen3d/lumen/engine/config"
	"github.com/lumen3d/lumen/engine/importer"
	"github.com/lumen3d/lumen/engine/loader"
	"github.com/lumen3d/lumen/engine/picking"
	"github.com/lumen3d/lumen/engine/profiler"
	"github.com/lumen3d/lumen/engine/renderer"
	"github.com/lumen3d/lumen/engine/scenegraph"
	"github.com/lumen3d/lumen/engine/window"
)

// pendingModel couples an in-flight import with its source payload (for
// mesh buffer uploads after commit) and the caller's completion callback.
type pendingModel struct {
	model   *common.ImportedModel
	pending *importer.PendingImport
	parent  scenegraph.NodeID
	onReady func(importer.CommitResult, error)
}

// engine implements the Engine interface.
// Coordinates the editor's frame thread, logic tick, and window thread.
type engine struct {
	cfg *config.Config

	window  window.Window
	backend renderer.Backend

	resources bindless.Manager
	uploads   *bindless.UploadQueue
	graph     scenegraph.Graph
	cam       camera.Camera
	rend      renderer.Renderer
	picker    picking.Service
	importer  importer.Importer
	assets    loader.Loader

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRateChannel chan time.Duration
	engineTickRate  time.Duration
	tickCallback    func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	// mu guards the cross-thread state below: input and import
	// registration happen off the frame thread, consumption happens on it.
	mu              sync.Mutex
	pendingModels   []*pendingModel
	pendingResize   bool
	width, height   int
	selected        scenegraph.NodeID
	hasSelection    bool
	onSelect        func(node scenegraph.NodeID, picked bool)
	importMaterials map[scenegraph.NodeID][]common.MaterialID
}

// Engine is the main entry point for the editor core. It owns the scene
// graph, GPU resource tables, frame driver and input wiring, and runs
// the render loop on a single frame thread.
type Engine interface {
	// Window returns the underlying window, or nil when the engine was
	// built headless (tests, offscreen tools).
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Graph returns the scene graph. Structural mutations must happen on
	// the frame thread (tick or render callbacks) or before Run.
	//
	// Returns:
	//   - scenegraph.Graph: the scene graph
	Graph() scenegraph.Graph

	// Camera returns the view camera.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Resources returns the bindless resource tables.
	//
	// Returns:
	//   - bindless.Manager: the resource manager
	Resources() bindless.Manager

	// Renderer returns the frame driver.
	//
	// Returns:
	//   - renderer.Renderer: the frame driver
	Renderer() renderer.Renderer

	// LoadModel parses a model file and starts its asynchronous import.
	// Texture decoding runs on worker goroutines; the scene graph and GPU
	// tables are mutated only at a later frame boundary, once every
	// texture has decoded. onReady runs on the frame thread.
	//
	// Parameters:
	//   - path: the model file path (.gltf or .glb)
	//   - parent: the graph node to attach the model under
	//     (scenegraph.NodeNone for a new root)
	//   - onReady: called with the commit result once the import lands
	//
	// Returns:
	//   - error: parse failure; decode failures surface via onReady
	LoadModel(path string, parent scenegraph.NodeID, onReady func(importer.CommitResult, error)) error

	// ImportModel starts the asynchronous import of an already-parsed
	// payload. Same frame-boundary semantics as LoadModel.
	//
	// Parameters:
	//   - model: the parsed model payload
	//   - parent: the graph node to attach the model under
	//   - onReady: called with the commit result once the import lands
	ImportModel(model *common.ImportedModel, parent scenegraph.NodeID, onReady func(importer.CommitResult, error))

	// Pick casts a ray from the given screen pixel through the camera and
	// returns the closest node whose collision shape it hits.
	//
	// Parameters:
	//   - x: screen x in framebuffer pixels
	//   - y: screen y in framebuffer pixels
	//
	// Returns:
	//   - picking.Hit: the closest hit
	//   - bool: false when nothing was hit
	Pick(x, y float32) (picking.Hit, bool)

	// Selected returns the currently selected node, if any.
	//
	// Returns:
	//   - scenegraph.NodeID: the selected node
	//   - bool: false when nothing is selected
	Selected() (scenegraph.NodeID, bool)

	// SetSelectionCallback registers the function called when a left
	// click changes the selection. A miss clears the selection and fires
	// the callback with picked=false.
	//
	// Parameters:
	//   - callback: function receiving the node and whether one was picked
	SetSelectionCallback(callback func(node scenegraph.NodeID, picked bool))

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the logic tick rate in ticks per second.
	// The tick callback will be called at this rate.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each logic tick.
	// Use this for editor logic, camera controllers and gizmo updates.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in
	// frames per second. Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// StepFrame runs one full frame on the calling goroutine: applies
	// any pending resize, commits ready imports, then renders. Run calls
	// this from the frame thread; call it directly for offscreen tools
	// and tests.
	//
	// Parameters:
	//   - ctx: passed through to frame graph passes
	//
	// Returns:
	//   - error: the failure that caused this frame to be skipped
	StepFrame(ctx context.Context) error

	// Run starts the frame and tick loops and blocks processing window
	// messages until the window closes.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates an Engine instance with the provided options.
// Without an explicit backend or window, a platform window is created
// from the configuration and a WebGPU backend is attached to it.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		cfg:             config.Default(),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		importMaterials: map[scenegraph.NodeID][]common.MaterialID{},
	}

	for _, opt := range options {
		opt(e)
	}

	if e.backend == nil {
		if e.window == nil {
			e.window = window.NewWindow(
				window.WithTitle(e.cfg.Window.Title),
				window.WithWidth(e.cfg.Window.Width),
				window.WithHeight(e.cfg.Window.Height),
			)
		}
		e.backend = renderer.NewWGPUBackend(e.window.SurfaceDescriptor(), false)
	}
	e.backend.SetPresentMode(presentModeFromName(e.cfg.Renderer.PresentMode))

	if e.window != nil {
		e.width = e.window.Width()
		e.height = e.window.Height()
	} else {
		e.width = common.Coalesce(e.width, e.cfg.Window.Width)
		e.height = common.Coalesce(e.height, e.cfg.Window.Height)
	}

	e.resources = bindless.NewManager(
		bindless.WithInitialCapacity(e.cfg.Bindless.InitialCapacity),
		bindless.WithMaxSlots(e.cfg.Bindless.MaxSlots),
	)
	e.uploads = bindless.NewUploadQueue()
	e.graph = scenegraph.NewGraph(
		scenegraph.WithComponentReleaseFunc(e.onComponentRemoved),
	)
	e.cam = camera.NewCamera(
		camera.WithAspect(float32(e.width) / float32(e.height)),
	)
	e.rend = renderer.NewRenderer(e.backend, e.resources, e.uploads, collector.NewCollector(e.resources),
		renderer.WithProfiler(e.profiler),
		renderer.WithInitialSize(e.width, e.height),
	)
	e.picker = picking.NewService()
	e.importer = importer.NewImporter(e.resources, e.uploads,
		importer.WithDecodeWorkers(e.cfg.Importer.DecodeWorkers),
	)
	e.assets = loader.NewLoader()

	if err := e.backend.ConfigureSurface(e.width, e.height); err != nil {
		panic(fmt.Sprintf("failed to configure surface: %v", err))
	}

	if e.window != nil {
		e.wireWindow()
	}

	return e
}

// onComponentRemoved is the scene graph's component release hook. When a
// removed node is the container root of a committed import, the texture
// references held by that import's materials are released, freeing slots
// no other import still shares. It also clears a selection that pointed
// at a removed node.
func (e *engine) onComponentRemoved(id scenegraph.NodeID, _ scenegraph.Component) {
	e.mu.Lock()
	materials := e.importMaterials[id]
	delete(e.importMaterials, id)
	if e.hasSelection && e.selected == id {
		e.hasSelection = false
	}
	e.mu.Unlock()

	for _, mat := range materials {
		if err := e.resources.ReleaseMaterialSlots(mat); err != nil {
			log.Printf("release material %d: %v", mat, err)
		}
	}
}

// presentModeFromName maps the config file's present_mode string onto the
// backend's presentation mode. Unknown values fall back to vsync.
func presentModeFromName(name string) renderer.PresentMode {
	switch name {
	case "mailbox":
		return renderer.PresentModeMailbox
	case "immediate":
		return renderer.PresentModeUncapped
	default:
		return renderer.PresentModeVSync
	}
}

// wireWindow connects window events to the engine: resizes are deferred
// to the next frame boundary, left clicks drive picking-based selection.
func (e *engine) wireWindow() {
	e.window.SetResizeCallback(func(width, height int) {
		e.mu.Lock()
		e.width = width
		e.height = height
		e.pendingResize = true
		e.mu.Unlock()
	})

	e.window.SetMouseDownCallback(func(button window.MouseButton, x, y float32) {
		if button != window.MouseLeft {
			return
		}

		hit, ok := e.Pick(x, y)

		e.mu.Lock()
		e.hasSelection = ok
		if ok {
			e.selected = hit.Node
		}
		callback := e.onSelect
		e.mu.Unlock()

		if callback != nil {
			callback(hit.Node, ok)
		}
	})
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Graph() scenegraph.Graph {
	return e.graph
}

func (e *engine) Camera() camera.Camera {
	return e.cam
}

func (e *engine) Resources() bindless.Manager {
	return e.resources
}

func (e *engine) Renderer() renderer.Renderer {
	return e.rend
}

func (e *engine) LoadModel(path string, parent scenegraph.NodeID, onReady func(importer.CommitResult, error)) error {
	model, err := e.assets.Load(path)
	if err != nil {
		return fmt.Errorf("load model %s: %w", path, err)
	}

	e.ImportModel(model, parent, onReady)
	return nil
}

func (e *engine) ImportModel(model *common.ImportedModel, parent scenegraph.NodeID, onReady func(importer.CommitResult, error)) {
	p := e.importer.Begin(model)

	e.mu.Lock()
	e.pendingModels = append(e.pendingModels, &pendingModel{
		model:   model,
		pending: p,
		parent:  parent,
		onReady: onReady,
	})
	e.mu.Unlock()
}

func (e *engine) Pick(x, y float32) (picking.Hit, bool) {
	e.mu.Lock()
	width, height := e.width, e.height
	e.mu.Unlock()

	ray, ok := e.cam.ScreenRay(x, y, width, height)
	if !ok {
		return picking.Hit{}, false
	}
	return e.picker.Raycast(e.graph, ray)
}

func (e *engine) Selected() (scenegraph.NodeID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, e.hasSelection
}

func (e *engine) SetSelectionCallback(callback func(node scenegraph.NodeID, picked bool)) {
	e.mu.Lock()
	e.onSelect = callback
	e.mu.Unlock()
}

func (e *engine) StepFrame(ctx context.Context) error {
	e.applyResize()
	e.commitReadyImports()
	return e.rend.RenderFrame(ctx, e.graph, e.cam)
}

// applyResize reconfigures the surface and camera for a size change
// registered since the last frame.
func (e *engine) applyResize() {
	e.mu.Lock()
	resize := e.pendingResize
	width, height := e.width, e.height
	e.pendingResize = false
	e.mu.Unlock()

	if !resize {
		return
	}

	if err := e.rend.Resize(width, height); err != nil {
		log.Printf("resize to %dx%d failed: %v", width, height, err)
		return
	}
	e.cam.SetAspect(float32(width) / float32(height))
}

// commitReadyImports lands every import whose texture decodes have all
// finished: commits materials, meshes and nodes, then uploads the mesh
// geometry, then runs the caller's callback. Imports still decoding stay
// queued for a later frame.
func (e *engine) commitReadyImports() {
	e.mu.Lock()
	var ready []*pendingModel
	remaining := e.pendingModels[:0]
	for _, pm := range e.pendingModels {
		if pm.pending.Ready() {
			ready = append(ready, pm)
		} else {
			remaining = append(remaining, pm)
		}
	}
	e.pendingModels = remaining
	e.mu.Unlock()

	for _, pm := range ready {
		for _, err := range pm.pending.Errors() {
			log.Printf("import %q: %v", pm.model.Name, err)
		}

		result, err := e.importer.Commit(pm.pending, e.graph, pm.parent)
		if err == nil {
			err = e.uploadModelMeshes(pm.model, result)
		}
		if err == nil && len(result.Materials) > 0 {
			// Ownership record for the release hook: removing the import's
			// container node drops the texture references its materials hold.
			e.mu.Lock()
			e.importMaterials[result.Root] = result.Materials
			e.mu.Unlock()
		}

		if pm.onReady != nil {
			pm.onReady(result, err)
		} else if err != nil {
			log.Printf("import %q commit failed: %v", pm.model.Name, err)
		}
	}
}

// uploadModelMeshes creates GPU buffers for every mesh the commit
// registered.
func (e *engine) uploadModelMeshes(model *common.ImportedModel, result importer.CommitResult) error {
	for i, id := range result.Meshes {
		src := &model.Meshes[i]
		if len(src.VertexData) == 0 {
			continue
		}
		if err := e.rend.UploadMesh(id, src.VertexData, src.IndexData); err != nil {
			return fmt.Errorf("mesh %q: %w", src.Name, err)
		}
	}
	return nil
}

func (e *engine) Run() {
	if e.window == nil {
		log.Printf("engine built headless, Run has no window loop; use StepFrame")
		return
	}

	e.running = true
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()

	e.backend.Release()
	if err := e.window.Close(); err != nil {
		log.Printf("window close: %v", err)
	}
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleTick()
	go e.handleRender()
}

// handleTick runs the fixed-rate logic tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for
// dynamic rate changes via tickRateChannel. Exits when the quit channel
// is closed.
func (e *engine) handleTick() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the frame loop in its own goroutine. This goroutine
// is the engine's single frame thread: resizes, import commits and all
// bindless table mutations happen here at frame boundaries. A failed
// frame is logged and skipped; the loop continues with the next one.
// Recovers from panics to avoid crashing the process and signals quit on
// recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	ctx := context.Background()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			frameStart := time.Now()

			if err := e.StepFrame(ctx); err != nil {
				log.Printf("frame skipped: %v", err)
			}

			if e.profilingEnabled {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the logic tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each logic tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}
