package main

import (
	"log"
	"runtime"

	"github.com/vkngwrapper/framepipe/internal/frame"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/gpu/vulkan"
	"github.com/vkngwrapper/framepipe/internal/pipeline"
	"github.com/vkngwrapper/framepipe/internal/renderer"
	"github.com/vkngwrapper/framepipe/internal/scene"
	"github.com/vkngwrapper/framepipe/internal/shaders"
	"github.com/vkngwrapper/framepipe/internal/window"
)

const enableValidationLayers = true

func init() {
	// SDL must be driven from the main thread.
	runtime.LockOSThread()
}

type Application struct {
	cfg renderer.Config

	window   *window.Window
	instance *vulkan.Instance
	surface  gpu.Surface
	renderer *renderer.Renderer
}

func (app *Application) Run() error {
	err := app.initialize()
	if err != nil {
		return err
	}

	app.window.Show()

	loop := renderer.NewLoop(app.cfg, app.renderer, app.window, &scene.World{}, frame.SystemClock{})
	return gpu.Check(loop.Run(), "Run loop")
}

func (app *Application) initialize() error {
	vertex, fragment, err := shaders.Binaries()
	if err = gpu.Check(err, "Compile shaders"); err != nil {
		return err
	}

	mesh, err := scene.LoadHouse()
	if err = gpu.Check(err, "Load model"); err != nil {
		return err
	}

	app.window, err = window.Create("framepipe", app.cfg.WindowWidth, app.cfg.WindowHeight)
	if err = gpu.Check(err, "Create window"); err != nil {
		return err
	}

	app.instance, err = vulkan.CreateInstance(app.window.InstanceExtensions(), vulkan.Options{
		ApplicationName:  "framepipe",
		EnableValidation: enableValidationLayers,
		Logger:           app.cfg.Logger,
	})
	if err = gpu.Check(err, "Create instance"); err != nil {
		return err
	}

	app.surface, err = app.instance.CreateSurface(app.window.Handle())
	if err = gpu.Check(err, "Create surface"); err != nil {
		return err
	}

	width, height := app.window.DrawableSize()
	app.renderer, err = renderer.New(app.cfg, app.instance, app.surface, pipeline.ShaderBinaries{
		Vertex:   vertex,
		Fragment: fragment,
	}, mesh, gpu.Extent2D{Width: width, Height: height})
	if err = gpu.Check(err, "Create renderer"); err != nil {
		return err
	}

	return nil
}

// Cleanup tears down in reverse creation order. Anything never created is
// skipped.
func (app *Application) Cleanup() {
	if app.renderer != nil {
		gpu.Check(app.renderer.Destroy(), "Destroy renderer")
		app.renderer = nil
	}

	if app.surface != nil {
		app.surface.Destroy()
		app.surface = nil
	}

	app.instance.Destroy()
	app.instance = nil

	if app.window != nil {
		app.window.Destroy()
		app.window = nil
	}
}

func main() {
	logger := log.Default()
	gpu.SetLogger(logger)

	cfg := renderer.DefaultConfig()
	cfg.Logger = logger

	app := &Application{cfg: cfg}
	defer app.Cleanup()

	err := app.Run()
	if err != nil {
		logger.Printf("%+v\n", err)
	}
}
