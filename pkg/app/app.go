package app

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
	"softrx/pkg/app/config"
	"softrx/pkg/dispatch"
	"softrx/pkg/mqtt"
	"softrx/pkg/raspberry"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// gpio is the handler to the gpio device
	gpio raspberry.GPIO

	// registry binds the receivers to the edges of their lines
	registry *dispatch.Registry

	// channels are the configured receivers
	channels []*channel

	// wg waits for the service loop
	wg sync.WaitGroup
	// shutdown signals application shutdown
	shutdown chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:      fiber.New(),
		mqtt:     mqtt.New(),
		registry: dispatch.New(),

		shutdown: make(chan struct{}),
	}, err
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()

	app.wg.Add(1)
	go app.service()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	if app.gpio, err = raspberry.Open(app.config.Driver, app.config.Chip); err != nil {
		debug.ErrorLog.Printf("can't open gpio: %v", err)
		return err
	}

	for _, c := range app.config.Channels {
		ch, err := app.openChannel(c)
		if err != nil {
			debug.ErrorLog.Printf("can't open channel %q: %v", c.Name, err)
			return fmt.Errorf("channel %q: %w", c.Name, err)
		}

		debug.InfoLog.Printf("channel %q listens on gpio %v with %v baud", ch.name, c.Gpio, c.Baud)
		app.channels = append(app.channels, ch)
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection, mqtt.ClientID(MODULE)); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should be always called last because it may access things like app.channels
	// which must be initialized before
	app.initDefaultRoutes()

	return nil
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/softrx.go)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

func (app *App) Close() error {
	if app.shutdown != nil {
		close(app.shutdown)
		app.wg.Wait()
		app.shutdown = nil
	}

	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if app.registry != nil {
		_ = app.registry.Close()
	}

	for _, ch := range app.channels {
		_ = ch.Close()
	}

	if app.gpio != nil {
		_ = app.gpio.Close()
	}
	return nil
}
