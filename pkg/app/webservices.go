package app

import (
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
	"softrx/pkg/softrx"
)

type resp struct {
	Name     string       `json:"name"`
	Gpio     int          `json:"gpio"`
	Baud     uint32       `json:"baud"`
	State    string       `json:"state"`
	Stats    softrx.Stats `json:"stats"`
	Buffered int          `json:"buffered"`
	Recent   string       `json:"recent"`   // latest received bytes as hex
	Received time.Time    `json:"received"` // time of the latest received byte
}

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleData returns state, counters and the latest bytes of every channel.
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request data")

		data := make([]resp, 0, len(app.channels))
		for _, ch := range app.channels {
			b, t := ch.Recent()
			data = append(data, resp{
				Name:     ch.name,
				Gpio:     ch.rx.Pin(),
				Baud:     ch.rx.Baud(),
				State:    ch.rx.State().String(),
				Stats:    ch.rx.Stats(),
				Buffered: ch.rx.Buffered(),
				Recent:   hex.EncodeToString(b),
				Received: t,
			})
		}

		return ctx.JSON(data)
	}
}
