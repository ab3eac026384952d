package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
	"softrx/pkg/softrx"
)

// HandleHealth returns data about the health of myself and of the receivers.
// output example:
//  {"NumGoroutines":11,"HeapAllocatedMB":3,"Channels":2,"Faulty":["meter"],
//   "Version":"1.0.10+20261001","ProgLang":"go1.21.3","HostName":"pi","Time":"2026-10-19T08:00:00Z"}
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		// channels in error state
		faulty := []string{}
		for _, ch := range app.channels {
			if ch.rx.State() != softrx.NoError {
				faulty = append(faulty, ch.name)
			}
		}

		healthData := struct {
			NumGoroutines   int
			HeapAllocatedMB uint64
			SysMemoryMB     uint64
			Channels        int
			Faulty          []string
			Version         string
			ProgLang        string
			HostName        string
			Time            string
		}{
			NumGoroutines:   runtime.NumGoroutine(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			Channels:        len(app.channels),
			Faulty:          faulty,
			ProgLang:        runtime.Version(),
			Version:         VERSION,
			HostName:        host,
			Time:            time.Now().Format(time.RFC3339),
		}
		ctx.Status(http.StatusOK)
		return ctx.JSON(healthData)
	}
}
