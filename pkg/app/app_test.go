package app

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"softrx/pkg/app/config"
	"softrx/pkg/capture"
	"softrx/pkg/raspberry"
	"softrx/pkg/softrx"
)

func newTestApp(t *testing.T) *App {
	cfg := config.NewConfig()
	cfg.Driver = "emu"
	cfg.Channels = []config.ChannelConfig{
		{Name: "meter", Gpio: 17, Baud: 9600},
		{Name: "gps", Gpio: 27, Baud: 4800, Topic: "nmea"},
	}
	require.NoError(t, cfg.Validate())

	app, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, app.init())
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// send drives data on the emulated line of gpio and lets the line go idle.
func send(t *testing.T, app *App, gpio int, baud uint32, start uint32, data string) {
	line, ok := app.gpio.(*raspberry.EmuGPIO).Line(gpio)
	require.True(t, ok)

	c := capture.Encode([]byte(data), raspberry.NanoSecond, baud, start, 1)
	for _, e := range c.Edges {
		line.EmuEdge(e.Level, e.Tick)
	}

	var idle uint32
	for _, ch := range app.channels {
		if ch.rx.Pin() == gpio {
			idle = ch.rx.IdleTicks()
		}
	}
	line.SetTicks(c.Edges[len(c.Edges)-1].Tick + idle + 1)
}

func TestInit(t *testing.T) {
	app := newTestApp(t)

	require.Len(t, app.channels, 2)
	assert.Equal(t, 2, app.registry.Len())
	assert.Equal(t, "meter", app.channels[0].topic, "topic defaults to the name")
	assert.Equal(t, "nmea", app.channels[1].topic)
}

func TestInitDuplicateGpio(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Driver = "emu"
	cfg.Channels = []config.ChannelConfig{
		{Name: "a", Gpio: 4, Baud: 9600},
		{Name: "b", Gpio: 4, Baud: 9600},
	}

	app, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()
	require.Error(t, app.init())
}

func TestPoll(t *testing.T) {
	app := newTestApp(t)

	send(t, app, 17, 9600, 1000, "1-0:1.8.0")
	send(t, app, 27, 4800, 5000, "$GPGGA")
	app.poll()

	b, at := app.channels[0].Recent()
	assert.Equal(t, []byte("1-0:1.8.0"), b)
	assert.False(t, at.IsZero())

	b, _ = app.channels[1].Recent()
	assert.Equal(t, []byte("$GPGGA"), b)

	// nothing new, nothing added
	app.poll()
	b, _ = app.channels[0].Recent()
	assert.Len(t, b, 9)
}

func TestRecentLimit(t *testing.T) {
	app := newTestApp(t)
	ch := app.channels[0]

	data := make([]byte, 0, 300)
	for i := 0; i < 300; i++ {
		data = append(data, 'a'+byte(i%26))
	}
	start := uint32(1000)
	for i := 0; i < len(data); i += 32 {
		end := i + 32
		if end > len(data) {
			end = len(data)
		}
		send(t, app, 17, 9600, start, string(data[i:end]))
		app.poll()
		start += 50_000_000
	}

	b, _ := ch.Recent()
	assert.Equal(t, data[len(data)-recentSize:], b)
}

func TestHandleData(t *testing.T) {
	app := newTestApp(t)

	send(t, app, 17, 9600, 1000, "OK")
	app.poll()

	res, err := app.web.Test(httptest.NewRequest("GET", "/data", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var data []resp
	require.NoError(t, json.Unmarshal(body, &data))
	require.Len(t, data, 2)

	assert.Equal(t, "meter", data[0].Name)
	assert.Equal(t, 17, data[0].Gpio)
	assert.Equal(t, uint32(9600), data[0].Baud)
	assert.Equal(t, softrx.NoError.String(), data[0].State)
	assert.Equal(t, "4f4b", data[0].Recent)
	assert.Equal(t, uint32(2), data[0].Stats.Bytes)
	assert.Empty(t, data[1].Recent)
}

func TestHandleHealth(t *testing.T) {
	app := newTestApp(t)

	line, ok := app.gpio.(*raspberry.EmuGPIO).Line(27)
	require.True(t, ok)
	line.EmuEdge(false, 1000)
	line.EmuEdge(true, 1000+20*raspberry.NanoSecond/4800)

	res, err := app.web.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)

	var health struct {
		Channels int
		Faulty   []string
		Version  string
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	assert.Equal(t, 2, health.Channels)
	assert.Equal(t, []string{"gps"}, health.Faulty)
	assert.Equal(t, VERSION, health.Version)
}

func TestHandleVersion(t *testing.T) {
	app := newTestApp(t)

	res, err := app.web.Test(httptest.NewRequest("GET", "/version", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "softrx V1.0.10", Version())
}
