package app

import (
	"sync"
	"time"

	"github.com/womat/debug"
	"softrx/pkg/app/config"
	"softrx/pkg/forward"
	"softrx/pkg/mqtt"
	"softrx/pkg/softrx"
)

// recentSize is the count of received bytes kept per channel for the web service.
const recentSize = 256

// channel is a configured receiver and the sinks of its bytes.
type channel struct {
	name  string
	topic string
	rx    *softrx.Receiver
	fwd   *forward.Forwarder

	// lastState and lastStats are used to log changes, only the service loop accesses them.
	lastState softrx.ErrorState
	lastStats softrx.Stats

	sync.RWMutex
	recent   []byte
	received time.Time
}

// openChannel configures a receiver on the gpio of c.
func (app *App) openChannel(c config.ChannelConfig) (*channel, error) {
	line, err := app.gpio.NewPin(c.Gpio)
	if err != nil {
		return nil, err
	}

	rx, err := softrx.Configure(app.registry, line, line, c.Baud,
		softrx.WithQueue(app.config.Queue.Size, app.config.Queue.Overflow))
	if err != nil {
		return nil, err
	}

	ch := &channel{name: c.Name, topic: c.Topic, rx: rx}
	if ch.topic == "" {
		ch.topic = c.Name
	}

	if c.Forward != "" {
		if ch.fwd, err = forward.Open(c.Forward, c.ForwardBaud); err != nil {
			return nil, err
		}
	}

	return ch, nil
}

// service runs the idle sweep of all receivers and collects the received bytes.
// The interval must not be longer than a byte time.
func (app *App) service() {
	defer app.wg.Done()

	t := time.NewTicker(app.config.Service)
	defer t.Stop()

	for {
		select {
		case <-app.shutdown:
			return
		case <-t.C:
			app.poll()
		}
	}
}

// poll sweeps every receiver once and hands its bytes to the sinks.
func (app *App) poll() {
	for _, ch := range app.channels {
		ch.rx.Service()

		if b := ch.drain(); len(b) > 0 {
			debug.TraceLog.Printf("%s: received % x", ch.name, b)
			app.publish(ch, b)
		}

		ch.logChanges()
	}
}

// drain reads all received bytes of the channel and keeps the latest of them.
func (ch *channel) drain() []byte {
	var b []byte
	for c, ok := ch.rx.Read(); ok; c, ok = ch.rx.Read() {
		b = append(b, c)
	}
	if len(b) == 0 {
		return nil
	}

	ch.Lock()
	defer ch.Unlock()

	ch.recent = append(ch.recent, b...)
	if n := len(ch.recent); n > recentSize {
		ch.recent = append(ch.recent[:0], ch.recent[n-recentSize:]...)
	}
	ch.received = time.Now()
	return b
}

// publish sends b to the mqtt broker and the forward port.
func (app *App) publish(ch *channel, b []byte) {
	if ch.fwd != nil {
		if _, err := ch.fwd.Write(b); err != nil {
			debug.ErrorLog.Printf("%s: forward: %v", ch.name, err)
		}
	}

	if app.config.MQTT.Connection == "" {
		return
	}

	go func(t string, p []byte) {
		app.mqtt.C <- mqtt.Message{
			Qos:      0,
			Retained: false,
			Topic:    t,
			Payload:  p,
		}
	}(app.config.MQTT.Topic+"/"+ch.topic, b)
}

// logChanges logs changes of the error state and the error counters.
func (ch *channel) logChanges() {
	if s := ch.rx.State(); s != ch.lastState {
		if s == softrx.NoError {
			debug.InfoLog.Printf("%s: receiving again", ch.name)
		} else {
			debug.ErrorLog.Printf("%s: %v", ch.name, s)
		}
		ch.lastState = s
	}

	st := ch.rx.Stats()
	if st.FramingErrors != ch.lastStats.FramingErrors || st.LongLowErrors != ch.lastStats.LongLowErrors ||
		st.Drops != ch.lastStats.Drops {
		debug.DebugLog.Printf("%s: framing errors %d (+%d), line low %d (+%d), dropped %d (+%d)", ch.name,
			st.FramingErrors, st.FramingErrors-ch.lastStats.FramingErrors,
			st.LongLowErrors, st.LongLowErrors-ch.lastStats.LongLowErrors,
			st.Drops, st.Drops-ch.lastStats.Drops)
	}
	ch.lastStats = st
}

// Recent returns a copy of the latest received bytes and the time of the last one.
func (ch *channel) Recent() ([]byte, time.Time) {
	ch.RLock()
	defer ch.RUnlock()
	return append([]byte(nil), ch.recent...), ch.received
}

// Close closes the forward port.
func (ch *channel) Close() error {
	if ch.fwd == nil {
		return nil
	}
	return ch.fwd.Close()
}
