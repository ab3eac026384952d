package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
	"softrx/pkg/dispatch"
	"softrx/pkg/ringbuffer"
)

// Config holds the application configuration. Attention!
// To make it possible to overwrite fields with the -overwrite command
// line option each of the struct fields must be in the format
// first letter uppercase -> followed by CamelCase as in the config file.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Driver     string          `yaml:"driver"`
	Chip       string          `yaml:"chip"`
	ServiceInt int             `yaml:"service"`
	Service    time.Duration   `yaml:"-"`
	Queue      QueueConfig     `yaml:"queue"`
	Channels   []ChannelConfig `yaml:"channels"`
	Flag       FlagConfig      `yaml:"-"`
	Debug      DebugConfig     `yaml:"debug"`
	Webserver  WebserverConfig `yaml:"webserver"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Version    bool
	Debug      string
	ConfigFile string
}

// QueueConfig defines the receive queue of each channel.
type QueueConfig struct {
	Size           int               `yaml:"size"`
	OverflowString string            `yaml:"overflow"`
	Overflow       ringbuffer.Policy `yaml:"-"`
}

// ChannelConfig defines one receiver: the gpio it listens on and the baud rate.
// Received bytes are published to Topic (relative to MQTT.Topic) and written to Forward (serial device).
type ChannelConfig struct {
	Name        string `yaml:"name"`
	Gpio        int    `yaml:"gpio"`
	Baud        uint32 `yaml:"baud"`
	Topic       string `yaml:"topic"`
	Forward     string `yaml:"forward"`
	ForwardBaud int    `yaml:"forwardbaud"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Driver:     "gpiod",
		Chip:       "gpiochip0",
		ServiceInt: 10,
		Queue: QueueConfig{
			Size:           64,
			OverflowString: "drop",
		},
		Flag: FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "",
			Topic:      "softrx"},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Service = time.Duration(c.ServiceInt) * time.Millisecond

	return c.Validate()
}

// Validate checks the configuration and reports all problems at once.
func (c *Config) Validate() error {
	var result error

	p, err := ringbuffer.ParsePolicy(c.Queue.OverflowString)
	if err != nil {
		result = multierror.Append(result, err)
	}
	c.Queue.Overflow = p

	if s := c.Queue.Size; s <= 0 || s&(s-1) != 0 {
		result = multierror.Append(result, fmt.Errorf("queue size %d is not a power of two", s))
	}

	if c.ServiceInt <= 0 {
		result = multierror.Append(result, fmt.Errorf("service interval %d ms must be positive", c.ServiceInt))
	}

	if len(c.Channels) == 0 {
		result = multierror.Append(result, fmt.Errorf("no channel configured"))
	}
	if len(c.Channels) > dispatch.MaxInstances {
		result = multierror.Append(result, fmt.Errorf("%d channels configured, max %d", len(c.Channels), dispatch.MaxInstances))
	}

	gpios := map[int]string{}
	for i, ch := range c.Channels {
		name := ch.Name
		if name == "" {
			name = fmt.Sprintf("channel %d", i)
		}

		if ch.Baud == 0 {
			result = multierror.Append(result, fmt.Errorf("%s: baud rate missing", name))
		}
		if ch.Gpio < 0 {
			result = multierror.Append(result, fmt.Errorf("%s: invalid gpio %d", name, ch.Gpio))
		}
		if other, ok := gpios[ch.Gpio]; ok {
			result = multierror.Append(result, fmt.Errorf("%s: gpio %d already used by %s", name, ch.Gpio, other))
		}
		gpios[ch.Gpio] = name

		if ch.Forward != "" && ch.ForwardBaud == 0 {
			c.Channels[i].ForwardBaud = int(ch.Baud)
		}
	}

	return result
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
