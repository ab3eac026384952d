package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
	"softrx/pkg/app"
	"softrx/pkg/app/config"
	"softrx/pkg/capture"
	"softrx/pkg/port"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "Software serial receiver on gpio lines",
		Version: app.VERSION,
		Description: "Receive 8-N-1 serial data on up to four gpio lines without a hardware UART" +
			"\n and publish the received bytes to mqtt or forward them to a serial device." +
			"\n The bits are timed by the edges of the line (gpio character device timestamps).",
		UsageText: "softrx [--config <file>] [--log standard|debug|trace]" +
			"\n\nEXAMPLE:" +
			"\n\tstart the receiver and use the configuration file softrx.yaml" +
			"\n\t\tsoftrx --config /opt/womat/softrx.yaml" +
			"\n\tdecode a recorded capture" +
			"\n\t\tsoftrx decode capture.yaml",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.Debug, Value: "standard", Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
		},
		Commands: []*cli.Command{
			{
				Name:      "encode",
				Usage:     "write the edges of a text sent as 8-N-1 frames to a capture file",
				ArgsUsage: "<text> <file>",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "baud", Value: 9600, Usage: "baud rate"},
					&cli.UintFlag{Name: "clock", Value: 1_000_000_000, Usage: "tick frequency of the timestamps"},
					&cli.IntFlag{Name: "gap", Value: 0, Usage: "idle bits between frames"},
				},
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 2 {
						return fmt.Errorf("text and file expected")
					}

					c := capture.Encode([]byte(ctx.Args().Get(0)), uint32(ctx.Uint("clock")), uint32(ctx.Uint("baud")), 1, ctx.Int("gap"))
					return c.Save(ctx.Args().Get(1))
				},
			},
			{
				Name:      "decode",
				Usage:     "decode the edges of a capture file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "edges", Usage: "print the edges"},
				},
				Action: func(ctx *cli.Context) error {
					c, err := capture.Load(ctx.Args().First())
					if err != nil {
						return err
					}

					if ctx.Bool("edges") {
						for _, e := range c.Edges {
							fmt.Printf("%10d %v\n", e.Tick, port.State(e.Level))
						}
					}

					res, err := capture.Replay(c)
					if err != nil {
						return err
					}

					fmt.Printf("data:  %q\n", res.Data)
					fmt.Printf("hex:   % x\n", res.Data)
					fmt.Printf("state: %v\n", res.State)
					fmt.Printf("stats: %+v\n", res.Stats)
					return nil
				},
			},
			{
				Name:      "plot",
				Usage:     "render the line level of a capture file (png, svg, pdf)",
				ArgsUsage: "<file> <image>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 2 {
						return fmt.Errorf("capture and image file expected")
					}

					c, err := capture.Load(ctx.Args().Get(0))
					if err != nil {
						return err
					}
					return c.Plot(ctx.Args().Get(1))
				},
			},
		},
		Action: func(ctx *cli.Context) error {
			if err := cfg.LoadConfig(); err != nil {
				return err
			}

			debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
			defer func() {
				debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
				_ = cfg.Debug.File.Close()
			}()

			a, err := app.New(cfg)
			defer func() {
				debug.InfoLog.Printf("closing app %s", app.Version())
				_ = a.Close()
			}()

			if err != nil {
				return err
			}

			debug.InfoLog.Printf("starting app %s", app.Version())
			if err = a.Run(); err != nil {
				return err
			}

			// capture exit signals to ensure resources are released on exit.
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			// wait for am os.Interrupt signal (CTRL C)
			sig := <-quit
			debug.InfoLog.Printf("Got %s signal. Aborting...", sig)

			return nil
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
	return
}
