// Runs the in-memory enrollment registry emulator.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/enrollment-registry-client/cmd/flags"
	"github.com/ruteri/enrollment-registry-client/emulator"
)

func main() {
	app := &cli.App{
		Name:  "registry-emulator",
		Usage: "Serve an in-memory enrollment registry speaking the service wire protocol",
		Flags: append([]cli.Flag{
			flags.ListenAddrFlag,
			flags.LogServiceFlagFn("registry-emulator"),
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))

			handler := emulator.NewHandler(logger)
			server, err := emulator.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create emulator server", "err", err)
				return err
			}

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			server.RunInBackground()
			<-exit

			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
