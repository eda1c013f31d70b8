package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"sentinelvision/internal/app"
)

var (
	resizePort int

	rootCmd = &cobra.Command{
		Use:   "sentinel",
		Short: "Video threat detector with adaptive key-frame retention",
		Long:  longRoot,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the detection loop and the dashboard API",
		Long:  longRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.NewApp(context.Background())
			if err != nil {
				return err
			}
			return application.Run()
		},
	}

	resizeCmd = &cobra.Command{
		Use:   "resize",
		Short: "Serve the standalone resize endpoint",
		Long:  longResize,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunResize(resizePort)
		},
	}
)

func init() {
	resizeCmd.Flags().IntVar(&resizePort, "port", 5000, "port to listen on")

	rootCmd.AddCommand(runCmd, resizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("sentinel failed", "err", err)
		os.Exit(1)
	}
}

var longRoot = `
SentinelVision captures frames, scores them with an ONNX classifier, raises
alerts for threats and keeps a de-duplicated set of key frames on disk.
Configuration is read from the environment and an optional .env file.
`

var longRun = `
Run the monitor loop against CAPTURE_SOURCE and serve the dashboard API.

Examples:
  # Webcam 0 with a preview window.
  sentinel run

  # JPEG datagrams on port 9999, no window.
  CAPTURE_SOURCE=udp://:9999 HEADLESS=true sentinel run
`

var longResize = `
Serve POST /resize, which scales a base64 image by its motion level.

Examples:
  sentinel resize --port 5000
`
