package main

import (
	"os"

	"github.com/jaco00/media-transcode/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
