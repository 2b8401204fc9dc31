// Command bcr2kosc bridges a Behringer B-Control surface to OSC.
package main

import (
	"os"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chabad360/bcr2kosc/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
