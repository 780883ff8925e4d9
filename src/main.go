package main

import (
	"github.com/pinio-labs/pinioscan/src/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		cmd.PrintFatal(err)
	}
}
