package main

import (
	"os"

	"github.com/adalundhe/cmdbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
