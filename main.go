package main

import (
	"os"

	"github.com/bugspotter/intelligence/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
