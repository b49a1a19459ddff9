package main

import (
	"os"

	"github.com/johnhkchen/dfcoder/cmd/workshopd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
