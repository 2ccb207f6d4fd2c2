package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/reef-pi/farmer/cmd/farmer/app"
)

func main() {
	if err := app.NewFarmerCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
