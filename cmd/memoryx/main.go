// Package main is the entry point for the memory engine process.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/memoryx/cmd/memoryx/app"
)

func main() {
	app.NewApp().Run()
}
