package main

import (
	"github.com/robotalks/linkping/pkg/cli/sh"
	"github.com/robotalks/linkping/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
