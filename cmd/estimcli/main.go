package main

import (
	"github.com/robotalks/estim.go/pkg/cli/sh"
	"github.com/robotalks/estim.go/pkg/transport"
)

//go-build: CGO_ENABLED=0

func init() {
	transport.SetupFlags()
}

func main() {
	sh.Main()
}
