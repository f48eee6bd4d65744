// Package main is the single-binary entrypoint for streakd, the streak
// scoring microservice.
package main

import "github.com/streakforge/streakd/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
