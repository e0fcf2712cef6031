/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"os"

	"github.com/ssargent/snapshotetl/cmd/snapshot-etl/cmd"
	"github.com/ssargent/snapshotetl/pkg/di"
)

func main() {
	// Initialize dependency injection container
	container := di.NewContainer(os.Stderr)

	// Inject dependencies into cmd package
	cmd.SetContainer(container)

	cmd.Execute()
}
