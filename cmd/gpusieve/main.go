package main

import (
	"os"

	"gpusieve/internal/cli"
)

func main() { os.Exit(cli.Main()) }
