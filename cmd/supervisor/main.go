package main

import "github.com/aquarig/supervisor/cmd/supervisor/cmd"

func main() {
	cmd.Execute()
}
