package main

import "github.com/agentic-research/kiln/cmd"

func main() {
	cmd.Execute()
}
