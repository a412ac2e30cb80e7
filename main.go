package main

import "github.com/vnetsim/vnetsim-core/cmd"

func main() {
	cmd.Execute()
}
