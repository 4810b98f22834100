package main

import "github.com/eventreg/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
