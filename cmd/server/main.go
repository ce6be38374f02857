package main

import "github.com/phillip/event-manager-go/cmd/server/cmd"

func main() {
	cmd.Execute()
}
