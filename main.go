package main

import "github.com/Relayline/pulse/cmd"

func main() {
	cmd.Execute()
}
