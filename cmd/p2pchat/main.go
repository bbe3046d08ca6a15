package main

import (
	"os"

	"github.com/Alfaashh/P2PChat/cmd/p2pchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
