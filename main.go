package main

import (
	"os"

	"github.com/vpittamp/i3pm/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
