package main

import (
	"os"

	"github.com/unimarket/matchmaker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
