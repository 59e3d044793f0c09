package main

import (
	"log/slog"
	"os"
)

const version = "1.0.0"

func main() {
	a := &app{}
	err := newRootCommand(a).Execute()
	if closeErr := a.close(); closeErr != nil {
		slog.Error("shutdown error", "error", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
