package main

import (
	"context"
	"os"

	"github.com/docsheet/docsheet/internal/console"
)

func main() {
	code := console.Run(context.Background(), os.Args[1:], console.Options{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	os.Exit(code)
}
