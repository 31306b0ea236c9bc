package main

import (
	"os"

	"github.com/KasiaMirowska/shift-track/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
