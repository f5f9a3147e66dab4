package main

import (
	"os"

	"horse.fit/dupscan/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
