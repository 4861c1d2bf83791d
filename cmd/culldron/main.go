package main

import (
	"os"

	"horse.fit/culldron/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
