package main

import (
	"os"

	"storefront/internal/cli"
)

func main() {
	os.Exit(cli.New().Execute(os.Args[1:]))
}
