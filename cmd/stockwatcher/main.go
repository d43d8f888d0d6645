package main

import (
	"inventory-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
