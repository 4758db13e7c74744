package main

import "github.com/ds-ai96/SRP/internal/cli"

func main() {
	cli.Execute()
}
