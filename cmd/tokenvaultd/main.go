package main

import "github.com/tokenvault/tokenvaultd/internal/cli"

func main() {
	cli.Execute()
}
