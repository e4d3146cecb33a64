package main

import "github.com/diwenne/clutch-shot-searcher/internal/cli"

func main() {
	cli.Main()
}
