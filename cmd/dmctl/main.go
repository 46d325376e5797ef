package main

import "dmfeed/internal/cli"

func main() {
	cli.Execute()
}
