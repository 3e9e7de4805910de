package main

import "github.com/stevemurr/dashstate/cli"

func main() {
	cli.Execute()
}
