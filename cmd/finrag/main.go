package main

import "finrag/internal/cli"

func main() {
	cli.Execute()
}
