package main

import "github.com/openpic/picguard/internal/cli"

func main() {
	cli.Execute()
}
