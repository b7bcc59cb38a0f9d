package main

import "github.com/theratcoder/ratinit/internal/cli"

func main() {
	cli.Execute()
}
