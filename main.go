package main

import "tradesentry/internal/cli"

func main() {
	cli.Execute()
}
