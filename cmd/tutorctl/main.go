package main

import "github.com/morph-tutor/backend/internal/cli"

func main() {
	cli.Execute()
}
