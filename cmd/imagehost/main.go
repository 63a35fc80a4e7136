package main

import "github.com/imagehost/service/internal/cli"

func main() {
	cli.Execute()
}
