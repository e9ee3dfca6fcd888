package main

import "github.com/airsift/airsift/pkg/cli"

func main() {
	cli.Execute()
}
