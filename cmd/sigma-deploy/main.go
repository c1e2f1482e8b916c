package main

import "github.com/markuskont/go-sigma-rule-deploy/cmd"

func main() {
	cmd.Execute()
}
