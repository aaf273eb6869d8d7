package main

import "github.com/superbrain/gateway/cmd"

func main() {
	cmd.Execute()
}
