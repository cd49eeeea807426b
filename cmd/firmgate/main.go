package main

import "github.com/jmcleod/firmgate/cmd/firmgate/cmd"

func main() {
	cmd.Execute()
}
