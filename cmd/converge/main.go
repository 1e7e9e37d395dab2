package main

import "github.com/edgeops/converge/cmd/converge/subcmd"

func main() {
	subcmd.Execute()
}
