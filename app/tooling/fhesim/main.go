package main

import "github.com/fhesim/fhesim/app/tooling/fhesim/cmd"

func main() {
	cmd.Execute()
}
