package main

import "github.com/prplab/prpctl/cmd"

func main() {
	cmd.Execute()
}
