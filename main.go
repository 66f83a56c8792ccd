package main

import "github.com/axionmev/flasharb/cmd"

func main() {
	cmd.Execute()
}
