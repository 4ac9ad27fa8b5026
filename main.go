package main

import "chargecal/cmd"

func main() {
	cmd.Execute()
}
