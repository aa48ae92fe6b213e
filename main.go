package main

import "transbooks/cmd"

func main() {
	cmd.Execute()
}
