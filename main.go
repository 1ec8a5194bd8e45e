package main

import "vidframe/cmd"

func main() {
	cmd.Execute()
}
