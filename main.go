package main

import "imgapi/cmd"

func main() {
	cmd.Execute()
}
