package main

import "smartsearch/cmd"

func main() {
	cmd.Execute()
}
