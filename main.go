package main

import "dashsync/cmd"

func main() {
	cmd.Execute()
}
