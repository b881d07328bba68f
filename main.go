package main

import "github.com/jcdickinson/applefetch/cmd"

func main() {
	cmd.Execute()
}
