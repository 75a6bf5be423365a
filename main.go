package main

import "github.com/lepinkainen/shelfnotes/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
