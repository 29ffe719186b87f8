package main

import "github.com/nextlevelbuilder/liteclaw/cmd"

func main() {
	cmd.Execute()
}
