package main

import "english_lab_go_backend/cmd/labctl/commands"

func main() {
	commands.Execute()
}
