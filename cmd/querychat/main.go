// Command querychat is a terminal chat client for a /query backend.
package main

import "github.com/diogo/querychat/internal/commands"

func main() {
	commands.Execute()
}
