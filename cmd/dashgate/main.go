package main

import "github.com/avancel/dashgate/cmd/dashgate/cmd"

func main() {
	cmd.Execute()
}
