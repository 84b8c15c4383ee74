package main

import (
	cmd "github.com/kerbaras/readly/cmd/readly"
)

func main() {
	cmd.Execute()
}
