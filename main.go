package main

import "github.com/javking07/cleanbench/cmd"

func main() {
	cmd.Execute()
}
