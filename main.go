package main

import "github.com/Alijeyrad/labtrace_backend/cmd"

func main() {
	cmd.Execute()
}
