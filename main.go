package main

import "github.com/qobs-build/qflags/cmd"

func main() {
	cmd.Execute()
}
