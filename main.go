package main

import "github.com/ekaya-inc/ekaya-hangar/cmd"

func main() {
	cmd.Execute()
}
