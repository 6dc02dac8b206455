package main

import "github.com/russellromney/cipherdb/cmd"

func main() {
	cmd.Execute()
}
