package main

import "github.com/dbsmedya/goask/cmd/goask/cmd"

func main() {
	cmd.Execute()
}
