package main

import "github.com/jsphweid/keystation/cmd"

func main() {
	cmd.Execute()
}
