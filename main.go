package main

import "github.com/KaramelBytes/deliverylens/cmd"

func main() {
	cmd.Execute()
}
