package main

import "github.com/voxalytics/voxalytics/cmd"

func main() {
	cmd.Execute()
}
