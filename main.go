package main

import (
	"github.com/ProjectsTask/EasySwapOrderBook/cmd"
)

// main 程序入口, 例如 go run main.go daemon
func main() {
	cmd.Execute()
}
