package main

import (
	"github.com/maxgio92/unwindreport/pkg/cmd"
)

func main() {
	cmd.Execute()
}
