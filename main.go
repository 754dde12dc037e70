package main

import (
	"os"

	"github.com/artifex-pm/artifexctl/internal/cmd"
	"github.com/artifex-pm/artifexctl/internal/util"
)

const version = "0.1.0"

func main() {
	util.InitPrintf()
	os.Exit(cmd.RunWithArgs(os.Args[1:], version))
}
