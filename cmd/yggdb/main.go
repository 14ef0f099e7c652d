/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/torvik/yggdb/cmd/yggdb/cmd"
)

func main() {
	cmd.Execute()
}
