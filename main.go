// Package main is the entry point for the auditscope CLI.
package main

import "auditscope.dev/pkg/auditscope/cmd"

func main() {
	cmd.Execute()
}
