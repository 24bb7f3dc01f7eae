// Package main is the entry point for the catalogboost CLI, a client
// for bulk AI product content enhancement.
package main

import "catalogboost/cmd"

func main() {
	cmd.Execute()
}
