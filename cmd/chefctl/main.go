// Package main implements the chefctl CLI tool.
// It deploys the Bringo Chef agent to Cloud Run and repairs the
// permissions its runtime identity needs.
package main

import "github.com/bringochef/chefctl/cmd/chefctl/cmd"

func main() {
	cmd.Execute()
}
