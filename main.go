// main.go
//
// Entry point; CLI handling lives in the Cobra commands under cmd/

package main

import (
	"github.com/azulcer/cerasim/cmd"
)

func main() {
	cmd.Execute()
}
