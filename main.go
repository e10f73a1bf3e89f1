// main.go
//
// Minimal entry point that delegates CLI handling to the Cobra root command
// in cmd/pywr.

package main

import (
	"github.com/pywr-go/pywr/cmd/pywr"
)

func main() {
	pywr.Execute()
}
