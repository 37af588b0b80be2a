// cmd/fdml/main.go
//
// Entry point for the fdml CLI. Commands are assembled in root.go; main only
// wires the process streams and turns a failed command into exit status 1.

package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
