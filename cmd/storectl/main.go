// Command storectl runs operational tasks against the store database.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(openFromConfig, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
