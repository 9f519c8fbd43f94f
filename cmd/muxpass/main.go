// Command muxpass is a local password manager with an inactivity PIN lock.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
