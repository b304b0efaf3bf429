// Command framekit drives the incremental terminal rendering pipeline
//
//	framekit demo           live dashboard, resize the window and watch frames coalesce
//	framekit demo --inline 8
//	framekit caps           probed terminal capabilities
//	framekit graph -o g.svg layout dependency graph of the demo dashboard
package main

import (
	"os"
)

var (
	version = "dev"
	commit  = ""
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			handleCrash(r)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
