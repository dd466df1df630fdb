// Command peernode runs a telemetry node as a listener or a sender.
//
//	peernode --role listener --address 127.0.0.1:9001
//	peernode --role sender --address 127.0.0.1:9001 --address 127.0.0.1:9002
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
