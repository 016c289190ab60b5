// Command ekfcal_status runs the read-only websocket status hub on its own,
// for a dashboard client to connect to independently of a running
// ekfcal_sim process (spec.md §7's status feed decoupled from estimation).
//
// Grounded on cmd/udp_server/main.go's flag-then-signal-wait shutdown shape.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ekfcal-go/logging"
	"ekfcal-go/statusweb"
)

func main() {
	port := flag.Int("port", 8081, "HTTP/WebSocket port to serve the status feed on")
	debugLevel := flag.Int("debug", int(logging.LevelInfo), "log verbosity (0=off, 1=error .. 5=trace)")
	flag.Parse()

	log := logging.New(os.Stderr, logging.Level(*debugLevel))

	srv := statusweb.NewServer()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("status hub listening on :%d", *port)
		errCh <- srv.Start(*port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "ekfcal_status: %v\n", err)
			os.Exit(-1)
		}
	case <-sigChan:
		log.Infof("shutting down")
		srv.Stop()
	}
}
