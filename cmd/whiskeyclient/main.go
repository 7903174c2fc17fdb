// Command whiskeyclient issues a single SPDY/3.1 request to a server and
// prints the reply headers and body.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/AesirMachina/whiskey"
)

func main() {
	var (
		addr   = flag.String("addr", "localhost:443", "host:port to dial")
		scheme = flag.String("scheme", "https", "http or https")
		path   = flag.String("path", "/", "request path")
		method = flag.String("method", "GET", "request method")
		wait   = flag.Duration("wait", 5*time.Second, "how long to wait for a reply")
	)
	flag.Parse()

	host, portStr := splitHostPort(*addr)
	port := 443
	if *scheme == "http" {
		port = 80
	}
	if portStr != "" {
		fmt.Sscanf(portStr, "%d", &port)
	}

	cfg := whiskey.DefaultConfig()
	cfg.Logger = log.New(os.Stderr, "whiskeyclient: ", log.LstdFlags)

	client := whiskey.NewClient(cfg)
	session, err := client.Dial(*scheme, host, port)
	if err != nil {
		log.Fatalf("whiskeyclient: dial: %v", err)
	}
	defer session.Close(whiskey.GoAwayOK)

	stream, err := session.Queue(&whiskey.Request{
		Headers: [][2]string{
			{":method", *method},
			{":path", *path},
			{":version", "HTTP/1.1"},
			{":host", host},
			{":scheme", *scheme},
		},
	})
	if err != nil {
		log.Fatalf("whiskeyclient: queue: %v", err)
	}

	timeout := time.NewTimer(*wait)
	defer timeout.Stop()

	for {
		select {
		case h := <-stream.Headers():
			fmt.Printf("%s: %s\n", h[0], h[1])
		case b := <-stream.Data():
			os.Stdout.Write(b)
		case <-stream.Done():
			if err := stream.Err(); err != nil {
				log.Fatalf("whiskeyclient: stream: %v", err)
			}
			return
		case <-timeout.C:
			log.Fatalf("whiskeyclient: timed out waiting for reply")
		}
	}
}

func splitHostPort(addr string) (host, port string) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return addr, ""
	}
	return addr[:i], addr[i+1:]
}
