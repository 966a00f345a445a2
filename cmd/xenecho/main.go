// Command xenecho is a small demonstration of the xen package: it either
// serves arithmetic commands or dials a server and sends one.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xenmsg/xen"
	"github.com/xenmsg/xen/xentest"
)

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	switch os.Args[1] {
	case "serve":
		serve(os.Args[2])
	case "dial":
		if len(os.Args) < 4 {
			usage()
		}
		dial(os.Args[2], strings.Join(os.Args[3:], " "))
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: xenecho serve <addr:port> | xenecho dial <addr:port> <expr>")
	os.Exit(2)
}

func serve(addr string) {
	host, portText, err := net.SplitHostPort(addr)
	fatalIf(err)
	port, err := strconv.Atoi(portText)
	fatalIf(err)

	srv, err := xen.NewServer(context.Background(),
		xen.WithServerConfig(xen.ServerConfig{Address: host, Port: port, MaxClients: -1, Channel: xen.DefaultChannelConfig}),
		xen.WithServerTrace(xen.DiagnosticHooks),
		xen.WithServerChannelOptions(xen.WithEvaluator(xentest.ArithmeticEvaluator{})),
	)
	fatalIf(err)
	defer srv.Close()

	fmt.Printf("xenecho serving on %s\n", srv.Addr())
	select {}
}

func dial(addr, expr string) {
	host, portText, err := net.SplitHostPort(addr)
	fatalIf(err)
	port, err := strconv.Atoi(portText)
	fatalIf(err)

	replies := make(chan string, 1)
	cli, err := xen.NewClient(context.Background(), &xen.ClientConfig{Host: host, Port: port},
		xen.WithResponseHandler(func(category xen.Category, serial uint64, text string) {
			replies <- fmt.Sprintf("%s:%d:%s", category, serial, text)
		}),
	)
	fatalIf(err)
	defer cli.Close()

	_, err = cli.SendCommand(expr)
	fatalIf(err)

	select {
	case reply := <-replies:
		fmt.Println(reply)
	case <-time.After(5 * time.Second):
		fmt.Fprintln(os.Stderr, "xenecho: timed out waiting for a reply")
		os.Exit(1)
	}
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "xenecho:", err)
		os.Exit(1)
	}
}
