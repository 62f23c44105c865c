// Command spdnetd is a thin wiring example, not a supported server product:
// build a Context, bind a ROUTER node, and log every REGISTER/UNREGISTER/
// ALIVE it receives.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	spdnet "github.com/atsika/spdnet"
	"github.com/atsika/spdnet/logging"
	"github.com/atsika/spdnet/pool"
)

func main() {
	schemeFlag := flag.String("scheme", "tcp", "Transport scheme: tcp, azblob, azqueue, aztable")
	addrFlag := flag.String("addr", ":7700", "Address to bind the ROUTER node at")
	secureFlag := flag.Bool("secure", false, "Require a Noise NN handshake before REGISTER (see WithSecureRegister)")
	aliveFlag := flag.Duration("alive-floor", spdnet.MinAliveIntervalFloor, "Minimum keepalive interval nodes may set")
	scanFlag := flag.Duration("scan-interval", 100*time.Millisecond, "Pool keepalive/async-timeout scan interval")
	verboseFlag := flag.Bool("v", false, "Enable debug logging")

	flag.Usage = printUsage
	flag.Parse()

	logger := logging.Std{Print: log.Println}
	if !*verboseFlag {
		logger = logging.Std{} // Print left nil: every level, Debugf included, becomes a no-op
	}

	p := pool.New(
		pool.WithLogger(logger),
		pool.WithScanInterval(*scanFlag),
	)
	defer p.Close()

	ctx, err := spdnet.New(
		spdnet.WithScheme(*schemeFlag),
		spdnet.WithPool(p),
		spdnet.WithLogger(logger),
		spdnet.WithMinAliveInterval(*aliveFlag),
		spdnet.WithSecureRegister(*secureFlag),
	)
	if err != nil {
		log.Fatalf("spdnetd: building context: %v", err)
	}
	defer ctx.Close()

	router, err := spdnet.NewNode(ctx, spdnet.KindRouter)
	if err != nil {
		log.Fatalf("spdnetd: creating router node: %v", err)
	}
	defer router.Destroy()

	if err := router.Bind(*addrFlag); err != nil {
		log.Fatalf("spdnetd: binding %s: %v", *addrFlag, err)
	}
	fmt.Printf("spdnetd: listening on %s://%s (secure=%v)\n", *schemeFlag, *addrFlag, *secureFlag)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go serve(router, *secureFlag, done)

	<-stop
	fmt.Println("spdnetd: shutting down")
	close(done)
}

// serve is a minimal accept/dispatch loop: one registration at a time. A
// real deployment would run one goroutine per transport.Socket peer; this
// example keeps a single-threaded-per-node contract, trading peer
// concurrency for clarity.
func serve(router *spdnet.Node, secure bool, done <-chan struct{}) {
	handshaked := !secure
	for {
		select {
		case <-done:
			return
		default:
		}

		if !handshaked {
			if err := router.AcceptSecureHandshake(); err != nil {
				continue
			}
			handshaked = true
		}

		msg := spdnet.NewMessage()
		if err := router.RecvmsgTimeout(msg, 2*time.Second); err != nil {
			if err != spdnet.ErrTimeout {
				fmt.Printf("spdnetd: recv error: %v\n", err)
			}
			continue
		}

		verb := string(msg.Get(spdnet.PartHeader).Bytes())
		identity := msg.Get(spdnet.PartContent).Bytes()
		if secure {
			if plain, err := router.UnsealContent(identity); err == nil {
				identity = plain
			}
		}
		name, _ := msg.MetaName()
		var ttl byte
		if meta, ok := msg.Meta(); ok {
			ttl = meta.TTL
		}
		fmt.Printf("spdnetd: %s from %x (meta name=%q ttl=%d)\n", verb, identity, name, ttl)
		msg.Close()
	}
}

func printUsage() {
	fmt.Println("spdnetd - minimal spdnet ROUTER example")
	fmt.Println("Usage:")
	fmt.Println("  spdnetd [-scheme tcp] [-addr :7700] [-secure] [-alive-floor 5s] [-scan-interval 100ms] [-v]")
}
