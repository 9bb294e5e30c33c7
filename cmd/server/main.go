package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tradebook/internal/engine"
	"tradebook/internal/wire"
)

func main() {
	address := flag.String("address", "0.0.0.0", "address to bind the TCP listener to")
	port := flag.Int("port", 9001, "port to bind the TCP listener to")
	products := flag.String("products", "AAPL,TGT,MSFT", "comma-separated product symbols to pre-register")
	users := flag.String("users", "AAA,BBB,CCC", "comma-separated user ids to pre-register")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	eng := engine.New(os.Stdout)
	if err := eng.InitUsers(splitNonEmpty(*users)); err != nil {
		log.Fatalf("unable to register startup users: %v", err)
	}
	for _, symbol := range splitNonEmpty(*products) {
		if err := eng.AddProduct(symbol); err != nil {
			log.Fatalf("unable to register startup product %q: %v", symbol, err)
		}
	}

	srv := wire.New(*address, *port, eng)

	go srv.Run(ctx)
	<-ctx.Done()
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
