package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"tradebook/internal/book"
	"tradebook/internal/money"
	"tradebook/internal/wire"
)

// reportFixedHeaderLen matches the server's Report encoding: every
// fixed-width field up to (but not including) the variable-length
// symbol, id, error string, and counterparty.
const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 2 + 4 + 1 + 2

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the matching engine server")
	owner := flag.String("owner", "", "3-letter user code (compulsory)")
	action := flag.String("action", "place", "action to perform: ['place', 'cancel', 'log']")

	symbol := flag.String("symbol", "AAPL", "product symbol")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	price := flag.Float64("price", 100.0, "limit price in dollars")
	qtyStr := flag.String("qty", "10", "quantity or comma-separated list (e.g. 10,20,50)")

	cancelID := flag.String("id", "", "tradable id to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *owner)

	cache := money.NewCache()
	go readReports(conn, cache)

	side := book.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = book.Sell
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			if err := sendPlaceOrder(conn, *owner, *symbol, side, *price, qty); err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", qty, err)
			} else {
				fmt.Printf("-> Sent %s Order: %s %d @ %.2f\n", strings.ToUpper(*sideStr), *symbol, qty, *price)
			}
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *cancelID == "" {
			log.Fatal("Error: -id is required for cancellation")
		}
		if err := sendCancelOrder(conn, side, *symbol, *cancelID); err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent Cancel Request for ID: %s\n", *cancelID)
		}

	case "log":
		if err := sendLog(conn); err != nil {
			log.Printf("Failed to send log request: %v", err)
		} else {
			fmt.Println("-> Sent Log Request")
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: invalid quantity %q, skipping.", p)
		}
	}
	return result
}

func sendPlaceOrder(conn net.Conn, owner, symbol string, side book.Side, price float64, qty uint64) error {
	m := wire.NewOrderMessage{
		Side:       side,
		PriceCents: int64(price * 100),
		Volume:     uint32(qty),
		User:       owner,
		Symbol:     symbol,
	}
	_, err := conn.Write(m.Serialize())
	return err
}

func sendCancelOrder(conn net.Conn, side book.Side, symbol, id string) error {
	m := wire.CancelOrderMessage{Side: side, Symbol: symbol, ID: id}
	_, err := conn.Write(m.Serialize())
	return err
}

func sendLog(conn net.Conn) error {
	buf := make([]byte, wire.BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(wire.LogBook))
	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and parses Report messages from the
// server.
func readReports(conn net.Conn, cache *money.Cache) {
	for {
		headerBuf := make([]byte, reportFixedHeaderLen)
		if _, err := io.ReadFull(conn, headerBuf); err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		msgType := wire.ReportMessageType(headerBuf[0])
		side := book.Side(headerBuf[1])
		qty := binary.BigEndian.Uint64(headerBuf[10:18])
		priceCents := int64(binary.BigEndian.Uint64(headerBuf[18:26]))
		counterpartyLen := binary.BigEndian.Uint16(headerBuf[26:28])
		errStrLen := binary.BigEndian.Uint32(headerBuf[28:32])
		symbolLen := int(headerBuf[32])
		idLen := int(binary.BigEndian.Uint16(headerBuf[33:35]))

		varBuf := make([]byte, symbolLen+idLen+int(errStrLen)+int(counterpartyLen))
		if len(varBuf) > 0 {
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("Error reading report body: %v", err)
				return
			}
		}

		offset := 0
		symbol := string(varBuf[offset : offset+symbolLen])
		offset += symbolLen
		id := string(varBuf[offset : offset+idLen])
		offset += idLen
		errStr := string(varBuf[offset : offset+int(errStrLen)])
		offset += int(errStrLen)
		counterparty := string(varBuf[offset : offset+int(counterpartyLen)])

		price := cache.Intern(int(priceCents))

		if msgType == wire.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
		} else {
			fmt.Printf("\n[EXECUTION] %s %s | Qty: %d | Price: %s | vs: %s | ID: %s\n",
				side, symbol, qty, price, counterparty, id)
		}
	}
}
