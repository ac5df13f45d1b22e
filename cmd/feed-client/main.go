package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"bookring/internal/feed"
)

// feed-client tails the TCP listing feed and filters it, for watching a
// single class of inventory change (say, only listing.created) without
// the full firehose the interactive client prints.

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP listing feed address")
	types := flag.String("type", "", "comma-separated event types to keep, e.g. listing.created,listing.deleted (empty = all)")
	count := flag.Int("count", 0, "exit after this many matching events (0 = run forever)")
	pretty := flag.Bool("pretty", false, "pretty print matching events as JSON")
	flag.Parse()

	keep := map[string]bool{}
	for _, t := range strings.Split(*types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			keep[t] = true
		}
	}

	seen := 0
	for {
		err := run(*addr, keep, *pretty, *count, &seen)
		if err == nil {
			return
		}
		log.Printf("[feed-client] disconnected: %v", err)
		time.Sleep(1 * time.Second) // auto reconnect
	}
}

func run(addr string, keep map[string]bool, pretty bool, count int, seen *int) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[feed-client] connected to %s", addr)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()

		var ev feed.ListingEvent
		if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
			// not a listing event; skip unless unfiltered
			if len(keep) == 0 {
				fmt.Println(string(line))
			}
			continue
		}
		if len(keep) > 0 && !keep[ev.Type] {
			continue
		}

		printEvent(ev, pretty)
		*seen++
		if count > 0 && *seen >= count {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func printEvent(ev feed.ListingEvent, pretty bool) {
	if pretty {
		b, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Println(string(b))
		return
	}
	fmt.Printf("%s  %-16s listing=%s", ev.At.Format(time.RFC3339), ev.Type, ev.ListingID)
	if ev.Title != "" {
		fmt.Printf("  %q", ev.Title)
	}
	fmt.Println()
}
