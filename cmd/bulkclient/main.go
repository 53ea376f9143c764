// Command bulkclient replays messages from a CSV capture against the chat
// server. Rows are filtered to traffic originally sent from a browser client
// to the web server; each matching message is sent as one frame and the
// server's reply is read back before the next row.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/talkline/chat-app/internal/client"
	"github.com/talkline/chat-app/internal/config"
)

const (
	srcAppFilter = "client_browser"
	dstAppFilter = "web_server"
	readTimeout  = 30 * time.Second
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON config file")
	addr := flag.String("addr", "", "server address (overrides the config file)")
	csvPath := flag.String("csv", "messages.csv", "CSV file with src_app, dst_app, and message columns")
	name := flag.String("name", "bulk_client", "name to register before replaying")
	delay := flag.Duration("delay", 100*time.Millisecond, "pause between messages")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(*configPath, *addr, *csvPath, *name, *delay); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, addr, csvPath, name string, delay time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	target := cfg.Client.Addr()
	if addr != "" {
		target = addr
	}

	rows, err := loadRows(csvPath)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d message(s) from %s\n", len(rows), csvPath)

	c, err := client.Dial(target)
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Println("Connected to server at:", target)

	// Greeting banner plus name prompt, then the two-line registration ack.
	_ = c.SetReadDeadline(time.Now().Add(readTimeout))
	for i := 0; i < 2; i++ {
		line, err := c.ReadLine()
		if err != nil {
			return fmt.Errorf("bulkclient: failed to read greeting: %w", err)
		}
		fmt.Println("Server says:", line)
	}
	if err := c.Send(name); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		line, err := c.ReadLine()
		if err != nil {
			return fmt.Errorf("bulkclient: registration failed: %w", err)
		}
		fmt.Println("Server says:", line)
	}

	sent, failed := 0, 0
	for _, msg := range rows {
		if err := c.Send(msg); err != nil {
			failed++
			fmt.Println("Send failed:", err)
			continue
		}
		_ = c.SetReadDeadline(time.Now().Add(readTimeout))
		reply, err := c.ReadLine()
		if err != nil {
			failed++
			fmt.Println("No reply:", err)
			continue
		}
		sent++
		fmt.Println("Server says:", reply)
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	fmt.Println("\nSummary:")
	fmt.Println("  Messages sent successfully:", sent)
	fmt.Println("  Messages failed:", failed)
	return nil
}

// loadRows returns the message column of every row whose src_app and dst_app
// match the replay filter.
func loadRows(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bulkclient: failed to open CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("bulkclient: failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, required := range []string{"src_app", "dst_app", "message"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("bulkclient: CSV missing %q column", required)
		}
	}

	var rows []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bulkclient: failed to read CSV row: %w", err)
		}
		if rec[col["src_app"]] == srcAppFilter && rec[col["dst_app"]] == dstAppFilter {
			rows = append(rows, rec[col["message"]])
		}
	}
	return rows, nil
}
