// Command client is an interactive terminal client for the chat server.
// Server lines are printed as they arrive; every line typed on stdin is sent
// as one frame.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/talkline/chat-app/internal/client"
	"github.com/talkline/chat-app/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON config file")
	addr := flag.String("addr", "", "server address (overrides the config file)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	target := cfg.Client.Addr()
	if *addr != "" {
		target = *addr
	}

	c, err := client.Dial(target)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.CopyTo(os.Stdout); err != nil {
			fmt.Println("Disconnected from server.")
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}
		if err := c.Send(scanner.Text()); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return
		}
	}
}
