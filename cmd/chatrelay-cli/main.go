// Binary chatrelay-cli is a terminal chat client for a chatrelay server.
// It drives the same client pipeline a browser front-end would: SSE decode,
// incremental reduction, delta batching, and the conversation store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentline/chatrelay/pkg/client"
	"github.com/agentline/chatrelay/pkg/models"
)

func main() {
	var serverURL string
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "chatrelay-cli",
		Short: "Interactive terminal chat against a chatrelay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), serverURL, debug)
		},
	}
	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "chatrelay server base URL")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "show tool, routing, and restream messages")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chatrelay-cli: %v\n", err)
		os.Exit(1)
	}
}

func runChat(ctx context.Context, serverURL string, debug bool) error {
	session := client.NewSession(serverURL)
	if debug {
		session.ToggleDebugMode()
	}

	fmt.Println("Connected to", serverURL)
	fmt.Println("Commands: /reset, /debug, /retry, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	rendered := 0
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit":
			return nil
		case "/reset":
			session.InitializeSession()
			rendered = 0
			fmt.Println("Session reset")
			continue
		case "/debug":
			on := session.ToggleDebugMode()
			fmt.Println("Debug mode:", on)
			continue
		case "/retry":
			if content, ok := lastFailedContent(session.Store()); ok {
				if err := session.ResendMessage(ctx, content); err != nil {
					fmt.Fprintln(os.Stderr, "retry failed:", err)
				}
			} else {
				fmt.Println("Nothing to retry")
			}
		default:
			if err := session.SendMessage(ctx, line); err != nil {
				fmt.Fprintln(os.Stderr, "send failed:", err)
			}
		}

		rendered = render(session.Store(), rendered)
	}
}

// render prints transcript entries added since the last call and returns the
// new high-water mark.
func render(store *client.Store, since int) int {
	messages := store.VisibleMessages()
	for _, m := range messages[min(since, len(messages)):] {
		switch m.Type {
		case models.MessageTypeUser:
			// Already echoed by the prompt.
		case models.MessageTypeBot:
			fmt.Println(m.Content)
		case models.MessageTypeError:
			fmt.Printf("[error] %s\n", m.Content)
		case models.MessageTypeTool:
			fmt.Printf("[tool %s: %s]\n", m.Name, m.Status)
		case models.MessageTypeRouting:
			fmt.Printf("[routing %s -> %s]\n", m.Start, m.End)
		case models.MessageTypeRestream:
			fmt.Printf("[restream #%d after %s]\n", m.RetryCount, m.LastEventType)
		}
	}
	return len(messages)
}

// lastFailedContent finds the most recent unretried error message's original
// input.
func lastFailedContent(store *client.Store) (string, bool) {
	messages := store.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Type == models.MessageTypeError && m.OriginalContent != "" && !m.IsRetried {
			return m.OriginalContent, true
		}
	}
	return "", false
}
