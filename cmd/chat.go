package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/liteclaw/internal/config"
)

func chatCmd() *cobra.Command {
	var (
		sessionID string
		noStream  bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the agent through a running gateway",
		Long:  "Send one message and print the reply, or start an interactive session when no message is given.",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "load config: %v\n", err)
				os.Exit(1)
			}
			base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Gateway.Port)

			if len(args) > 0 {
				if err := sendChat(base, sessionID, strings.Join(args, " "), !noStream); err != nil {
					fmt.Fprintf(os.Stderr, "%v\n", err)
					os.Exit(1)
				}
				return
			}
			runInteractive(base, sessionID, !noStream)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue (default: new session)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the full reply instead of streaming")
	return cmd
}

func runInteractive(base, sessionID string, stream bool) {
	if sessionID == "" {
		sessionID = fmt.Sprintf("cli_%d", time.Now().Unix())
	}
	fmt.Printf("Session %s. Type a message, or /quit to exit.\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}
		if err := sendChat(base, sessionID, line, stream); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func sendChat(base, sessionID, message string, stream bool) error {
	body, _ := json.Marshal(map[string]interface{}{
		"message":    message,
		"session_id": sessionID,
		"stream":     stream,
	})

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Post(base+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("is the gateway running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if stream {
		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
		fmt.Println()
		return nil
	}

	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Println(parsed.Response)
	return nil
}
