// Command client is a terminal chat client for manual testing against
// a running server. It signs its own token, connects over WebSocket
// and turns simple slash commands into protocol frames.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"

	"github.com/xtzs123/uniapp-backend/auth"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	UserID    int64  `env:"CHAT_USER_ID,default=1"`
	Username  string `env:"CHAT_USERNAME,default=tester"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := auth.GenerateToken(config.UserID, config.Username, auth.KindUser, 24*time.Hour)
	if err != nil {
		return exitRuntime, fmt.Errorf("token: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL+"?token="+token, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	log.Info("Connected", "server", config.ServerURL, "user_id", config.UserID)

	// Incoming frames print in the background while stdin drives sends.
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				stop()
				return
			}
			printFrame(payload)
		}
	}()

	go readStdin(conn, log)

	<-ctx.Done()
	return exitOK, nil
}

func readStdin(conn *websocket.Conn, log *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		payload, err := buildFrame(scanner.Text())
		if err != nil {
			color.Red.Println(err)
			continue
		}
		if payload == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Error("Write failed", "error", err)
			return
		}
	}
}

// buildFrame turns one input line into a protocol frame. Lines starting
// with '{' pass through as raw JSON for testing arbitrary commands.
func buildFrame(line string) ([]byte, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, "{") {
		return []byte(line), nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/list":
		return json.Marshal(map[string]any{"type": "get_conversation_list"})
	case "/ping":
		return json.Marshal(map[string]any{"type": "ping"})
	case "/msg":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: /msg <userId> <text>")
		}
		target, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad user id %q", fields[1])
		}
		return json.Marshal(map[string]any{
			"type": "send_message", "conversationId": "client",
			"content": strings.Join(fields[2:], " "), "messageType": "TEXT",
			"targetUserId": target,
		})
	case "/gmsg":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: /gmsg <groupId> <text>")
		}
		groupID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad group id %q", fields[1])
		}
		return json.Marshal(map[string]any{
			"type": "send_message", "conversationId": "client",
			"content": strings.Join(fields[2:], " "), "messageType": "TEXT",
			"groupId": groupID,
		})
	case "/recall":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: /recall <messageId>")
		}
		messageID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad message id %q", fields[1])
		}
		return json.Marshal(map[string]any{"type": "recall_message", "messageId": messageID})
	default:
		return nil, fmt.Errorf("unknown command %q (try /list /msg /gmsg /recall /ping or raw JSON)", fields[0])
	}
}

func printFrame(payload []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(payload, &envelope)

	switch envelope.Type {
	case "error":
		color.Red.Println(string(payload))
	case "new_message", "message_sent":
		color.Green.Println(string(payload))
	case "system", "pong":
		color.Yellow.Println(string(payload))
	default:
		color.Cyan.Println(string(payload))
	}
}
