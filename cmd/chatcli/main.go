// chatcli is a terminal client for the chatstream backend. It logs in,
// streams assistant responses as they are generated, and can replay the
// stored conversation.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chatstream-backend/internal/transcript"
	"chatstream-backend/pkg/chatclient"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Backend base URL")
	email := flag.String("email", "", "Account email")
	password := flag.String("password", "", "Account password")
	register := flag.Bool("register", false, "Create the account instead of logging in")
	conversation := flag.String("conversation", "", "Conversation ID (default conversation when empty)")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *email == "" || *password == "" {
		log.Fatal("Both -email and -password are required")
	}

	ctx := context.Background()
	client := chatclient.New(*addr)

	if err := client.Health(ctx); err != nil {
		log.Fatalf("Cannot reach %s: %v", *addr, err)
	}

	var err error
	if *register {
		_, err = client.Register(ctx, *email, *password, nil)
	} else {
		_, err = client.Login(ctx, *email, *password)
	}
	if err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *email)
	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /history, /clear, /quit")
	fmt.Println()

	consumer := transcript.NewConsumer()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/history":
			messages, err := client.Messages(ctx, *conversation)
			if err != nil {
				log.Printf("Failed to load history: %v", err)
				continue
			}
			for _, msg := range messages {
				printMessage(msg)
			}
			continue
		case "/clear":
			if err := client.ClearMessages(ctx, *conversation); err != nil {
				log.Printf("Failed to clear conversation: %v", err)
				continue
			}
			consumer = transcript.NewConsumer()
			fmt.Println("Conversation cleared.")
			continue
		}

		if err := streamPrompt(ctx, client, consumer, input, *conversation); err != nil {
			log.Printf("Stream failed: %v", err)
		}
	}
}

// streamPrompt sends one prompt and prints deltas as they arrive.
func streamPrompt(ctx context.Context, client *chatclient.Client, consumer *transcript.Consumer, prompt, conversation string) error {
	var printed int
	var lastID string

	err := client.StreamText(ctx, consumer, prompt, conversation, func(messages []transcript.RenderedMessage) {
		current, ok := consumer.Current()
		if !ok {
			return
		}
		if current.ID != lastID {
			lastID = current.ID
			printed = 0
		}
		if len(current.Content) > printed {
			fmt.Print(current.Content[printed:])
			printed = len(current.Content)
		}
	})
	fmt.Println()
	return err
}

func printMessage(msg transcript.RenderedMessage) {
	fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	for _, inv := range msg.Invocations {
		result := "(pending)"
		if inv.Result != nil {
			result = *inv.Result
		}
		fmt.Printf("  tool %s(%s) -> %s\n", inv.Name, string(inv.Arguments), result)
	}
}
