package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"givebridge/internal/api"
	"givebridge/internal/config"
	"givebridge/internal/domain"
	"givebridge/internal/events"
	"givebridge/internal/live"
	"givebridge/internal/session"
	"givebridge/internal/syncengine"
	"givebridge/pkg/logger"

	"github.com/joho/godotenv"
)

// portalcli wires the sync engine against a running backend: logs in,
// prints the conversation list, optionally sends one message, then streams
// incoming messages and notifications until interrupted.
func main() {
	email := flag.String("email", "student@givebridge.org", "account email")
	password := flag.String("password", "givebridge", "account password")
	to := flag.String("to", "", "counterpart user id to open")
	send := flag.String("send", "", "message to send to -to")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	l := logger.New(logger.DevelopmentMode)
	defer l.Logger.Sync()

	ctx := context.Background()
	login, err := api.Login(ctx, cfg.Client.APIBaseURL, *email, *password, cfg.Client.RequestTimeout)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	claims, err := session.Identity(login.Token)
	if err != nil {
		log.Fatalf("Bad token: %v", err)
	}
	fmt.Printf("logged in as %s (%s)\n", login.User.DisplayName(), claims.Role)

	endpoints := api.NewRoleEndpoints(domain.Role(claims.Role))
	client := api.NewHTTPClient(cfg.Client.APIBaseURL, login.Token, endpoints, cfg.Client.RequestTimeout)
	messagesCh := live.NewWSChannel(cfg.Client.LiveURL, events.TopicMessages, login.Token, l)
	notificationsCh := live.NewWSChannel(cfg.Client.LiveURL, events.TopicNotifications, login.Token, l)

	engine := syncengine.New(claims.UserID, client, messagesCh, notificationsCh, l)
	defer engine.Teardown()

	engine.OnChange(func() {
		fmt.Printf("\r[%d unread] %d conversations, %d messages in open thread\n",
			engine.UnreadCount(), len(engine.Conversations()), len(engine.Thread()))
	})

	if err := engine.Initialize(ctx); err != nil {
		log.Fatalf("Initialize failed: %v", err)
	}

	for _, c := range engine.Conversations() {
		fmt.Printf("  %s (%s): %s\n", c.CounterpartName, c.CounterpartID, c.LastMessagePreview)
	}

	if *to != "" {
		if err := engine.OpenConversation(ctx, domain.UserRef{ID: *to}); err != nil {
			log.Fatalf("Open conversation failed: %v", err)
		}
		if *send != "" {
			msg, err := engine.SendMessage(ctx, *send)
			if err != nil {
				log.Fatalf("Send failed: %v", err)
			}
			fmt.Printf("sent %s at %s\n", msg.ID, msg.CreatedAt.Format("15:04:05"))
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
