package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/config"
	"github.com/garyjia/purchase-approval/internal/container"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
)

// Isolated check of notification delivery.
//
//	test-notification ou_xxx            send a test message to a Lark open_id
//	test-notification someone@corp.com  send to a Lark user by email
//	test-notification -retry            redeliver FAILED and stale PENDING outbox rows once

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	retry := flag.Bool("retry", false, "redeliver failed notifications and exit")
	flag.Parse()

	fmt.Println("=== Notification Delivery Check ===")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *retry {
		retryFailedNotifications(ctx, cfg, logger)
		return
	}

	if flag.NArg() != 1 {
		log.Fatal("Usage: test-notification [-config path] <open_id|email> | -retry")
	}
	sendTestMessage(ctx, cfg, logger, flag.Arg(0))
}

func sendTestMessage(ctx context.Context, cfg *config.Config, logger *zap.Logger, target string) {
	if !cfg.Lark.Enabled {
		fmt.Println("lark.enabled is false, the message will only be logged")
	} else {
		fmt.Printf("App ID: %s\n", maskID(cfg.Lark.AppID))
	}

	recipient := &entity.User{Name: "Delivery Check"}
	if strings.HasPrefix(target, "ou_") {
		recipient.LarkOpenID = target
	} else {
		recipient.Email = target
	}

	sender := container.ProvideMessageSender(cfg.Lark, logger)
	msg := port.Message{
		Title: "Purchase approval: delivery check",
		Body:  fmt.Sprintf("This is a test message sent at %s.", time.Now().Format(time.RFC3339)),
	}

	fmt.Printf("\nSending through %s to %s...\n", sender.Name(), target)
	if err := sender.Send(ctx, recipient, msg); err != nil {
		log.Fatalf("✗ Send failed: %v", err)
	}
	fmt.Println("✓ Message sent")
}

func retryFailedNotifications(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start container: %v", err)
	}
	defer func() { _ = c.Close() }()

	sent, err := c.Services().Notifications.RetryFailed(ctx, cfg.Notification.RetryBatch)
	if err != nil {
		log.Printf("✗ Retry pass failed: %v", err)
		return
	}
	fmt.Printf("✓ Redelivered %d notification(s)\n", sent)
}

func maskID(id string) string {
	if len(id) <= 8 {
		return "****"
	}
	return id[:4] + "..." + id[len(id)-4:]
}
