// Command chatclient is a terminal client for the coach/member chat and
// notification feed.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/apiclient"
	"github.com/saeid-a/CoachAppRealtime/internal/chat"
	"github.com/saeid-a/CoachAppRealtime/internal/config"
	"github.com/saeid-a/CoachAppRealtime/internal/logger"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/notifications"
	"github.com/saeid-a/CoachAppRealtime/internal/realtime"
	"github.com/saeid-a/CoachAppRealtime/pkg/utils"
)

func main() {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLog := logger.NewWithWriter(os.Stderr, cfg.AppEnv, cfg.LogLevel)

	if cfg.UserID == "" {
		cfg.UserID = userIDFromToken(cfg.AuthToken)
	}
	if cfg.UserID == "" {
		appLog.Fatal().Msg("USER_ID is required when the token carries no user id")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLog, os.Stdin, os.Stdout); err != nil {
		appLog.Fatal().Err(err).Msg("chat client stopped")
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, appLog zerolog.Logger, in io.Reader, out io.Writer) error {
	manager := realtime.NewManager(realtime.Options{
		URL:            cfg.SocketURL,
		Token:          cfg.AuthToken,
		ConnectTimeout: cfg.ConnectTimeout,
		SendTimeout:    cfg.SendTimeout,
		Backoff: realtime.Backoff{
			Initial:     cfg.Reconnect.Initial,
			Max:         cfg.Reconnect.Max,
			Multiplier:  cfg.Reconnect.Multiplier,
			Jitter:      cfg.Reconnect.Jitter,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		Logger: appLog,
	})
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Close()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	if err := manager.WaitConnected(waitCtx); err != nil {
		fmt.Fprintf(out, "! not connected yet (%v), retrying in the background\n", err)
	}
	cancel()

	api := apiclient.New(cfg.APIBaseURL, cfg.AuthToken, cfg.RequestTimeout)
	ui := &terminal{out: out}
	session := chat.NewSession(manager, api, chat.SessionOptions{
		Viewer:   chat.Viewer{ID: cfg.UserID, Role: cfg.Role},
		Filter:   chat.ParseFilterMode(cfg.MessageFilter),
		Logger:   appLog,
		OnNotice: ui.notice,
	})
	defer session.Close()
	session.OnMessagesChanged(func() { ui.messagesChanged(session.Messages()) })

	feed := notifications.NewFeed(api, appLog)
	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	go feed.Poll(pollCtx, cfg.NotificationPoll, func([]models.RawNotification) {
		ui.unreadChanged(feed.UnreadCount(notifications.PageContext{}))
	})

	_ = session.Start(ctx)
	ui.printPeers(session)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, line, session, feed, ui); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, line string, session *chat.Session, feed *notifications.Feed, ui *terminal) bool {
	cmd := parseCommand(line)
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cmd.Name {
	case cmdNone:
	case cmdQuit:
		return true
	case cmdPeers:
		if err := session.RetryPeers(opCtx); err == nil {
			ui.printPeers(session)
		}
	case cmdPeer:
		peers := session.Peers()
		if cmd.Index < 1 || cmd.Index > len(peers) {
			ui.printf("! no peer #%d\n", cmd.Index)
			return false
		}
		if err := session.SelectPeer(opCtx, peers[cmd.Index-1].ID); err == nil {
			ui.printf("* talking to %s\n", peers[cmd.Index-1].Name)
		}
	case cmdNotifications:
		if _, err := feed.Fetch(opCtx); err != nil {
			ui.notice(chat.Notice{Resource: "notifications", Err: err})
		}
		ui.printNotifications(feed.Display(notifications.PageContext{Path: cmd.Arg}))
	case cmdDelete:
		if err := feed.Delete(opCtx, cmd.Arg); err != nil {
			ui.notice(chat.Notice{Resource: "notifications", Err: err})
		}
	case cmdClear:
		if err := feed.MarkAllRead(opCtx); err != nil {
			ui.notice(chat.Notice{Resource: "notifications", Err: err})
		} else {
			ui.printf("* notifications cleared\n")
		}
	case cmdSend:
		if !session.CanSend() {
			ui.printf("! cannot send: %s\n", session.State())
			return false
		}
		if err := session.Send(cmd.Arg); err != nil {
			ui.printf("! %v\n", err)
		}
	default:
		ui.printf("! unknown command %q\n", cmd.Arg)
	}
	return false
}

// userIDFromToken reads the user id claim without verifying the signature;
// the backend does the verification.
func userIDFromToken(token string) string {
	claims := &utils.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Subject
}
