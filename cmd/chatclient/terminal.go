package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/saeid-a/CoachAppRealtime/internal/chat"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

const (
	cmdNone = iota
	cmdSend
	cmdQuit
	cmdPeers
	cmdPeer
	cmdNotifications
	cmdDelete
	cmdClear
	cmdUnknown
)

type command struct {
	Name  int
	Arg   string
	Index int
}

func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{Name: cmdNone}
	}
	if !strings.HasPrefix(line, "/") {
		return command{Name: cmdSend, Arg: line}
	}

	fields := strings.Fields(line)
	arg := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	switch fields[0] {
	case "/quit", "/exit":
		return command{Name: cmdQuit}
	case "/peers":
		return command{Name: cmdPeers}
	case "/peer":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return command{Name: cmdUnknown, Arg: line}
		}
		return command{Name: cmdPeer, Index: n}
	case "/notifications":
		return command{Name: cmdNotifications, Arg: arg}
	case "/delete":
		if arg == "" {
			return command{Name: cmdUnknown, Arg: line}
		}
		return command{Name: cmdDelete, Arg: arg}
	case "/clear":
		return command{Name: cmdClear}
	default:
		return command{Name: cmdUnknown, Arg: line}
	}
}

// terminal serializes output from the input loop and the socket goroutine.
type terminal struct {
	mu     sync.Mutex
	out    io.Writer
	shown  []string
	unread int
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) notice(n chat.Notice) {
	t.printf("! could not load %s: %v\n", n.Resource, n.Err)
}

func (t *terminal) printPeers(session *chat.Session) {
	selected, _ := session.SelectedPeer()
	for i, peer := range session.Peers() {
		marker := " "
		if peer.ID == selected.ID {
			marker = "*"
		}
		t.printf("%s %d. %s (%s)\n", marker, i+1, peer.Name, peer.Role)
	}
}

// messagesChanged prints messages that were not on screen yet. A list that no
// longer extends the shown one is a fresh conversation and is printed whole.
func (t *terminal) messagesChanged(messages []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := len(t.shown)
	if start > len(messages) {
		start = 0
	}
	for i := 0; i < start; i++ {
		if messageKey(messages[i]) != t.shown[i] {
			start = 0
			break
		}
	}
	if start == 0 {
		t.shown = t.shown[:0]
	}

	for _, m := range messages[start:] {
		fmt.Fprintf(t.out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.SenderRole, m.Content)
		t.shown = append(t.shown, messageKey(m))
	}
}

func (t *terminal) printNotifications(display []models.DisplayNotification) {
	t.printf("notifications (%d)\n", len(display))
	for _, n := range display {
		t.printf("  %s  %s\n", n.ID, n.Message)
	}
}

// unreadChanged prints the unread badge when the count moved.
func (t *terminal) unreadChanged(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if count == t.unread {
		return
	}
	t.unread = count
	fmt.Fprintf(t.out, "* %d unread notifications\n", count)
}

func messageKey(m models.Message) string {
	if m.ID != "" {
		return m.ID
	}
	return m.Timestamp.String() + "|" + m.Content
}
