// Package telegram wraps the MTProto client: session handling, interactive
// authentication, channel resolution and the history/download primitives the
// export pipeline consumes.
package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"golang.org/x/time/rate"

	"github.com/harhitroot/tgexport/pkg/config"
	"github.com/harhitroot/tgexport/pkg/logger"
)

// Channel identifies one resolved channel
type Channel struct {
	ID         int64
	AccessHash int64
	Title      string
	Username   string
}

// Client wraps the gotd client. All API calls must happen inside Run.
type Client struct {
	client *telegram.Client
	api    *tg.Client
	phone  string
	log    logger.Logger
}

// New creates a client with a file-backed session and an RPC smoothing
// limiter. The coarse burst gate lives in the export pipeline; this limiter
// only spaces individual RPCs.
func New(cfg *config.TelegramConfig, log logger.Logger) (*Client, error) {
	sessionDir := filepath.Join(cfg.SessionDir, sessionFolder(cfg.Phone))
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2.0
	}

	options := telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: filepath.Join(sessionDir, "session.json"),
		},
		Middlewares: []telegram.Middleware{
			ratelimit.New(rate.Limit(rps), 3),
		},
	}

	client := telegram.NewClient(cfg.APIID, cfg.APIHash, options)

	return &Client{
		client: client,
		api:    client.API(),
		phone:  cfg.Phone,
		log:    log,
	}, nil
}

// API returns the raw tg.Client for direct calls
func (c *Client) API() *tg.Client {
	return c.api
}

// Run connects, authenticates if the session is fresh and invokes f. The
// connection is torn down when f returns.
func (c *Client) Run(ctx context.Context, f func(ctx context.Context) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(terminalAuth{phone: c.phone}, auth.SendCodeOptions{})
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("auth: %w", err)
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("fetch self: %w", err)
		}
		c.log.WithFields(map[string]interface{}{
			"user_id":  self.ID,
			"username": self.Username,
		}).Info("authenticated")

		return f(ctx)
	})
}

// Logout terminates the session on the server side
func (c *Client) Logout(ctx context.Context) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		if _, err := c.api.AuthLogOut(ctx); err != nil {
			return wrapErr("log out", err)
		}
		return nil
	})
}

// ResolveChannel resolves a channel reference: an @username, a bare
// username, or a numeric channel ID looked up among the account's dialogs.
func (c *Client) ResolveChannel(ctx context.Context, ref string) (*Channel, error) {
	ref = strings.TrimPrefix(ref, "@")

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return c.findDialogChannel(ctx, id)
	}

	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: ref,
	})
	if err != nil {
		return nil, wrapErr("resolve username", err)
	}

	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return &Channel{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Title:      ch.Title,
				Username:   ch.Username,
			}, nil
		}
	}
	return nil, fmt.Errorf("channel not found: %s", ref)
}

func (c *Client) findDialogChannel(ctx context.Context, id int64) (*Channel, error) {
	channels, err := c.Dialogs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range channels {
		if channels[i].ID == id {
			return &channels[i], nil
		}
	}
	return nil, fmt.Errorf("channel %d not found among dialogs", id)
}

// Dialogs lists the channels and groups visible in the account's dialogs,
// sorted by title.
func (c *Client) Dialogs(ctx context.Context) ([]Channel, error) {
	result, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      500,
	})
	if err != nil {
		return nil, wrapErr("list dialogs", err)
	}

	var chats []tg.ChatClass
	switch d := result.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	default:
		return nil, fmt.Errorf("unexpected dialogs response %T", result)
	}

	var channels []Channel
	for _, chat := range chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		channels = append(channels, Channel{
			ID:         ch.ID,
			AccessHash: ch.AccessHash,
			Title:      ch.Title,
			Username:   ch.Username,
		})
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Title < channels[j].Title
	})
	return channels, nil
}

func (ch *Channel) inputPeer() *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
}

func (ch *Channel) inputChannel() *tg.InputChannel {
	return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
}

func sessionFolder(phone string) string {
	var out []rune
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return "phone-" + string(out)
}
