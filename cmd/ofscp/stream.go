// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rorumall/go-ofscp/ledger"
	"github.com/rorumall/go-ofscp/message"
	"github.com/rorumall/go-ofscp/network"
	"github.com/rorumall/go-ofscp/session"
)

var historyCmd = &cli.Command{
	Name:      "history",
	Usage:     "print the stored messages of a channel",
	ArgsUsage: "<group id> <channel id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "print the raw page"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 2 {
			return errors.New("history: need group and channel id")
		}
		c, err := apiClient()
		if err != nil {
			return err
		}
		page, err := c.ChannelMessages(longctx, ctx.Args().Get(0), ctx.Args().Get(1))
		if err != nil {
			return explain(err)
		}

		if ctx.Bool("json") {
			b, err := message.Marshal(page)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}

		now := time.Now()
		msgs := make([]ledger.StoredMessage, len(page.Items))
		for i, cm := range page.Items {
			msgs[i] = ledger.FromChannelMessage(cm, now)
		}
		cl := ledger.NewChannelLedger(0)
		cl.SetHistory(msgs)
		for _, m := range cl.Messages() {
			printMessage(os.Stdout, ctx.Args().Get(1), m, now)
		}
		return nil
	},
}

var listenCmd = &cli.Command{
	Name:      "listen",
	Usage:     "subscribe to channels and print what arrives",
	ArgsUsage: "<channel id>...",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "group", Usage: "load the history of the channels in this group first"},
	},
	Action: func(ctx *cli.Context) error {
		channels := ctx.Args().Slice()
		if len(channels) == 0 {
			return errors.New("listen: need at least one channel")
		}

		var count uint64
		sess, provider, err := openSession(
			session.WithMessageHook(func(_, channelID string, m ledger.StoredMessage) {
				atomic.AddUint64(&count, 1)
				printMessage(os.Stdout, channelID, m, time.Now())
			}),
			session.WithPresenceHook(func(_, userID string, p message.Presence) {
				level.Info(log).Log("event", "presence", "user", userID, "availability", p.Availability)
			}),
		)
		if err != nil {
			return err
		}
		defer sess.Close()

		if group := ctx.String("group"); group != "" {
			for _, ch := range channels {
				if err := sess.LoadHistory(longctx, provider, group, ch); err != nil {
					return explain(err)
				}
				for _, m := range sess.Messages(ch) {
					printMessage(os.Stdout, ch, m, time.Now())
				}
			}
		}

		g, gctx := errgroup.WithContext(longctx)
		g.Go(func() error { return sess.Run(gctx) })
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case pe := <-sess.Errors():
					level.Warn(log).Log("event", "provider error", "err", pe)
				}
			}
		})

		if err := sess.Connect(provider); err != nil {
			return err
		}
		for _, ch := range channels {
			if err := sess.Subscribe(provider, ch); err != nil {
				return err
			}
		}

		err = g.Wait()
		level.Info(log).Log("event", "done", "received", humanize.Comma(int64(atomic.LoadUint64(&count))))
		return err
	},
}

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "post a message and wait for the provider to accept it",
	ArgsUsage: "<channel id> <text>...",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "title"},
		&cli.StringFlag{Name: "type", Value: string(message.TypeMessage), Usage: "message, memo or article"},
		&cli.StringFlag{Name: "reply-to", Usage: "id of the parent message"},
		&cli.DurationFlag{Name: "wait", Value: 15 * time.Second, Usage: "how long to wait for the ack"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() < 2 {
			return errors.New("send: need channel and text")
		}
		channel := ctx.Args().First()
		body := strings.Join(ctx.Args().Slice()[1:], " ")

		mt := message.MessageType(ctx.String("type"))
		if !mt.Valid() {
			return errors.Errorf("send: unknown message type %q", mt)
		}
		mo := session.MessageOptions{Type: &mt}
		if t := ctx.String("title"); t != "" {
			mo.Title = &t
		}
		if p := ctx.String("reply-to"); p != "" {
			mo.ParentID = &p
		}

		sess, provider, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		wctx, cancel := context.WithTimeout(longctx, ctx.Duration("wait"))
		defer cancel()
		go sess.Run(wctx)

		if err := sess.Connect(provider); err != nil {
			return err
		}
		if err := awaitConnected(wctx, sess, provider); err != nil {
			return err
		}

		nonce, err := sess.SendMessageWithOptions(provider, channel, body, mo)
		if err != nil {
			return err
		}

		for {
			select {
			case <-wctx.Done():
				return errors.Errorf("send: no ack for %s within %s", nonce, ctx.Duration("wait"))
			case pe := <-sess.Errors():
				return pe
			case acked := <-sess.Acks():
				if acked.Nonce != nonce {
					continue
				}
				fmt.Println(acked.MessageID)
				return nil
			}
		}
	},
}

func openSession(opts ...session.Option) (*session.Session, string, error) {
	provider, err := requireProvider()
	if err != nil {
		return nil, "", err
	}
	cred, actor, err := loadIdentity()
	if err != nil {
		return nil, "", err
	}
	pol, err := conf.Policy()
	if err != nil {
		return nil, "", err
	}
	store, err := openStore()
	if err != nil {
		return nil, "", err
	}

	netOpts := network.Options{
		Logger:    log,
		Policy:    pol,
		QueueSize: int(conf.QueueSize),
		Metrics:   netMetrics,
		OnState:   printState(pol),
	}
	opts = append([]session.Option{
		session.WithLogger(log),
		session.WithNetwork(netOpts),
		session.WithKeyStore(store),
	}, opts...)
	sess, err := session.New(cred, actor, opts...)
	return sess, provider, err
}

func awaitConnected(ctx context.Context, sess *session.Session, host string) error {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		st := sess.State(host)
		switch st.Kind {
		case network.Connected:
			return nil
		case network.Failed:
			return errors.Errorf("connection to %s failed: %s", host, st.Reason)
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "connecting to %s (%s)", host, st)
		case <-tick.C:
		}
	}
}

func printState(pol network.ReconnectPolicy) func(string, network.State) {
	return func(host string, s network.State) {
		switch s.Kind {
		case network.Reconnecting:
			// delay that preceded this attempt
			wait := pol.DelayFor(s.Attempt - 1)
			level.Info(log).Log("event", "reconnecting", "host", host, "attempt", s.Attempt, "after", wait.String())
		case network.Failed:
			level.Error(log).Log("event", "giving up", "host", host, "reason", s.Reason)
		default:
			level.Info(log).Log("event", "state", "host", host, "state", s)
		}
	}
}

// printMessage writes one message as "[channel] 5 minutes ago user: text".
func printMessage(w io.Writer, channelID string, m ledger.StoredMessage, now time.Time) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", channelID, humanize.RelTime(m.CreatedAt, now, "ago", "from now"), m.UserID)
	if m.ParentID != nil {
		fmt.Fprintf(&b, " (reply to %s)", *m.ParentID)
	}
	if m.MessageType != message.TypeMessage {
		fmt.Fprintf(&b, " <%s>", m.MessageType)
	}
	if m.Title != nil {
		fmt.Fprintf(&b, " %q", *m.Title)
	}
	fmt.Fprintf(&b, ": %s\n", m.Content)
	io.WriteString(w, b.String())
}
