// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package testutils

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/auth"
	"github.com/rorumall/go-ofscp/message"
)

// ReceivedCommand is a command frame read by the Provider together with its sender.
type ReceivedCommand struct {
	Actor    ofscp.Actor
	Envelope message.Envelope[message.Command]
}

type deviceKey struct {
	userID string
	pub    ed25519.PublicKey
}

// Provider is an in-process OFSCP provider for tests. It serves login, channel
// history and the websocket endpoint and checks every signature it gets.
type Provider struct {
	Server *httptest.Server

	// AutoAck makes the provider answer message.create with an ack and
	// broadcast the message as message.new.
	AutoAck bool

	logger   log.Logger
	verifier auth.Verifier
	upgrader websocket.Upgrader

	reject     int32
	handshakes int32
	msgSeq     int32

	commands chan ReceivedCommand

	mu        sync.Mutex
	passwords map[string]string
	keys      map[string]deviceKey
	history   map[string][]message.ChannelMessage
	sockets   map[*websocket.Conn]*sync.Mutex
}

// NewProvider starts a provider that is shut down with the test.
func NewProvider(t testing.TB, logger log.Logger) *Provider {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	p := &Provider{
		AutoAck:   true,
		logger:    log.With(logger, "unit", "provider"),
		commands:  make(chan ReceivedCommand, 64),
		passwords: make(map[string]string),
		keys:      make(map[string]deviceKey),
		history:   make(map[string][]message.ChannelMessage),
		sockets:   make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 4,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
	p.verifier = auth.Verifier{Resolve: p.resolve, MaxSkew: time.Minute}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", p.handleLogin)
	mux.HandleFunc("/api/groups/", p.handleHistory)
	mux.HandleFunc(ofscp.WebsocketPath, p.handleWebsocket)
	p.Server = httptest.NewServer(mux)

	t.Cleanup(p.Close)
	return p
}

// Host is the address clients connect to. It is also the provider's domain.
func (p *Provider) Host() string {
	return strings.TrimPrefix(p.Server.URL, "http://")
}

func (p *Provider) Close() {
	p.DropConnections()
	p.Server.Close()
}

// AddUser creates an account.
func (p *Provider) AddUser(handle, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwords[handle] = password
}

// RegisterKey accepts pub as keyID of handle without a login.
func (p *Provider) RegisterKey(handle, keyID string, pub ed25519.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[keyID] = deviceKey{userID: handle + "@" + p.Host(), pub: pub}
}

// SetHistory sets what the history endpoint returns for channelID.
func (p *Provider) SetHistory(channelID string, msgs []message.ChannelMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[channelID] = msgs
}

// RejectHandshakes makes the next n websocket upgrades fail with 401.
func (p *Provider) RejectHandshakes(n int) {
	atomic.StoreInt32(&p.reject, int32(n))
}

// Handshakes counts the websocket upgrade requests seen so far.
func (p *Provider) Handshakes() int {
	return int(atomic.LoadInt32(&p.handshakes))
}

// Commands yields every command frame the provider read.
func (p *Provider) Commands() <-chan ReceivedCommand {
	return p.commands
}

// Sockets is the number of open websockets.
func (p *Provider) Sockets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sockets)
}

// Broadcast sends ev to every connected socket.
func (p *Provider) Broadcast(ev message.Event) error {
	env := message.NewEnvelope(ev)
	b, err := message.EncodeEvent(env)
	if err != nil {
		return err
	}
	return p.BroadcastRaw(b)
}

// BroadcastRaw sends b as a text frame to every connected socket.
func (p *Provider) BroadcastRaw(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ws, wmu := range p.sockets {
		wmu.Lock()
		err := ws.WriteMessage(websocket.TextMessage, b)
		wmu.Unlock()
		if err != nil {
			return errors.Wrap(err, "provider: broadcast failed")
		}
	}
	return nil
}

// DropConnections closes all sockets without a close frame.
func (p *Provider) DropConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ws := range p.sockets {
		ws.Close()
		delete(p.sockets, ws)
	}
}

func (p *Provider) resolve(actor ofscp.Actor, keyID string) (ed25519.PublicKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, has := p.keys[keyID]
	if !has {
		return nil, errors.Errorf("provider: unknown key %s", keyID)
	}
	if k.userID != actor.UserID() {
		return nil, errors.Errorf("provider: key %s does not belong to %s", keyID, actor)
	}
	return k.pub, nil
}

func (p *Provider) problem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	b, _ := message.Marshal(map[string]interface{}{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
	w.Write(b)
}

func (p *Provider) writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := message.Marshal(v)
	if err != nil {
		p.problem(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func (p *Provider) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		p.problem(w, http.StatusMethodNotAllowed, "login is POST only")
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		p.problem(w, http.StatusBadRequest, err.Error())
		return
	}
	var lr message.LoginRequest
	if err := message.Unmarshal(body, &lr); err != nil {
		p.problem(w, http.StatusBadRequest, err.Error())
		return
	}

	p.mu.Lock()
	pw, has := p.passwords[lr.Handle]
	p.mu.Unlock()
	if !has || pw != lr.Password {
		p.problem(w, http.StatusUnauthorized, "invalid handle or password")
		return
	}

	resp := message.LoginResponse{UserID: lr.Handle + "@" + p.Host()}
	if lr.DevicePublicKey != nil {
		pub, err := base64.StdEncoding.DecodeString(*lr.DevicePublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			p.problem(w, http.StatusBadRequest, "invalid device public key")
			return
		}
		keyID := fmt.Sprintf("key-%s-%d", lr.Handle, time.Now().UnixNano())
		p.RegisterKey(lr.Handle, keyID, pub)
		resp.KeyID = &keyID
	}
	level.Debug(p.logger).Log("event", "login", "user", resp.UserID)
	p.writeJSON(w, resp)
}

// handleHistory serves GET /api/groups/{gid}/channels/{cid}/messages.
func (p *Provider) handleHistory(w http.ResponseWriter, req *http.Request) {
	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if len(parts) != 6 || parts[3] != "channels" || parts[5] != "messages" {
		p.problem(w, http.StatusNotFound, "no such route")
		return
	}
	if _, err := p.verifier.VerifyRequest(req, nil); err != nil {
		p.problem(w, http.StatusUnauthorized, err.Error())
		return
	}

	p.mu.Lock()
	items := p.history[parts[4]]
	p.mu.Unlock()
	if items == nil {
		items = []message.ChannelMessage{}
	}
	p.writeJSON(w, message.MessagesPage{Items: items})
}

func (p *Provider) handleWebsocket(w http.ResponseWriter, req *http.Request) {
	atomic.AddInt32(&p.handshakes, 1)

	if n := atomic.LoadInt32(&p.reject); n > 0 {
		atomic.AddInt32(&p.reject, -1)
		p.problem(w, http.StatusUnauthorized, "handshake rejected")
		return
	}

	actor, err := p.verifier.VerifyHandshake(req)
	if err != nil {
		level.Warn(p.logger).Log("event", "handshake verification failed", "err", err)
		p.problem(w, http.StatusUnauthorized, err.Error())
		return
	}

	ws, err := p.upgrader.Upgrade(w, req, nil)
	if err != nil {
		level.Warn(p.logger).Log("event", "upgrade failed", "err", err)
		return
	}

	wmu := new(sync.Mutex)
	p.mu.Lock()
	p.sockets[ws] = wmu
	p.mu.Unlock()
	level.Info(p.logger).Log("event", "ws connected", "actor", actor)

	defer func() {
		p.mu.Lock()
		delete(p.sockets, ws)
		p.mu.Unlock()
		ws.Close()
	}()

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		env, err := message.DecodeCommand(data)
		if err != nil {
			level.Warn(p.logger).Log("event", "bad command frame", "err", err)
			continue
		}

		select {
		case p.commands <- ReceivedCommand{Actor: actor, Envelope: env}:
		default:
			level.Warn(p.logger).Log("event", "command buffer full")
		}

		if mc, ok := env.Payload.(message.MessageCreate); ok && p.AutoAck {
			p.acknowledge(ws, wmu, actor, mc)
		}
	}
}

func (p *Provider) acknowledge(ws *websocket.Conn, wmu *sync.Mutex, actor ofscp.Actor, mc message.MessageCreate) {
	id := fmt.Sprintf("msg-%d", atomic.AddInt32(&p.msgSeq, 1))

	ack, err := message.EncodeEvent(message.NewEnvelope[message.Event](message.Ack{Nonce: mc.Nonce, MessageID: id}))
	if err != nil {
		level.Error(p.logger).Log("event", "ack encode", "err", err)
		return
	}
	wmu.Lock()
	err = ws.WriteMessage(websocket.TextMessage, ack)
	wmu.Unlock()
	if err != nil {
		return
	}

	mt := message.TypeMessage
	if mc.MessageType != nil {
		mt = *mc.MessageType
	}
	attachments := mc.Attachments
	if attachments == nil {
		attachments = []message.Attachment{}
	}
	err = p.Broadcast(message.MessageNew{
		ChannelID: mc.ChannelID,
		Message: message.BaseMessage{
			ID:          id,
			Author:      message.UserRef(fmt.Sprintf("ofscp://%s/users/%s", actor.Domain, actor.Handle)),
			Type:        mt,
			Title:       mc.Title,
			Content:     message.Content{Text: mc.Body, Mime: "text/plain"},
			Attachments: attachments,
			Tags:        []string{},
			CreatedAt:   time.Now().UTC(),
			Metadata:    message.Metadata{},
			ParentID:    mc.ParentID,
		},
	})
	if err != nil {
		level.Warn(p.logger).Log("event", "broadcast failed", "err", err)
	}
}
