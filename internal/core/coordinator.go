package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatspace/chatspace-server/internal/history"
	"github.com/chatspace/chatspace-server/internal/identity"
	"github.com/chatspace/chatspace-server/internal/store"
)

// Admission is the external channel-admission collaborator: it decides
// whether a client may enter a channel and owns the password gate.
type Admission interface {
	Authenticate(ctx context.Context, room, password string) error
	MakePublic(ctx context.Context, room string) error
	MakePrivate(ctx context.Context, room, password string) error
}

// PreviewQueue accepts chat bodies for asynchronous link-preview
// rendering, fully decoupled from the send path.
type PreviewQueue interface {
	Submit(room, body string)
}

// Options tune coordinator behavior.
type Options struct {
	// ServerNick is the nickname attached to server-sent notices.
	ServerNick string
	// StoreTimeout bounds every store round-trip made by a handler.
	StoreTimeout time.Duration
}

const (
	defaultServerNick   = "server"
	defaultStoreTimeout = 5 * time.Second
)

// Coordinator receives inbound client events, drives the registry,
// identity service and sequencer in the right order, and emits the
// resulting broadcasts. Every inbound event is handled on its own
// goroutine; correctness rests on the registry lock and the store's
// atomic ID reservation, nothing else.
type Coordinator struct {
	registry  *Registry
	presence  *Presence
	router    *Router
	sequencer *history.Sequencer
	identity  *identity.Service
	admission Admission
	meta      store.ChannelMetaStore
	previews  PreviewQueue

	log          *zerolog.Logger
	serverNick   string
	storeTimeout time.Duration
}

// NewCoordinator wires the coordinator. previews may be nil to disable
// link previews.
func NewCoordinator(
	registry *Registry,
	sequencer *history.Sequencer,
	identitySvc *identity.Service,
	admission Admission,
	meta store.ChannelMetaStore,
	previews PreviewQueue,
	logger *zerolog.Logger,
	opts Options,
) *Coordinator {
	if opts.ServerNick == "" {
		opts.ServerNick = defaultServerNick
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &Coordinator{
		registry:     registry,
		presence:     NewPresence(registry),
		router:       NewRouter(registry),
		sequencer:    sequencer,
		identity:     identitySvc,
		admission:    admission,
		meta:         meta,
		previews:     previews,
		log:          logger,
		serverNick:   opts.ServerNick,
		storeTimeout: opts.StoreTimeout,
	}
}

// Registry exposes the room state, mainly for the transport and tests.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Dispatch routes one validated inbound event to its handler. Panics
// are contained here so a bad handler never takes down the process.
func (c *Coordinator) Dispatch(ctx context.Context, room string, client *Client, in Inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("room", room).Str("cid", client.CID).Msg("handler panic")
		}
	}()

	switch in.Kind {
	case InboundJoinPrivate:
		c.Subscribe(ctx, room, client, in.Password)
	case InboundMakePublic:
		c.handleMakePublic(ctx, room, client)
	case InboundMakePrivate:
		c.handleMakePrivate(ctx, room, client, in.Password)
	case InboundNickname:
		c.handleNickname(ctx, room, client, in.Nickname)
	case InboundTopic:
		c.handleTopic(ctx, room, client, in.Topic)
	case InboundHistoryRequest:
		c.handleHistoryRequest(ctx, room, client, in.RequestRange)
	case InboundIdle:
		c.handleIdle(room, client)
	case InboundUnidle:
		c.handleUnidle(room, client)
	case InboundPrivateMessage:
		c.router.Route(client, room, in.DirectedAt, in.Body)
	case InboundChat:
		c.handleChat(ctx, room, client, in.Body)
	case InboundIdentify:
		c.handleIdentify(ctx, room, client, in.Password)
	case InboundRegisterNick:
		c.handleRegisterNick(ctx, room, client, in.Password)
	case InboundUnsubscribe:
		c.Unsubscribe(room, client)
	default:
		client.Send(&Event{Kind: EventChat, Room: room, Message: c.systemMessage(room, "Unknown event.")})
	}
}

// Subscribe runs the admission gate and, on success, the join ceremony.
func (c *Coordinator) Subscribe(ctx context.Context, room string, client *Client, password string) {
	sctx, cancel := c.storeCtx(ctx)
	err := c.admission.Authenticate(sctx, room, password)
	cancel()

	switch {
	case errors.Is(err, ErrWrongChannelPassword):
		// Everyone currently in the room learns that someone failed to join.
		c.registry.Broadcast(room, &Event{Kind: EventChat, Room: room,
			Message: c.identityNotice(room, client.Nickname()+" just failed to join the room.")})
		client.Send(&Event{Kind: EventChat, Room: room, Message: c.systemMessage(room, "Incorrect password.")})
		client.Send(c.errorEvent(room, ErrCodeAuthentication, "incorrect channel password"))
		return
	case errors.Is(err, ErrChannelPasswordRequired):
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.systemMessage(room, "This channel is private.  Please type /password [channel password] to join")})
		client.Send(&Event{Kind: EventPrivateRequired, Room: room})
		return
	case err != nil:
		c.storeFailure(room, client, "join the channel", err)
		return
	}

	c.subscribeSuccess(ctx, room, client)
}

func (c *Coordinator) subscribeSuccess(ctx context.Context, room string, client *Client) {
	// A repeated subscribe re-syncs the client but must not replay the
	// room-visible parts of the ceremony.
	rejoining := !c.registry.Join(room, client)

	// Tell the newly connected client the ID of the latest logged message.
	sctx, cancel := c.storeCtx(ctx)
	watermark, err := c.sequencer.Watermark(sctx, room)
	cancel()
	if err != nil {
		c.storeFailure(room, client, "fetch the latest message id", err)
	} else {
		client.Send(&Event{Kind: EventWatermark, Room: room, ID: watermark})
	}

	// And the topic, if one is set.
	sctx, cancel = c.storeCtx(ctx)
	topic, err := c.meta.GetTopic(sctx, room)
	cancel()
	if err == nil {
		c.registry.SetTopic(room, topic)
		client.Send(&Event{Kind: EventTopic, Room: room, Message: c.systemMessage(room, topic)})
	} else if !errors.Is(err, store.ErrNotFound) {
		c.log.Warn().Err(err).Str("room", room).Msg("read topic")
	}

	// Tell everyone about the new client in the room.
	if !rejoining {
		c.registry.Broadcast(room, &Event{Kind: EventChat, Room: room,
			Message: c.joinNotice(room, client)})
	}

	// Let them know their cid, then welcome them in.
	client.Send(&Event{Kind: EventOwnCID, Room: room, CID: client.CID})
	client.Send(&Event{Kind: EventChat, Room: room,
		Message: c.systemMessage(room, "Talking in channel '"+room+"'")})

	if !rejoining {
		c.presence.Publish(room)
	}
}

// Unsubscribe removes the client from the room and announces it. Called
// for explicit unsubscribes and transport-level disconnects alike.
func (c *Coordinator) Unsubscribe(room string, client *Client) {
	if !c.registry.Leave(room, client) {
		return
	}
	c.registry.Broadcast(room, &Event{Kind: EventChat, Room: room,
		Message: c.partNotice(room, client)})
	c.presence.Publish(room)
}

func (c *Coordinator) handleMakePublic(ctx context.Context, room string, client *Client) {
	sctx, cancel := c.storeCtx(ctx)
	err := c.admission.MakePublic(sctx, room)
	cancel()
	if err != nil {
		c.storeFailure(room, client, "make the channel public", err)
		return
	}
	client.Send(&Event{Kind: EventChat, Room: room,
		Message: c.systemMessage(room, "This channel is now public.")})
}

func (c *Coordinator) handleMakePrivate(ctx context.Context, room string, client *Client, password string) {
	if password == "" {
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.systemMessage(room, "You must supply a password to make this channel private.")})
		return
	}
	sctx, cancel := c.storeCtx(ctx)
	err := c.admission.MakePrivate(sctx, room, password)
	cancel()
	if err != nil {
		c.storeFailure(room, client, "make the channel private", err)
		return
	}
	client.Send(&Event{Kind: EventChat, Room: room,
		Message: c.systemMessage(room, "This channel is now private.  Please remember your password.")})
}

func (c *Coordinator) handleNickname(ctx context.Context, room string, client *Client, requested string) {
	newName := strings.TrimSpace(requested)
	if newName == "" {
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.systemMessage(room, "You may not use the empty string as a nickname.")})
		client.Send(c.errorEvent(room, ErrCodeValidation, "nickname must not be empty"))
		return
	}

	prevName := client.Nickname()
	client.SetNickname(newName) // resets identified

	c.registry.BroadcastExcept(room, client, &Event{Kind: EventChat, Room: room,
		Message: c.identityNotice(room, prevName+" is now known as "+newName)})
	client.Send(&Event{Kind: EventChat, Room: room,
		Message: c.identityNotice(room, "You are now known as "+newName)})
	client.Send(&Event{Kind: EventAck, Room: room, Ack: "nickname"})

	c.presence.Publish(room)

	// If someone holds a registration for this name, remind the client
	// to prove ownership.
	sctx, cancel := c.storeCtx(ctx)
	registered, err := c.identity.IsRegistered(sctx, room, newName)
	cancel()
	if err != nil {
		c.log.Warn().Err(err).Str("room", room).Msg("check nickname registration")
		return
	}
	if registered {
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.identityNotice(room, "This nickname is registered.  Please /identify with its password.")})
	}
}

func (c *Coordinator) handleTopic(ctx context.Context, room string, client *Client, topic string) {
	sctx, cancel := c.storeCtx(ctx)
	err := c.meta.SetTopic(sctx, room, topic)
	cancel()
	if err != nil {
		c.storeFailure(room, client, "set the topic", err)
		return
	}

	c.registry.SetTopic(room, topic)
	c.registry.Broadcast(room, &Event{Kind: EventTopic, Room: room,
		Message: c.systemMessage(room, topic)})
}

func (c *Coordinator) handleHistoryRequest(ctx context.Context, room string, client *Client, ids []int64) {
	if len(ids) == 0 {
		return
	}

	sctx, cancel := c.storeCtx(ctx)
	blobs, err := c.sequencer.FetchRange(sctx, room, ids)
	cancel()
	if err != nil {
		c.storeFailure(room, client, "fetch history", err)
		return
	}

	for _, blob := range blobs {
		var msg Message
		if err := json.Unmarshal(blob, &msg); err != nil {
			c.log.Warn().Err(err).Str("room", room).Msg("corrupt log entry skipped")
			continue
		}
		client.Send(&Event{Kind: EventChat, Room: room, Message: &msg})
	}
}

func (c *Coordinator) handleIdle(room string, client *Client) {
	client.MarkIdle(time.Now())
	c.registry.Broadcast(room, &Event{Kind: EventIdle, Room: room, CID: client.CID})
	c.presence.Publish(room)
}

func (c *Coordinator) handleUnidle(room string, client *Client) {
	client.MarkUnidle()
	c.registry.Broadcast(room, &Event{Kind: EventUnidle, Room: room, CID: client.CID})
	c.presence.Publish(room)
}

func (c *Coordinator) handleChat(ctx context.Context, room string, client *Client, body string) {
	if body == "" {
		return
	}

	msg := &Message{
		Room:      room,
		CID:       client.CID,
		Nickname:  client.Nickname(),
		Color:     client.Color(),
		Body:      body,
		Timestamp: nowMillis(),
	}

	sctx, cancel := c.storeCtx(ctx)
	id, err := c.sequencer.Assign(sctx, room, func(id int64) ([]byte, error) {
		msg.ID = id
		return json.Marshal(msg)
	})
	cancel()
	if err != nil {
		c.storeFailure(room, client, "send the message", err)
		return
	}
	msg.ID = id

	c.registry.BroadcastExcept(room, client, &Event{Kind: EventChat, Room: room, Message: msg})
	client.Send(&Event{Kind: EventChat, Room: room, Message: msg, You: true})

	if c.previews != nil {
		c.previews.Submit(room, body)
	}
}

func (c *Coordinator) handleIdentify(ctx context.Context, room string, client *Client, password string) {
	nick := client.Nickname()

	sctx, cancel := c.storeCtx(ctx)
	err := c.identity.Verify(sctx, room, nick, password)
	cancel()

	switch {
	case errors.Is(err, identity.ErrUnknownNickname):
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.identityNotice(room, "There's no registration on file for "+nick)})
		client.Send(c.errorEvent(room, ErrCodeUnknownNickname, "no registration on file for "+nick))
	case errors.Is(err, identity.ErrWrongPassword):
		client.SetIdentified(false)
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.identityNotice(room, "Wrong password for "+nick)})
		client.Send(c.errorEvent(room, ErrCodeAuthentication, "wrong password for "+nick))
		c.registry.BroadcastExcept(room, client, &Event{Kind: EventChat, Room: room,
			Message: c.identityNotice(room, nick+" just failed to identify himself")})
		c.presence.Publish(room)
	case err != nil:
		c.storeFailure(room, client, "identify yourself", err)
	default:
		client.SetIdentified(true)
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.identityNotice(room, "You are now identified for "+nick)})
		c.presence.Publish(room)
	}
}

func (c *Coordinator) handleRegisterNick(ctx context.Context, room string, client *Client, password string) {
	nick := client.Nickname()

	sctx, cancel := c.storeCtx(ctx)
	err := c.identity.Register(sctx, room, nick, password)
	cancel()

	switch {
	case errors.Is(err, identity.ErrNicknameTaken):
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.systemMessage(room, "That nickname is already registered by somebody.")})
		client.Send(c.errorEvent(room, ErrCodeNicknameTaken, nick+" is already registered"))
	case err != nil:
		c.storeFailure(room, client, "register your nickname", err)
	default:
		client.SetIdentified(true)
		client.Send(&Event{Kind: EventChat, Room: room,
			Message: c.systemMessage(room, "You have registered your nickname.  Please remember your password.")})
		c.presence.Publish(room)
	}
}

// SystemNotice broadcasts a server-sent notice to the room. Used by the
// link-preview pool to report results back into the channel.
func (c *Coordinator) SystemNotice(room, body string) {
	c.registry.Broadcast(room, &Event{Kind: EventChat, Room: room,
		Message: c.systemMessage(room, body)})
}

// storeCtx bounds a store round-trip by the store timeout alone. The
// caller's context is detached first: a disconnect must not abort an
// operation that was already accepted.
func (c *Coordinator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.storeTimeout)
}

// storeFailure surfaces a store problem as a generic notice to the
// requester. The process never crashes on store errors; they are logged
// and the client is told the action failed.
func (c *Coordinator) storeFailure(room string, client *Client, action string, err error) {
	c.log.Error().Err(err).Str("room", room).Str("cid", client.CID).Msg("store operation failed")
	client.Send(&Event{Kind: EventChat, Room: room,
		Message: c.systemMessage(room, "Something went wrong trying to "+action+".  Please try again.")})
	client.Send(c.errorEvent(room, ErrCodeStore, "could not "+action))
}

func (c *Coordinator) errorEvent(room, code, msg string) *Event {
	return &Event{Kind: EventError, Room: room, Err: &CoreError{Code: code, Message: msg}}
}

func (c *Coordinator) systemMessage(room, body string) *Message {
	return &Message{
		Room:      room,
		Nickname:  c.serverNick,
		Body:      body,
		Type:      MessageTypeSystem,
		Timestamp: nowMillis(),
	}
}

func (c *Coordinator) identityNotice(room, body string) *Message {
	msg := c.systemMessage(room, body)
	msg.Type = MessageTypeIdentity
	return msg
}

func (c *Coordinator) joinNotice(room string, client *Client) *Message {
	return c.systemMessage(room, client.Nickname()+" has joined the chat.")
}

func (c *Coordinator) partNotice(room string, client *Client) *Message {
	return c.systemMessage(room, client.Nickname()+" has left the chat.")
}
