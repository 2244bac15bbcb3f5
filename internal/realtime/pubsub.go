// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

const (
	pubsubChannelName = "pubsub"

	// OfficeSubjectPrefix is followed by the office id.
	OfficeSubjectPrefix = "checkclock-offices."
	DefaultAdminSubject = "checkclock-admin"

	defaultAdminEvent  = "admin-alert"
	defaultNoticeDelay = 200 * time.Millisecond

	// Message metadata keys, carried as NATS headers.
	metaEvent  = "event"
	metaSender = "sender"
	metaKind   = "kind"

	kindPunch  = "punch"
	kindAlert  = "alert"
	kindNotice = "notice"
)

// sealedBox is the encrypted form of an envelope's data.
type sealedBox struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// PubSubChannel is a Channel over core NATS subjects.
type PubSubChannel struct {
	cfg       config.PubSubConfig
	deviceID  string
	officeKey string
	subject   string
	handlers  Handlers
	policy    FlushPolicy
	key       *[32]byte
	logger    watermill.LoggerAdapter

	punches *Queue[models.PunchRecord]
	alerts  *Queue[models.AdminErrorAlert]

	// lifeMu serialises Initialize, Reload and Close.
	lifeMu sync.Mutex

	mu             sync.Mutex
	broker         *Broker
	pub            message.Publisher
	sub            message.Subscriber
	loopCtx        context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	closed         bool
	state          State
	disconnectedAt time.Time
	lastDown       time.Duration

	connected  atomic.Bool
	subscribed atomic.Bool
}

// NewPubSubChannel creates a pub/sub channel. Nothing connects until Initialize.
func NewPubSubChannel(cfg config.PubSubConfig, office config.OfficeConfig, policy FlushPolicy, h Handlers) (*PubSubChannel, error) {
	var key *[32]byte
	if cfg.EncryptionKey != "" {
		raw, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("realtime.pubsub.encryption_key must be 32 hex encoded bytes")
		}
		key = new([32]byte)
		copy(key[:], raw)
	}
	if cfg.AdminChannel == "" {
		cfg.AdminChannel = DefaultAdminSubject
	}
	if cfg.NoticeDelay <= 0 {
		cfg.NoticeDelay = defaultNoticeDelay
	}
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = defaultClientTimeout
	}

	return &PubSubChannel{
		cfg:       cfg,
		deviceID:  office.DeviceID(),
		officeKey: office.OfficeKey(),
		subject:   OfficeSubjectPrefix + office.OfficeKey(),
		handlers:  h,
		policy:    policy,
		key:       key,
		logger:    watermill.NewSlogLogger(logging.NewSlogLogger()),
		punches:   NewQueue[models.PunchRecord](pubsubChannelName, "punch"),
		alerts:    NewQueue[models.AdminErrorAlert](pubsubChannelName, "alert"),
	}, nil
}

// Name implements Channel.
func (p *PubSubChannel) Name() string { return pubsubChannelName }

// Subject returns the office subject the channel subscribes to.
func (p *PubSubChannel) Subject() string { return p.subject }

// Initialize connects the publisher and subscriber and subscribes to the
// office subject. Connection errors are returned; later disconnects are
// handled by the NATS client's own reconnect.
func (p *PubSubChannel) Initialize(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	return p.start(ctx)
}

// Reload closes the NATS connections and connects again. An embedded
// broker keeps running.
func (p *PubSubChannel) Reload(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.stop()
	logging.Info().Msg("Reloading pub/sub connection")
	return p.start(ctx)
}

// Close disconnects and stops the embedded broker if one was started.
func (p *PubSubChannel) Close() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	p.closed = true
	broker := p.broker
	p.broker = nil
	p.mu.Unlock()

	p.stop()
	if broker != nil {
		broker.Shutdown()
	}
	return nil
}

func (p *PubSubChannel) start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.cancel != nil {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	url, err := p.brokerURL()
	if err != nil {
		return err
	}

	p.setState(StateConnecting)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: p.natsOptions(false),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, p.logger)
	if err != nil {
		p.setState(StateDisconnected)
		recordFailure(pubsubChannelName, "connect", err)
		return fmt.Errorf("create pub/sub publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   p.cfg.ClientTimeout,
		CloseTimeout:     p.cfg.ClientTimeout,
		NatsOptions:      p.natsOptions(true),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, p.logger)
	if err != nil {
		_ = pub.Close()
		p.setState(StateDisconnected)
		recordFailure(pubsubChannelName, "connect", err)
		return fmt.Errorf("create pub/sub subscriber: %w", err)
	}
	p.connected.Store(true)

	loopCtx, cancel := context.WithCancel(context.Background())
	msgs, err := sub.Subscribe(loopCtx, p.subject)
	if err != nil {
		cancel()
		_ = sub.Close()
		_ = pub.Close()
		p.connected.Store(false)
		p.setState(StateDisconnected)
		recordFailure(pubsubChannelName, "subscribe", err)
		return fmt.Errorf("subscribe %s: %w", p.subject, err)
	}
	p.subscribed.Store(true)

	done := make(chan struct{})
	p.mu.Lock()
	p.pub, p.sub = pub, sub
	p.loopCtx, p.cancel, p.done = loopCtx, cancel, done
	p.mu.Unlock()

	go p.consume(msgs, done)

	if p.cfg.EventName == "" {
		logging.Warn().Str("subject", p.subject).Msg("Pub/sub subscribed but no events configured")
	}
	logging.Info().
		Str("subject", p.subject).
		Str("event", p.cfg.EventName).
		Str("device_id", p.deviceID).
		Msg("Pub/sub channel subscribed")

	p.setState(StateConnected)
	go p.flush(loopCtx)
	return nil
}

// brokerURL returns the configured URL, starting the embedded broker first
// when enabled.
func (p *PubSubChannel) brokerURL() (string, error) {
	if !p.cfg.EmbeddedBroker {
		return p.cfg.URL, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broker == nil {
		b, err := StartBroker(p.cfg.BrokerHost, p.cfg.BrokerPort)
		if err != nil {
			return "", err
		}
		p.broker = b
	}
	return p.broker.ClientURL(), nil
}

func (p *PubSubChannel) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	pub, sub := p.pub, p.sub
	p.cancel, p.done, p.loopCtx = nil, nil, nil
	p.pub, p.sub = nil, nil
	p.mu.Unlock()

	p.subscribed.Store(false)
	p.connected.Store(false)

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		if err := sub.Close(); err != nil {
			logging.Warn().Err(err).Msg("Pub/sub subscriber close failed")
		}
	}
	if pub != nil {
		if err := pub.Close(); err != nil {
			logging.Warn().Err(err).Msg("Pub/sub publisher close failed")
		}
	}
	if done != nil {
		<-done
	}
	p.setState(StateDisconnected)
}

// natsOptions builds the connection options. Only the subscriber's
// connection drives state and telemetry.
func (p *PubSubChannel) natsOptions(track bool) []natsgo.Option {
	opts := []natsgo.Option{
		natsgo.Name(p.deviceID),
		natsgo.Timeout(p.cfg.ClientTimeout),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
	}
	if !track {
		return opts
	}
	return append(opts,
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			p.onDisconnect(err)
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			p.onReconnect(nc.ConnectedUrl())
		}),
		natsgo.ClosedHandler(func(_ *natsgo.Conn) {
			p.connected.Store(false)
			p.subscribed.Store(false)
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			op := "async"
			if sub != nil {
				op = "subscription " + sub.Subject
			}
			recordFailure(pubsubChannelName, op, err)
		}),
	)
}

func (p *PubSubChannel) onDisconnect(err error) {
	p.connected.Store(false)

	p.mu.Lock()
	p.disconnectedAt = time.Now()
	p.mu.Unlock()

	if err != nil {
		recordFailure(pubsubChannelName, "disconnect", err)
	}
	p.setState(StateReconnecting)
}

func (p *PubSubChannel) onReconnect(url string) {
	p.connected.Store(true)

	p.mu.Lock()
	var down time.Duration
	if !p.disconnectedAt.IsZero() {
		down = time.Since(p.disconnectedAt)
		p.lastDown = down
		p.disconnectedAt = time.Time{}
	}
	ctx := p.loopCtx
	p.mu.Unlock()

	metrics.RealtimeDisconnectSeconds.WithLabelValues(pubsubChannelName).Observe(down.Seconds())
	logging.Info().
		Str("url", url).
		Dur("disconnected_for", down).
		Msg("Pub/sub connection restored")

	p.setState(StateConnected)
	if ctx != nil {
		go p.flush(ctx)
	}
}

// LastDisconnect returns how long the last disconnect lasted.
func (p *PubSubChannel) LastDisconnect() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDown
}

func (p *PubSubChannel) consume(msgs <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for msg := range msgs {
		p.handleMessage(msg)
		msg.Ack()
	}
}

// handleMessage routes one inbound message. Own messages and other events
// are ignored.
func (p *PubSubChannel) handleMessage(msg *message.Message) {
	sender := msg.Metadata.Get(metaSender)
	if sender == p.deviceID {
		return
	}

	var env models.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Invalid pub/sub envelope")
		return
	}

	event := msg.Metadata.Get(metaEvent)
	if event == "" {
		event = env.Event
	}
	if p.cfg.EventName == "" || event != p.cfg.EventName {
		logging.Debug().Str("event", event).Msg("Ignoring pub/sub event")
		return
	}

	data, err := p.open(env.Data)
	if err != nil {
		recordFailure(pubsubChannelName, "decrypt", err)
		return
	}
	if len(data) == 0 {
		return
	}

	switch msg.Metadata.Get(metaKind) {
	case kindPunch:
		var rec models.PunchRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logging.Warn().Err(err).Msg("Invalid pub/sub punch")
			return
		}
		p.handlers.punch(sender, rec)

	case kindAlert:
		// Alerts go to the admin subject; one here is a publisher mistake.
		logging.Debug().Str("sender", sender).Msg("Ignoring admin alert on office subject")

	default:
		var n models.Notice
		if err := json.Unmarshal(data, &n); err != nil {
			logging.Warn().Err(err).Msg("Invalid pub/sub notice")
			return
		}
		logging.Info().Str("notice_id", string(n.ID)).Str("caption", n.Caption).Msg("Notice received")
		time.AfterFunc(p.cfg.NoticeDelay, func() { p.handlers.notice(n) })
	}
}

// open returns the plain data of an envelope. Data may be a JSON document,
// a JSON string holding one, or a sealed box when a key is configured.
func (p *PubSubChannel) open(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	data := []byte(raw)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		data = []byte(s)
	}
	if p.key == nil || len(data) == 0 {
		return data, nil
	}

	var box sealedBox
	if err := json.Unmarshal(data, &box); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(box.Nonce)
	if err != nil || len(nonceBytes) != 24 {
		return nil, fmt.Errorf("%w: invalid nonce", ErrDecryption)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(box.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext", ErrDecryption)
	}

	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	plain, ok := secretbox.Open(nil, ciphertext, &nonce, p.key)
	if !ok {
		return nil, ErrDecryption
	}
	return plain, nil
}

// seal encrypts data when a key is configured.
func (p *PubSubChannel) seal(data []byte) (json.RawMessage, error) {
	if p.key == nil {
		return data, nil
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	box := sealedBox{
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
		Ciphertext: base64.StdEncoding.EncodeToString(secretbox.Seal(nil, data, &nonce, p.key)),
	}
	return json.Marshal(box)
}

func (p *PubSubChannel) publish(subject, event, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sealed, err := p.seal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(models.Envelope{Event: event, Data: sealed})
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaEvent, event)
	msg.Metadata.Set(metaSender, p.deviceID)
	msg.Metadata.Set(metaKind, kind)

	p.mu.Lock()
	pub := p.pub
	p.mu.Unlock()
	if pub == nil {
		return errConnClosed
	}
	return pub.Publish(subject, msg)
}

// SendPunch implements Channel.
func (p *PubSubChannel) SendPunch(ctx context.Context, punch *models.PunchEvent) error {
	if punch == nil {
		return errNilPunch
	}
	rec := punch.Record()

	if !p.IsConnected() {
		p.punches.Push(rec)
		logging.Warn().
			Int("employee_id", rec.IDEmployee).
			Int("pending", p.punches.Len()).
			Msg("Pub/sub unavailable, punch queued")
		return nil
	}
	if p.punches.Len() > 0 {
		// Older punches are still queued; keep them ahead of this one.
		p.punches.Push(rec)
		Flush(ctx, p.punches, p.IsConnected, p.sendPunchNow, p.policy)
		return nil
	}
	if err := p.sendPunchNow(ctx, rec); err != nil {
		recordFailure(pubsubChannelName, "send_punch", err)
		p.punches.Push(rec)
	}
	return nil
}

// SendAdminAlert implements Channel.
func (p *PubSubChannel) SendAdminAlert(ctx context.Context, alert models.AdminErrorAlert) error {
	if !p.IsConnected() {
		p.alerts.Push(alert)
		logging.Warn().Str("title", alert.Title).Msg("Pub/sub unavailable, admin alert queued")
		return ErrQueued
	}
	if p.alerts.Len() > 0 {
		p.alerts.Push(alert)
		return drained(Flush(ctx, p.alerts, p.IsConnected, p.sendAlertNow, p.policy))
	}
	if err := p.sendAlertNow(ctx, alert); err != nil {
		recordFailure(pubsubChannelName, "send_alert", err)
		p.alerts.Push(alert)
		return ErrQueued
	}
	return nil
}

func (p *PubSubChannel) sendPunchNow(_ context.Context, rec models.PunchRecord) error {
	return p.publish(p.subject, p.cfg.EventName, kindPunch, rec)
}

func (p *PubSubChannel) sendAlertNow(_ context.Context, alert models.AdminErrorAlert) error {
	event := p.cfg.EventName
	if event == "" {
		event = defaultAdminEvent
	}
	return p.publish(p.cfg.AdminChannel, event, kindAlert, alert)
}

// PublishNotice publishes a notice to the office subject.
func (p *PubSubChannel) PublishNotice(n models.Notice) error {
	return p.publish(p.subject, p.cfg.EventName, kindNotice, n)
}

func (p *PubSubChannel) flush(ctx context.Context) {
	Flush(ctx, p.punches, p.IsConnected, p.sendPunchNow, p.policy)
	Flush(ctx, p.alerts, p.IsConnected, p.sendAlertNow, p.policy)
}

// IsConnected reports whether the connection is up and the office subject
// is subscribed.
func (p *PubSubChannel) IsConnected() bool {
	return p.connected.Load() && p.subscribed.Load()
}

// State implements Channel.
func (p *PubSubChannel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pending returns the number of queued punches and alerts.
func (p *PubSubChannel) Pending() (punches, alerts int) {
	return p.punches.Len(), p.alerts.Len()
}

func (p *PubSubChannel) setState(s State) {
	p.mu.Lock()
	if p.state == s {
		p.mu.Unlock()
		return
	}
	p.state = s
	p.mu.Unlock()

	metrics.SetRealtimeConnected(pubsubChannelName, s == StateConnected)
	logging.Debug().Str("state", s.String()).Msg("Pub/sub state changed")
	p.handlers.stateChange(s)
}
