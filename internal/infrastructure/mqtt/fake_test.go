package mqtt

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

// fakePaho records calls made through the paho client interface.
type fakePaho struct {
	mu           sync.Mutex
	opts         *pahomqtt.ClientOptions
	connectErr   error
	connectToken *fakeToken
	connected    bool
	published    []fakePublish
	handlers     map[string]pahomqtt.MessageHandler
	disconnects  int
}

type fakePublish struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }
func (f *fakePaho) Connect() pahomqtt.Token {
	if f.connectToken != nil {
		return f.connectToken
	}
	f.mu.Lock()
	f.connected = f.connectErr == nil
	f.mu.Unlock()
	return doneToken(f.connectErr)
}
func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
}
func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := payload.([]byte)
	f.published = append(f.published, fakePublish{topic, qos, retained, b})
	return doneToken(nil)
}
func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]pahomqtt.MessageHandler)
	}
	f.handlers[topic] = cb
	return doneToken(nil)
}
func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken(errors.New("not supported"))
}
func (f *fakePaho) Unsubscribe(...string) pahomqtt.Token { return doneToken(nil) }
func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}
func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader { return pahomqtt.ClientOptionsReader{} }

// deliver invokes the handler registered for sub as if a message arrived on topic.
func (f *fakePaho) deliver(sub, topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[sub]
	f.mu.Unlock()
	h(f, &fakeMessage{topic: topic, payload: payload})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeDialer returns a Dialer whose clients are backed by f.
func fakeDialer(f *fakePaho) *Dialer {
	d := &Dialer{newClient: func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		f.opts = opts
		return f
	}}
	return d
}

// recordingLogger captures log calls.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
