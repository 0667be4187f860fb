package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/mqtt"
)

type publishedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeConn struct {
	mu        sync.Mutex
	topics    []string
	handler   mqtt.MessageHandler
	published []publishedMsg
	subErr    error
	pubErr    error
	pubDelay  time.Duration
	inflight  int
	maxFlight int

	lost     chan struct{}
	lostOnce sync.Once
	lostErr  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{lost: make(chan struct{})}
}

func (c *fakeConn) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return c.subErr
	}
	c.topics = append(c.topics, topic)
	c.handler = handler
	return nil
}

func (c *fakeConn) Publish(topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	c.inflight++
	c.maxFlight = max(c.maxFlight, c.inflight)
	delay := c.pubDelay
	c.mu.Unlock()

	time.Sleep(delay)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.pubErr != nil {
		return c.pubErr
	}
	c.published = append(c.published, publishedMsg{topic, payload, qos, retained})
	return nil
}

func (c *fakeConn) Lost() <-chan struct{} { return c.lost }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lostErr
}

func (c *fakeConn) Close() error {
	c.drop(nil)
	return nil
}

func (c *fakeConn) drop(err error) {
	c.lostOnce.Do(func() {
		c.mu.Lock()
		if err == nil {
			err = mqtt.ErrConnectionLost
		}
		c.lostErr = err
		c.mu.Unlock()
		close(c.lost)
	})
}

func (c *fakeConn) deliver(topic string, payload string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		_ = h(topic, []byte(payload))
	}
}

func (c *fakeConn) subscribedTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

func (c *fakeConn) maxConcurrent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxFlight
}

func (c *fakeConn) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

// fakeDialer hands out fakeConns. The first failFirst dials fail, as do
// the dials whose zero-based index is in failAt; when gate is set each
// dial waits for a value on it.
type fakeDialer struct {
	mu        sync.Mutex
	failFirst int
	failAt    map[int]bool
	gate      chan struct{}
	conns     []*fakeConn
	params    []mqtt.Params
	newConn   func() *fakeConn
}

func (d *fakeDialer) dial(ctx context.Context, p mqtt.Params) (Conn, error) {
	d.mu.Lock()
	d.params = append(d.params, p)
	gate := d.gate
	fail := d.failFirst > 0 || d.failAt[len(d.params)-1]
	if d.failFirst > 0 {
		d.failFirst--
	}
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("dial refused")
	}

	c := newFakeConn()
	if d.newConn != nil {
		c = d.newConn()
	}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.params)
}

func (d *fakeDialer) param(i int) mqtt.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params[i]
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

type fakeSource struct {
	mu      sync.Mutex
	devices map[string]device.Device
	profile map[string]any
}

func (f *fakeSource) Device(id string) (device.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	return d, ok
}

func (f *fakeSource) Profile() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

func (f *fakeSource) setProfile(p map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

type recordingSink struct {
	mu      sync.Mutex
	updates []device.Telemetry
}

func (r *recordingSink) put(_ string, t device.Telemetry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, t)
}

func (r *recordingSink) seen(match func(device.Telemetry) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.updates {
		if match(t) {
			return true
		}
	}
	return false
}

func (r *recordingSink) last() (device.Telemetry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return device.Telemetry{}, false
	}
	return r.updates[len(r.updates)-1], true
}

func testDevice() device.Device {
	return device.Device{
		ID:         "HUB1",
		ProductID:  "100",
		MPID:       "302",
		MQTTDomain: "mq.example.test",
		MQTTPort:   8883,
		MQTTToken:  "secret",
	}
}

func testProfile() map[string]any {
	return map[string]any{"userDB": "db7", "userId": float64(42)}
}

func testOptions() Options {
	return Options{
		QoS:            1,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		PublishWait:    300 * time.Millisecond,
	}
}

type harness struct {
	session *Session
	dialer  *fakeDialer
	source  *fakeSource
	sink    *recordingSink
}

func newHarness(t *testing.T, dialer *fakeDialer) *harness {
	t.Helper()
	if dialer == nil {
		dialer = &fakeDialer{}
	}
	h := &harness{
		dialer: dialer,
		source: &fakeSource{
			devices: map[string]device.Device{"HUB1": testDevice()},
			profile: testProfile(),
		},
		sink: &recordingSink{},
	}
	h.session = New("HUB1", "and_HUB1_00000001", dialer.dial, h.source, h.sink.put, testOptions())
	t.Cleanup(func() {
		h.session.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.session.Wait(ctx)
	})
	return h
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
