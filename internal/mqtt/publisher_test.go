package mqtt

import (
	"errors"
	"testing"
	"time"

	"wifi-clock/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mqtt.Client
	opts         *mqtt.ClientOptions
	connected    bool
	publishErr   error
	published    []published
	disconnected bool
}

func (f *fakeClient) IsConnected() bool { return f.connected }
func (f *fakeClient) Connect() mqtt.Token {
	return &fakeToken{}
}
func (f *fakeClient) Disconnect(uint) { f.disconnected = true; f.connected = false }
func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.published = append(f.published, published{topic: topic, retained: retained, payload: string(payload.([]byte))})
	return &fakeToken{err: f.publishErr}
}

func newFake(t *testing.T, cfg config.MQTTConfig) (*pahoPublisher, *fakeClient) {
	t.Helper()
	fc := &fakeClient{}
	p := newPahoPublisher(cfg, "dev-1", func(o *mqtt.ClientOptions) mqtt.Client {
		fc.opts = o
		return fc
	})
	return p, fc
}

func testCfg() config.MQTTConfig {
	return config.MQTTConfig{Enabled: true, Server: "broker.local", Port: 1883, Username: "u", Password: "p", TopicPrefix: "home/clock/"}
}

func TestOptions(t *testing.T) {
	_, fc := newFake(t, testCfg())
	o := fc.opts
	require.NotNil(t, o)

	require.Len(t, o.Servers, 1)
	assert.Equal(t, "tcp://broker.local:1883", o.Servers[0].String())
	assert.Equal(t, "wificlock-dev-1", o.ClientID)
	assert.Equal(t, "u", o.Username)
	assert.True(t, o.AutoReconnect)
	assert.True(t, o.WillEnabled)
	assert.True(t, o.WillRetained)
	assert.Equal(t, "home/clock/dev-1/status", o.WillTopic)
	assert.JSONEq(t, `{"status":"offline","time":0}`, string(o.WillPayload))
}

func TestPublish(t *testing.T) {
	p, fc := newFake(t, testCfg())
	assert.Equal(t, "home/clock/dev-1/state", p.StateTopic())

	assert.ErrorIs(t, p.Publish(p.StateTopic(), map[string]int{"a": 1}), ErrNotConnected)

	fc.connected = true
	require.NoError(t, p.Publish(p.StateTopic(), map[string]int{"a": 1}))
	require.NoError(t, p.Publish("raw", "hello"))
	require.Len(t, fc.published, 2)
	assert.Equal(t, published{topic: "home/clock/dev-1/state", retained: true, payload: `{"a":1}`}, fc.published[0])
	assert.Equal(t, "hello", fc.published[1].payload)

	fc.publishErr = errors.New("boom")
	assert.Error(t, p.Publish("raw", []byte("x")))

	_, err := encode(func() {})
	assert.Error(t, err)
}

func TestOnConnectPublishesOnline(t *testing.T) {
	_, fc := newFake(t, testCfg())
	fc.connected = true
	fc.opts.OnConnect(fc)

	require.Len(t, fc.published, 1)
	assert.Equal(t, "home/clock/dev-1/status", fc.published[0].topic)
	assert.Contains(t, fc.published[0].payload, `"status":"online"`)
}

func TestClose(t *testing.T) {
	p, fc := newFake(t, testCfg())
	fc.connected = true
	require.NoError(t, p.Close())
	assert.True(t, fc.disconnected)
	require.Len(t, fc.published, 1)
	assert.Contains(t, fc.published[0].payload, `"offline"`)
}

func TestDisabledIsNoop(t *testing.T) {
	p := New(config.MQTTConfig{Enabled: false, Server: "x"}, "dev-2")
	assert.NoError(t, p.Publish("t", 1))
	assert.False(t, p.IsConnected())
	assert.Equal(t, "wificlock/dev-2/state", p.StateTopic())
	assert.NoError(t, p.Close())

	p = New(config.MQTTConfig{Enabled: true}, "dev-2")
	assert.IsType(t, &noopPublisher{}, p)
}
