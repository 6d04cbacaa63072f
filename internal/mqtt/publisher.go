package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected 尚未连上 broker
var ErrNotConnected = errors.New("MQTT未连接")

const publishTimeout = 5 * time.Second

// Publisher 读数上报
type Publisher interface {
	// Publish v 为 string/[]byte 时原样发送，其它 JSON 编码；retained
	Publish(topic string, v interface{}) error
	StateTopic() string
	StatusTopic() string
	IsConnected() bool
	Close() error
}

// New 按配置创建；未启用或未配置服务器时返回空实现
func New(cfg config.MQTTConfig, deviceID string) Publisher {
	if !cfg.Enabled || strings.TrimSpace(cfg.Server) == "" {
		return &noopPublisher{topics: newTopics(cfg.TopicPrefix, deviceID)}
	}
	p := newPahoPublisher(cfg, deviceID, mqtt.NewClient)
	p.start()
	return p
}

type topics struct {
	state  string
	status string
}

func newTopics(prefix, deviceID string) topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "wificlock"
	}
	base := prefix + "/" + strings.TrimSpace(deviceID)
	return topics{state: base + "/state", status: base + "/status"}
}

func encode(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case string:
		return []byte(m), nil
	case []byte:
		return m, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("序列化消息失败: %v", err)
		}
		return b, nil
	}
}

type statusMessage struct {
	Status string `json:"status"`
	Time   int64  `json:"time"`
}

type pahoPublisher struct {
	cfg      config.MQTTConfig
	deviceID string
	topics   topics
	client   mqtt.Client
}

func newPahoPublisher(cfg config.MQTTConfig, deviceID string, newClient func(*mqtt.ClientOptions) mqtt.Client) *pahoPublisher {
	p := &pahoPublisher{
		cfg:      cfg,
		deviceID: strings.TrimSpace(deviceID),
		topics:   newTopics(cfg.TopicPrefix, deviceID),
	}
	p.client = newClient(p.options())
	return p
}

func (p *pahoPublisher) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.cfg.Server, p.cfg.Port))
	opts.SetClientID("wificlock-" + p.deviceID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	offline, _ := json.Marshal(statusMessage{Status: "offline"})
	opts.SetWill(p.topics.status, string(offline), 1, true)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("MQTT连接成功: %s", p.cfg.Server)
		p.publishStatus(c, "online")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT连接丢失: %v", err)
	}
	return opts
}

func (p *pahoPublisher) start() {
	// ConnectRetry 下 token 在连上之前不会完成，不阻塞启动流程
	token := p.client.Connect()
	go func() {
		if token.WaitTimeout(30*time.Second) && token.Error() != nil {
			logger.Warn("MQTT连接失败: %v", token.Error())
		}
	}()
}

func (p *pahoPublisher) publishStatus(c mqtt.Client, status string) {
	b, _ := json.Marshal(statusMessage{Status: status, Time: time.Now().Unix()})
	t := c.Publish(p.topics.status, 1, true, b)
	if t.WaitTimeout(publishTimeout) && t.Error() != nil {
		logger.Warn("MQTT发布状态失败: %v", t.Error())
	}
}

func (p *pahoPublisher) Publish(topic string, v interface{}) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	payload, err := encode(v)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("发布消息超时")
	}
	if token.Error() != nil {
		return fmt.Errorf("发布消息失败: %v", token.Error())
	}
	logger.Debug("MQTT publish %s (%d bytes)", topic, len(payload))
	return nil
}

func (p *pahoPublisher) StateTopic() string  { return p.topics.state }
func (p *pahoPublisher) StatusTopic() string { return p.topics.status }

func (p *pahoPublisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Close 发布 offline 后断开
func (p *pahoPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	if p.client.IsConnected() {
		p.publishStatus(p.client, "offline")
	}
	p.client.Disconnect(250)
	logger.Info("MQTT连接已断开")
	return nil
}

type noopPublisher struct {
	topics topics
}

func (n *noopPublisher) Publish(string, interface{}) error { return nil }
func (n *noopPublisher) StateTopic() string                { return n.topics.state }
func (n *noopPublisher) StatusTopic() string               { return n.topics.status }
func (n *noopPublisher) IsConnected() bool                 { return false }
func (n *noopPublisher) Close() error                      { return nil }
