// Package mqtt publishes telemetry to an MQTT broker.
package mqtt

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// TelemetrySuffix is appended to the robot ID to form the telemetry topic.
const TelemetrySuffix = "/telemetry"

// ErrTimeout indicates the broker did not acknowledge in time.
var ErrTimeout = errors.New("mqtt timeout")

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// Queue is an MQTT client scoped by a topic prefix.
type Queue struct {
	Client      paho.Client
	TopicPrefix string

	lock sync.Mutex
	subs map[string]Handler
}

// TelemetryTopic is the topic a robot publishes snapshots to.
func TelemetryTopic(robotID string) string {
	return robotID + TelemetrySuffix
}

// ClientOptionsFromURL parses mqtt://[user:pass@]host:port/prefix?client-id=id.
// The URL path becomes the topic prefix.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	opts := paho.NewClientOptions().
		AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if id := u.Query().Get("client-id"); id != "" {
		opts.SetClientID(id)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return opts, prefix, nil
}

// NewQueue creates a Queue. Subscriptions are restored on reconnect.
func NewQueue(opts *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	opts.SetOnConnectHandler(q.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt connection lost: %v", err)
	})
	q.Client = paho.NewClient(opts)
	return q
}

// NewQueueFromURL creates a Queue from a broker URL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewQueue(opts, prefix), nil
}

// Connect connects and waits up to timeout.
func (q *Queue) Connect(timeout time.Duration) error {
	return wait(q.Client.Connect(), timeout)
}

// Close implements io.Closer.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Pub publishes payload to topic under the prefix.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.Client.Publish(q.TopicPrefix+topic, 0, false, payload)
}

// Sub subscribes to topic under the prefix. Wildcards are allowed and
// the handler receives the topic with the prefix stripped.
func (q *Queue) Sub(topic string, handler Handler) paho.Token {
	q.lock.Lock()
	if q.subs == nil {
		q.subs = make(map[string]Handler)
	}
	q.subs[topic] = handler
	q.lock.Unlock()
	glog.V(2).Infof("SUB %q", q.TopicPrefix+topic)
	return q.Client.Subscribe(q.TopicPrefix+topic, 0, q.callback(handler))
}

func (q *Queue) callback(handler Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		handler(strings.TrimPrefix(msg.Topic(), q.TopicPrefix), msg.Payload())
	}
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("mqtt connected")
	q.lock.Lock()
	defer q.lock.Unlock()
	for topic, handler := range q.subs {
		q.Client.Subscribe(q.TopicPrefix+topic, 0, q.callback(handler))
	}
}

func wait(token paho.Token, timeout time.Duration) error {
	if timeout <= 0 {
		token.Wait()
		return token.Error()
	}
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}
