package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/saviobatista/rid-tracker/internal/types"
)

const (
	StreamName = "RID"

	SubjectAdvertisement = "rid.adv"
	SubjectSensorStatus  = "rid.sensor"
)

// Client represents a NATS client
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *log.Logger
}

// New creates a new NATS client and makes sure the RID stream exists.
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url, nats.Name("rid-tracker"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Advertisements are only useful while fresh.
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectAdvertisement, SubjectSensorStatus},
		Storage:  nats.FileStorage,
		MaxAge:   time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn:   nc,
		js:     js,
		logger: log.Default().WithPrefix("nats"),
	}, nil
}

// PublishAdvertisement publishes a captured beacon.
func (c *Client) PublishAdvertisement(adv *types.Advertisement) error {
	return c.publish(SubjectAdvertisement, adv)
}

// PublishSensorStatus publishes a sensor heartbeat.
func (c *Client) PublishSensorStatus(status *types.SensorStatus) error {
	return c.publish(SubjectSensorStatus, status)
}

// SubscribeAdvertisements delivers advertisements published from now on.
func (c *Client) SubscribeAdvertisements(handler func(*types.Advertisement)) error {
	return c.subscribe(SubjectAdvertisement, func(data []byte) error {
		adv, err := DecodeAdvertisement(data)
		if err != nil {
			return err
		}
		handler(adv)
		return nil
	})
}

// SubscribeSensorStatus delivers sensor heartbeats published from now on.
func (c *Client) SubscribeSensorStatus(handler func(*types.SensorStatus)) error {
	return c.subscribe(SubjectSensorStatus, func(data []byte) error {
		status, err := DecodeSensorStatus(data)
		if err != nil {
			return err
		}
		handler(status)
		return nil
	})
}

func (c *Client) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := c.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (c *Client) subscribe(subject string, handle func([]byte) error) error {
	_, err := c.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handle(msg.Data); err != nil {
			c.logger.Warn("dropping message", "subject", subject, "err", err)
		}
	}, nats.DeliverNew())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return nil
}

// DecodeAdvertisement parses an advertisement published on SubjectAdvertisement.
func DecodeAdvertisement(data []byte) (*types.Advertisement, error) {
	var adv types.Advertisement
	if err := json.Unmarshal(data, &adv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal advertisement: %w", err)
	}
	if adv.SensorID == "" {
		return nil, fmt.Errorf("advertisement without sensor id")
	}
	return &adv, nil
}

// DecodeSensorStatus parses a heartbeat published on SubjectSensorStatus.
func DecodeSensorStatus(data []byte) (*types.SensorStatus, error) {
	var status types.SensorStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sensor status: %w", err)
	}
	if status.SensorID == "" {
		return nil, fmt.Errorf("sensor status without sensor id")
	}
	return &status, nil
}

// Close drains subscriptions and closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
	}
}
