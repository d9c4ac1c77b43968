package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/solarforecast-go/config"
	"github.com/angas/solarforecast-go/logging"
	"github.com/angas/solarforecast-go/pipeline"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout = 10 * time.Second
	qosAtLeastOnce = 1
)

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends a retained JSON summary of every new report to an MQTT
// topic, so dashboards and home automation get the latest forecast as soon
// as they subscribe.
type Publisher struct {
	logger  *slog.Logger
	client  client
	topic   string
	windows []int
	queue   chan []byte
}

func New(cnfg config.AppConfigMqtt, windows []int) *Publisher {
	logger := slog.Default().With("module", "mqtt")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cnfg.Host, cnfg.Port))
	opts.SetClientID("solarforecast")
	opts.SetUsername(cnfg.Username)
	opts.SetPassword(cnfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqtt.CRITICAL = logging.NewPrintLogger(logger, slog.LevelError)
	mqtt.ERROR = logging.NewPrintLogger(logger, slog.LevelError)
	mqtt.WARN = logging.NewPrintLogger(logger, slog.LevelWarn)

	return newPublisher(logger, mqtt.NewClient(opts), cnfg.GetTopic(), windows)
}

func newPublisher(logger *slog.Logger, c client, topic string, windows []int) *Publisher {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	return &Publisher{
		logger:  logger,
		client:  c,
		topic:   topic,
		windows: windows,
		queue:   make(chan []byte, 1),
	}
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	token := p.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// With connect retry enabled the client keeps trying in the background.
		p.logger.Warn("MQTT connect is taking long, continuing in the background")
		return nil
	}
	return token.Error()
}

func (p *Publisher) Disconnect() {
	p.logger.Info("disconnecting MQTT client")
	p.client.Disconnect(250)
}

// Notify queues the summary of report. Only the newest summary is kept when
// the broker is slower than the pipeline.
func (p *Publisher) Notify(report *pipeline.Report) {
	summary, err := BuildSummary(report, p.windows)
	if err != nil {
		p.logger.Error("build forecast summary failed", slog.Any("error", err))
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		p.logger.Error("marshal forecast summary failed", slog.Any("error", err))
		return
	}

	for {
		select {
		case p.queue <- payload:
			return
		default:
		}
		select {
		case <-p.queue:
			p.logger.Debug("dropping unpublished summary")
		default:
		}
	}
}

// Run publishes queued summaries until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-p.queue:
			token := p.client.Publish(p.topic, qosAtLeastOnce, true, payload)
			if !token.WaitTimeout(publishTimeout) {
				p.logger.Warn("publish forecast summary timed out", slog.String("topic", p.topic))
				continue
			}
			if err := token.Error(); err != nil {
				p.logger.Error("publish forecast summary failed", slog.String("topic", p.topic), slog.Any("error", err))
				continue
			}
			p.logger.Debug("forecast summary published", slog.String("topic", p.topic), slog.Int("bytes", len(payload)))
		}
	}
}
