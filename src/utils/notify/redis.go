package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring/report"
	"github.com/warp-contracts/shadowlink/src/utils/task"
)

// Forwards workflow events to a Redis channel
type RedisPublisher struct {
	*task.Task

	redisConfig config.Redis
	counters    *report.NotifierReport

	client      *redis.Client
	channelName string
	input       chan *Event
}

func NewRedisPublisher(config *config.Config) (self *RedisPublisher) {
	self = new(RedisPublisher)

	self.redisConfig = config.Redis
	self.channelName = config.Notifier.ChannelName
	self.input = make(chan *Event, config.Notifier.MaxQueueSize)
	self.counters = &report.NotifierReport{}

	self.Task = task.NewTask(config, "redis-publisher").
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnAfterStop(self.disconnect).
		WithWorkerPool(config.Notifier.MaxWorkers, config.Notifier.MaxQueueSize)

	return
}

func (self *RedisPublisher) WithMonitor(monitor monitoring.Monitor) *RedisPublisher {
	self.counters = monitor.GetReport().Notifier
	return self
}

// Events are dropped when the queue is full or the publisher is stopping
func (self *RedisPublisher) Notify(event *Event) {
	if self.IsStopping.Load() {
		return
	}

	select {
	case self.input <- event:
	default:
		self.Log.WithField("type", event.Type).Warn("Queue full, dropping event")
		self.counters.Errors.PersistentError.Inc()
	}
}

func (self *RedisPublisher) disconnect() {
	if self.client == nil {
		return
	}
	err := self.client.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close connection")
	}
}

func (self *RedisPublisher) connect() (err error) {
	opts := redis.Options{
		ClientName:      fmt.Sprintf("shadowlink/%s", self.Name),
		Addr:            fmt.Sprintf("%s:%d", self.redisConfig.Host, self.redisConfig.Port),
		Password:        self.redisConfig.Password,
		Username:        self.redisConfig.User,
		DB:              self.redisConfig.DB,
		MinIdleConns:    self.redisConfig.MinIdleConns,
		MaxIdleConns:    self.redisConfig.MaxIdleConns,
		ConnMaxIdleTime: self.redisConfig.ConnMaxIdleTime,
		PoolSize:        self.redisConfig.MaxOpenConns,
		ConnMaxLifetime: self.redisConfig.ConnMaxLifetime,
	}

	if self.redisConfig.ClientCert != "" && self.redisConfig.ClientKey != "" && self.redisConfig.CaCert != "" {
		cert, err := tls.X509KeyPair([]byte(self.redisConfig.ClientCert), []byte(self.redisConfig.ClientKey))
		if err != nil {
			self.Log.WithError(err).Error("Failed to load client cert")
			return err
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM([]byte(self.redisConfig.CaCert)) {
			return errors.New("failed to append CA cert to pool")
		}

		opts.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			RootCAs:      caCertPool,
			Certificates: []tls.Certificate{cert},
		}
	}

	self.client = redis.NewClient(&opts)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = self.client.Ping(ctx).Err()
	if err != nil {
		self.Log.WithError(err).Error("Failed to ping Redis")
		return
	}

	return
}

func (self *RedisPublisher) run() (err error) {
	for {
		var event *Event
		select {
		case <-self.StopChannel:
			return nil
		case event = <-self.input:
		}

		self.SubmitToWorker(func() {
			err := task.NewRetry().
				WithContext(self.Ctx).
				WithMaxElapsedTime(self.Config.Notifier.MaxElapsedTime).
				WithMaxInterval(self.Config.Notifier.MaxInterval).
				WithOnError(func(err error, isDurationAcceptable bool) error {
					self.Log.WithError(err).Error("Failed to publish message, retrying")
					self.counters.Errors.Publish.Inc()
					return err
				}).
				Run(func() (err error) {
					return self.client.Publish(self.Ctx, self.channelName, event).Err()
				})
			if err != nil {
				self.Log.WithError(err).Error("Failed to publish message, giving up")
				self.counters.Errors.PersistentError.Inc()
				return
			}
			self.counters.State.MessagesPublished.Inc()
		})
	}
}
