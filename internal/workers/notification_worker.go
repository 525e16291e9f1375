package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/finlix/backend/internal/events"
)

// Notifier delivers one loan event to whoever should hear about it.
type Notifier interface {
	Notify(ctx context.Context, ev events.LoanEvent) error
}

// LogNotifier writes events to the log. It is the default until a mail or
// push channel exists.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev events.LoanEvent) error {
	n.Logger.WithFields(logrus.Fields{
		"event":   ev.Type,
		"loan_id": ev.LoanID,
		"owner":   ev.Owner,
		"actor":   ev.Actor,
		"status":  ev.Status,
	}).Info("loan notification")
	return nil
}

// NotificationWorkerPool consumes the loan event stream through a consumer
// group and hands each event to the Notifier.
type NotificationWorkerPool struct {
	Redis      *redis.Client
	Notifier   Notifier
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *NotificationWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Notifier == nil {
		return errors.New("NotificationWorkerPool missing dependency: Redis/Notifier must be set")
	}
	if p.Stream == "" {
		p.Stream = "loan:events"
	}
	if p.Group == "" {
		p.Group = "loan-notifiers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "n"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *NotificationWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *NotificationWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	log := p.Logger.WithField("redis_id", msg.ID)

	ev, err := events.Decode(msg.Values)
	if err != nil {
		log.WithError(err).Warn("dropping undecodable loan event")
		return
	}
	if err := p.Notifier.Notify(ctx, ev); err != nil {
		log.WithError(err).WithField("loan_id", ev.LoanID).Error("notify failed")
	}
}
