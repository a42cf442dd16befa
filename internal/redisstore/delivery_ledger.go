package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewClient returns a configured go-redis client and validates the connection
// with PING.
func NewClient(addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// DeliveryLedger marks delivered (invoice, grant code) pairs so that
// re-running a batch regenerates documents without re-emailing groups.
type DeliveryLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDeliveryLedger returns a redis-backed ledger.
func NewDeliveryLedger(client *redis.Client, ttl time.Duration) *DeliveryLedger {
	return &DeliveryLedger{client: client, ttl: ttl}
}

func (l *DeliveryLedger) key(invoiceRef, code string) string {
	return fmt.Sprintf("invoices:sent:%s:%s", invoiceRef, code)
}

// Sent reports whether the pair was already delivered.
func (l *DeliveryLedger) Sent(ctx context.Context, invoiceRef, code string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(invoiceRef, code)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records a successful delivery.
func (l *DeliveryLedger) Mark(ctx context.Context, invoiceRef, code string) error {
	return l.client.Set(ctx, l.key(invoiceRef, code), time.Now().UTC().Format(time.RFC3339), l.ttl).Err()
}
