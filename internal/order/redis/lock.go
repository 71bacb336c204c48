package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis holds short-lived per-book checkout locks. The lock is advisory: it
// fails contended checkouts fast, while the row lock inside the checkout
// transaction remains the authoritative guard against oversell.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

func (r *Redis) getBookLockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	lockTTLStr := os.Getenv("BOOK_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid BOOK_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 30 seconds")
		return defaultDuration
	}
	return time.Duration(lockTTLSec) * time.Second
}

// LockBook takes a single book lock owned by orderID.
func (r *Redis) LockBook(bookID, orderID string) (bool, error) {
	key := "book_lock:" + bookID
	ok, err := r.Client.SetNX(context.Background(), key, orderID, r.getBookLockDuration()).Result()
	return ok, err
}

// UnlockBook releases a lock only if orderID still owns it.
func (r *Redis) UnlockBook(bookID, orderID string) error {
	ctx := context.Background()
	key := fmt.Sprintf("book_lock:%s", bookID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == orderID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// LockBooks locks every book or none: on a conflict or error, locks taken so
// far are rolled back.
func (r *Redis) LockBooks(bookIDs []string, orderID string) (bool, error) {
	locked := []string{}
	for _, bookID := range bookIDs {
		ok, err := r.LockBook(bookID, orderID)
		if err != nil {
			for _, l := range locked {
				_ = r.UnlockBook(l, orderID)
			}
			return false, err
		}
		if !ok {
			for _, l := range locked {
				_ = r.UnlockBook(l, orderID)
			}
			return false, nil
		}
		locked = append(locked, bookID)
	}
	return true, nil
}

// UnlockBooks releases all locks, returning the first error seen.
func (r *Redis) UnlockBooks(bookIDs []string, orderID string) error {
	var firstErr error
	for _, bookID := range bookIDs {
		err := r.UnlockBook(bookID, orderID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
