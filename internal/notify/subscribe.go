package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

type Subscription struct {
	C  <-chan Event
	ps *redis.PubSub
}

func (s *Subscription) Close() error { return s.ps.Close() }

// Subscribe listens on the user's channel until ctx ends or Close is
// called. Messages that do not decode are dropped.
func Subscribe(ctx context.Context, rdb *redis.Client, userID int64) (*Subscription, error) {
	ps := rdb.Subscribe(ctx, Channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Event, 16)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return &Subscription{C: out, ps: ps}, nil
}
