package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_alert_system/internal/config"
)

const changesChannel = "alert_changes"

// Feed - подсказка подписчикам о том, что очередь тревог изменилась.
// Доставка не гарантируется, подписчик все равно опрашивает хранилище по таймеру.
type Feed interface {
	Publish(ctx context.Context, alertID uuid.UUID) error
	Subscribe(ctx context.Context) <-chan struct{}
}

// New выбирает реализацию по режиму CHANGE_FEED. Для режима off возвращается nil:
// подписчики видят изменения только на очередном тике опроса.
func New(mode string, client *redis.Client) (Feed, error) {
	switch mode {
	case config.FeedOff, "":
		return nil, nil
	case config.FeedLocal:
		return NewLocalFeed(), nil
	case config.FeedRedis:
		if client == nil {
			return nil, fmt.Errorf("change feed %q requires a redis client", mode)
		}
		return NewRedisFeed(client), nil
	default:
		return nil, fmt.Errorf("unsupported change feed %q", mode)
	}
}

// LocalFeed - реализация Feed внутри одного процесса
type LocalFeed struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[chan struct{}]struct{})}
}

// Publish будит всех подписчиков. Повторные сигналы до чтения склеиваются
func (f *LocalFeed) Publish(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		notify(ch)
	}
	return nil
}

// Subscribe возвращает канал сигналов, который закрывается при отмене ctx
func (f *LocalFeed) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch
}

// RedisFeed - реализация Feed поверх Redis Pub/Sub, работает между процессами
type RedisFeed struct {
	redisClient *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{redisClient: client}
}

func (f *RedisFeed) Publish(ctx context.Context, alertID uuid.UUID) error {
	return f.redisClient.Publish(ctx, changesChannel, alertID.String()).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	pubsub := f.redisClient.Subscribe(ctx, changesChannel)

	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				notify(out)
			}
		}
	}()
	return out
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
