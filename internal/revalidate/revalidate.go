package revalidate

import (
	"context"
	"fmt"
	"sort"

	"storefront-checkout/internal/domain"

	"github.com/redis/go-redis/v9"
)

// TagProducts covers every product listing view.
const TagProducts = "products"

// DefaultChannel is where tag invalidations are announced.
const DefaultChannel = "cache:revalidate"

// Revalidator tells downstream renderers that pages carrying a tag are stale.
type Revalidator interface {
	Revalidate(ctx context.Context, tags ...string) error
}

// ProductTag is the tag of a single product page.
func ProductTag(productID string) string {
	return "product:" + productID
}

// TagsForOrder lists the tags an order makes stale: each purchased product
// once, then the listing tag.
func TagsForOrder(order domain.Order) []string {
	seen := make(map[string]struct{}, len(order.Items))
	tags := make([]string, 0, len(order.Items)+1)
	for _, it := range order.Items {
		tag := ProductTag(it.ProductID)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return append(tags, TagProducts)
}

// Redis bumps a version counter per tag and publishes the tag name, so both
// polling and subscribed renderers notice.
type Redis struct {
	client  redis.Cmdable
	channel string
}

func NewRedis(client redis.Cmdable, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

func versionKey(tag string) string {
	return "cache:tag:" + tag + ":version"
}

func (r *Redis) Revalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, tag := range tags {
			pipe.Incr(ctx, versionKey(tag))
			pipe.Publish(ctx, r.channel, tag)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("revalidate %d tags: %w", len(tags), err)
	}
	return nil
}

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) Revalidate(context.Context, ...string) error { return nil }
