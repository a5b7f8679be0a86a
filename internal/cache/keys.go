package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// FeedChannel is the Redis Pub/Sub channel carrying change events for one owner.
func FeedChannel(ownerID uuid.UUID) string {
	return fmt.Sprintf("feed:%s", ownerID)
}
