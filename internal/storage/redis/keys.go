package redis

import (
	"fmt"

	"github.com/mcoot/lessonprogress/internal/model"
)

// Key prefix for all lesson progress data
const keyPrefix = "lessonprogress"

// recordKey returns the Redis key for an owner's progress record.
// There is exactly one key per identity.
func recordKey(owner model.Identity) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, model.RecordSeed, owner)
}

// accountKey returns the Redis key for an Account
func accountKey(id model.Identity) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> identity index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}
