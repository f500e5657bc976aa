package storage

import (
	"context"
	"strconv"
	"time"

	redis2 "CampusLink/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Status is a user's reachability state. The coordinator derives online,
// away and offline from registry transitions; busy is a legal stored value
// so last-known state round-trips, but no coordinator path sets it.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// UserPresence is the durable mirror of in-process presence so that the CRUD
// services can read reachability without a hook into the coordinator.
// LastSeen is nil while the user has at least one live connection.
type UserPresence struct {
	UserID      string
	Status      Status
	LastSeen    *time.Time
	DeviceCount int
}

const (
	fieldStatus      = "status"
	fieldLastSeen    = "last_seen"
	fieldDeviceCount = "device_count"
)

// presence hash: cl:presence:<user>
func presenceKey(user string) string { return "cl:presence:" + user }

type PresenceStore struct{}

func NewPresenceStore() *PresenceStore { return &PresenceStore{} }

// SetOnline records the user reachable with the given device count and
// clears last_seen (null while online).
func (s *PresenceStore) SetOnline(ctx context.Context, user string, deviceCount int) error {
	rdb := redis2.GetRedis()
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, presenceKey(user), fieldStatus, string(StatusOnline), fieldDeviceCount, deviceCount)
	pipe.HDel(ctx, presenceKey(user), fieldLastSeen)
	_, err := pipe.Exec(ctx)
	return errors.WithStack(err)
}

// SetAway marks the user away without touching device count or last_seen.
func (s *PresenceStore) SetAway(ctx context.Context, user string) error {
	err := redis2.GetRedis().HSet(ctx, presenceKey(user), fieldStatus, string(StatusAway)).Err()
	return errors.WithStack(err)
}

// SetOffline records the offline transition with last_seen. The key is
// retained as last-known state, never deleted.
func (s *PresenceStore) SetOffline(ctx context.Context, user string, lastSeen time.Time) error {
	err := redis2.GetRedis().HSet(ctx, presenceKey(user),
		fieldStatus, string(StatusOffline),
		fieldDeviceCount, 0,
		fieldLastSeen, lastSeen.UnixMilli(),
	).Err()
	return errors.WithStack(err)
}

// SetDeviceCount refreshes only the device count (second device connects,
// one of several devices disconnects).
func (s *PresenceStore) SetDeviceCount(ctx context.Context, user string, deviceCount int) error {
	err := redis2.GetRedis().HSet(ctx, presenceKey(user), fieldDeviceCount, deviceCount).Err()
	return errors.WithStack(err)
}

// Get returns the last-known presence; a user never seen is offline with
// nil last_seen.
func (s *PresenceStore) Get(ctx context.Context, user string) (UserPresence, error) {
	out := UserPresence{UserID: user, Status: StatusOffline}
	vals, err := redis2.GetRedis().HGetAll(ctx, presenceKey(user)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return out, errors.WithStack(err)
	}
	if len(vals) == 0 {
		return out, nil
	}
	if st := Status(vals[fieldStatus]); ValidStatus(st) {
		out.Status = st
	}
	if v, ok := vals[fieldDeviceCount]; ok {
		out.DeviceCount, _ = strconv.Atoi(v)
	}
	if v, ok := vals[fieldLastSeen]; ok && v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.UnixMilli(ms)
			out.LastSeen = &t
		}
	}
	return out, nil
}
