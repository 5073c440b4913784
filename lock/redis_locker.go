package lock

import (
	"strconv"
	"time"

	"github.com/rs/xid"
	"gitlab.com/vitanet-network/settlement_api/net/redis"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lock re-acquired by another run is never released by the old holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker implements Locker over a redis key with atomic SET NX PX.
type RedisLocker struct {
	conn *redis.Client
}

func NewRedisLocker(conn *redis.Client) *RedisLocker {
	return &RedisLocker{conn: conn}
}

func (l *RedisLocker) TryAcquire(key string, ttl time.Duration) (*Handle, error) {
	token := xid.New().String()
	reply := ""
	err := l.conn.Exec(&reply, "SET", key, token, "NX", "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	if err != nil {
		return nil, err
	}
	if reply != "OK" {
		return nil, ErrNotAcquired
	}
	return &Handle{Key: key, Token: token}, nil
}

func (l *RedisLocker) Release(handle *Handle) error {
	if handle == nil {
		return nil
	}
	return l.conn.Eval(nil, releaseScript, 1, handle.Key, handle.Token)
}
