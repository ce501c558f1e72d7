package redis

import "github.com/redis/go-redis/v9"

const (
	// appendHealthScript atomically appends a record and trims the list
	appendHealthScript = `
local list_key = KEYS[1]     -- {prefix}:health

local record = ARGV[1]
local capacity = tonumber(ARGV[2])

redis.call('RPUSH', list_key, record)

-- Keep only the newest records; the oldest are at the head
redis.call('LTRIM', list_key, -capacity, -1)

return redis.call('LLEN', list_key)
`

	// putStateScript replaces the collector state hash
	putStateScript = `
local state_key = KEYS[1]    -- {prefix}:collector:state

redis.call('DEL', state_key)
redis.call('HSET', state_key,
  'last_attempt', ARGV[1],
  'last_update', ARGV[2],
  'last_snapshot', ARGV[3],
  'consecutive_failures', ARGV[4]
)

return 'OK'
`
)

var (
	appendHealth = redis.NewScript(appendHealthScript)
	putState     = redis.NewScript(putStateScript)
)
