package scheduler

import "github.com/redis/go-redis/v9"

// scheduleScript implements the debounce/promote state machine for a single
// schedule(user_id) call atomically: create a fresh delayed job, postpone an
// existing one, promote it to immediate once D_max_wait has elapsed, or do
// nothing if the job is already active.
//
// KEYS[1] = queue zset (member=user_id, score=fire time, unix millis)
// KEYS[2] = meta hash key for this user (state, first_queued_at, attempts)
// ARGV[1] = user_id
// ARGV[2] = now (unix millis)
// ARGV[3] = debounce duration (millis)
// ARGV[4] = max wait duration (millis)
var scheduleScript = redis.NewScript(`
local queue = KEYS[1]
local meta = KEYS[2]
local userID = ARGV[1]
local now = tonumber(ARGV[2])
local debounce = tonumber(ARGV[3])
local maxWait = tonumber(ARGV[4])

local state = redis.call('HGET', meta, 'state')

if state == 'active' then
    return 'noop'
end

if not state or state == 'completed' or state == 'failed' then
    redis.call('HSET', meta, 'state', 'delayed', 'first_queued_at', now, 'attempts', 0)
    redis.call('ZADD', queue, now + debounce, userID)
    return 'scheduled'
end

-- delayed or waiting: postpone, or promote once max wait has elapsed
local firstQueuedAt = tonumber(redis.call('HGET', meta, 'first_queued_at'))
if firstQueuedAt and (now - firstQueuedAt) >= maxWait then
    redis.call('HSET', meta, 'state', 'waiting')
    redis.call('ZADD', queue, now, userID)
    return 'promoted'
end

redis.call('HSET', meta, 'state', 'delayed')
redis.call('ZADD', queue, now + debounce, userID)
return 'postponed'
`)

// dequeueScript atomically pops up to ARGV[2] jobs whose fire time has
// elapsed and marks each active, so two poll loops never pick up the same
// user.
//
// KEYS[1] = queue zset
// ARGV[1] = now (unix millis)
// ARGV[2] = max jobs to pop
var dequeueScript = redis.NewScript(`
local queue = KEYS[1]
local now = ARGV[1]
local limit = ARGV[2]

local ids = redis.call('ZRANGEBYSCORE', queue, '-inf', now, 'LIMIT', 0, limit)
for _, userID in ipairs(ids) do
    redis.call('ZREM', queue, userID)
    redis.call('HSET', 'memory:extract:meta:' .. userID, 'state', 'active')
end
return ids
`)
