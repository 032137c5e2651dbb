package websocket

import (
	"strings"
	"sync"
	"time"
)

// Rate limits per minute
type RateLimits struct {
	MaxMessages      int
	MaxCallSignals   int
	MaxFriendActions int
	MaxRoomActions   int
	MaxReads         int
	MaxPingMessages  int
}

var DefaultRateLimits = RateLimits{
	MaxMessages:      120,
	MaxCallSignals:   120,
	MaxFriendActions: 30,
	MaxRoomActions:   60,
	MaxReads:         240,
	MaxPingMessages:  60,
}

const (
	categoryMessage = "message"
	categoryCall    = "call"
	categoryFriend  = "friend"
	categoryRoom    = "room"
	categoryRead    = "read"
	categoryPing    = "ping"
)

func eventCategory(event string) string {
	switch {
	case event == EventTextMessage || event == EventGroupTextMessage:
		return categoryMessage
	case strings.Contains(event, "_call"):
		return categoryCall
	case event == EventFriendRequest || event == EventAcceptRequest:
		return categoryFriend
	case event == EventCreateRoom || event == EventJoinRoom || event == EventLeaveRoom || event == EventStartConversation:
		return categoryRoom
	case event == EventPing:
		return categoryPing
	default:
		return categoryRead
	}
}

// ClientRateLimiter tracks rate limits per client
type ClientRateLimiter struct {
	limits     RateLimits
	tokens     map[string]int
	lastRefill time.Time
	mu         sync.Mutex
}

func NewClientRateLimiter(limits RateLimits) *ClientRateLimiter {
	rl := &ClientRateLimiter{limits: limits, lastRefill: time.Now()}
	rl.refillTokens()
	return rl
}

func (rl *ClientRateLimiter) Allow(event string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refillTokens()
		rl.lastRefill = now
	}

	category := eventCategory(event)
	if rl.tokens[category] > 0 {
		rl.tokens[category]--
		return true
	}
	return false
}

func (rl *ClientRateLimiter) refillTokens() {
	rl.tokens = map[string]int{
		categoryMessage: rl.limits.MaxMessages,
		categoryCall:    rl.limits.MaxCallSignals,
		categoryFriend:  rl.limits.MaxFriendActions,
		categoryRoom:    rl.limits.MaxRoomActions,
		categoryRead:    rl.limits.MaxReads,
		categoryPing:    rl.limits.MaxPingMessages,
	}
}
