package gating

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/superbrain/gateway/internal/kv"
	"github.com/superbrain/gateway/internal/message"
)

// EchoGate denies messages the gateway would otherwise be replying to
// itself: either the platform marked the message as sent by this account
// (FromMe), or the sender id matches one of the gateway's own registered
// outbound identities.
type EchoGate struct {
	store kv.Store
}

func NewEchoGate(store kv.Store) *EchoGate { return &EchoGate{store: store} }

func (g *EchoGate) Name() string { return "echo" }

func (g *EchoGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	if msg.FromMe {
		return false, "fromMe", nil
	}
	isBot, err := g.store.IsBotIdentifier(ctx, msg.Platform, msg.From)
	if err != nil {
		return true, "", err
	}
	if isBot {
		return false, "bot_identifier", nil
	}
	return true, "", nil
}

// GroupAllowlistGate denies group messages from a (platform, groupID) pair
// an operator has not added to the allowlist table. Direct messages are
// unaffected.
type GroupAllowlistGate struct {
	store kv.Store
}

func NewGroupAllowlistGate(store kv.Store) *GroupAllowlistGate {
	return &GroupAllowlistGate{store: store}
}

func (g *GroupAllowlistGate) Name() string { return "group_allowlist" }

func (g *GroupAllowlistGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	if !msg.IsGroup {
		return true, "", nil
	}
	allowed, err := g.store.IsGroupAllowed(ctx, msg.Platform, msg.GroupID)
	if err != nil {
		return true, "", err
	}
	if !allowed {
		return false, fmt.Sprintf("group %s not in allowlist", msg.GroupID), nil
	}
	return true, "", nil
}

// MentionGate denies group messages that neither name the bot (with or
// without a leading "@") nor reply to one of its own messages. Direct
// messages are unaffected — there's no ambiguity about who a 1:1 message
// is addressed to.
type MentionGate struct {
	store kv.Store
}

func NewMentionGate(store kv.Store) *MentionGate { return &MentionGate{store: store} }

func (g *MentionGate) Name() string { return "mention" }

func (g *MentionGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	if !msg.IsGroup {
		return true, "", nil
	}
	if msg.IsReplyToBot {
		return true, "", nil
	}
	names, err := g.store.BotNames(ctx)
	if err != nil {
		return true, "", err
	}
	content := strings.ToLower(msg.Content)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if strings.Contains(content, name) || strings.Contains(content, "@"+name) {
			return true, "", nil
		}
	}
	return false, "no bot mention or reply", nil
}

// ContentGate denies messages whose text is empty or below min_length, and
// optionally denies non-text content with no caption when blockMediaOnly
// is set.
type ContentGate struct {
	minLength      int
	blockMediaOnly bool
}

// NewContentGate builds a gate enforcing minLength (0 disables the length
// check beyond non-empty) and, if blockMediaOnly is set, requiring a
// caption on non-text content.
func NewContentGate(minLength int, blockMediaOnly bool) *ContentGate {
	return &ContentGate{minLength: minLength, blockMediaOnly: blockMediaOnly}
}

func (g *ContentGate) Name() string { return "content" }

func (g *ContentGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	caption := strings.TrimSpace(msg.Content)
	if msg.ContentType == "" || msg.ContentType == message.ContentText {
		if caption == "" {
			return false, "empty content", nil
		}
		if g.minLength > 0 && len(caption) < g.minLength {
			return false, fmt.Sprintf("content shorter than %d characters", g.minLength), nil
		}
		return true, "", nil
	}
	if g.blockMediaOnly && caption == "" {
		return false, "media without caption", nil
	}
	return true, "", nil
}

// RateLimitGate bounds inbound messages per sender using a shared KV store,
// generalizing the gateway's in-memory WebhookRateLimiter to a
// Redis-backed counter so limits hold across process restarts and replicas.
type RateLimitGate struct {
	store  kv.Store
	window time.Duration
	max    int64
}

// NewRateLimitGate returns a gate allowing max hits per window per sender.
func NewRateLimitGate(store kv.Store, window time.Duration, max int64) *RateLimitGate {
	return &RateLimitGate{store: store, window: window, max: max}
}

func (g *RateLimitGate) Name() string { return "rate_limit" }

func (g *RateLimitGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", msg.Platform, msg.From)
	count, err := g.store.Incr(ctx, key, g.window)
	if err != nil {
		return true, "", err
	}
	if count > g.max {
		return false, fmt.Sprintf("exceeded %d messages per %s", g.max, g.window), nil
	}
	return true, "", nil
}

// BlocklistGate denies senders an operator has explicitly blocked.
type BlocklistGate struct {
	store kv.Store
}

func NewBlocklistGate(store kv.Store) *BlocklistGate { return &BlocklistGate{store: store} }

func (g *BlocklistGate) Name() string { return "blocklist" }

func (g *BlocklistGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	blocked, err := g.store.Exists(ctx, fmt.Sprintf("blocklist:%s:%s", msg.Platform, msg.From))
	if err != nil {
		return true, "", err
	}
	if blocked {
		return false, "sender blocked", nil
	}
	return true, "", nil
}

// MutedGate denies a conversation the user or operator has muted.
type MutedGate struct {
	store kv.Store
}

func NewMutedGate(store kv.Store) *MutedGate { return &MutedGate{store: store} }

func (g *MutedGate) Name() string { return "muted" }

func (g *MutedGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	muted, err := g.store.Exists(ctx, fmt.Sprintf("muted:%s", rc.ConversationID))
	if err != nil {
		return true, "", err
	}
	if muted {
		return false, "conversation muted", nil
	}
	return true, "", nil
}

// QuietHoursGate denies every message that arrives during a user's
// configured window. The chain runs before classification, so the denial
// applies whatever intent the message would have been given: passive
// ingestion is skipped as well as replies.
type QuietHoursGate struct {
	store kv.Store
	now   func() time.Time
}

// NewQuietHoursGate builds a gate using the supplied clock (tests may
// inject a fixed one; production passes time.Now).
func NewQuietHoursGate(store kv.Store, now func() time.Time) *QuietHoursGate {
	return &QuietHoursGate{store: store, now: now}
}

func (g *QuietHoursGate) Name() string { return "quiet_hours" }

func (g *QuietHoursGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	start, end, ok, err := g.store.GetQuietHours(ctx, rc.UserID)
	if err != nil {
		return true, "", err
	}
	if !ok {
		return true, "", nil
	}
	hour := g.now().UTC().Hour()
	inWindow := false
	if start <= end {
		inWindow = hour >= start && hour < end
	} else {
		inWindow = hour >= start || hour < end
	}
	if inWindow {
		return false, "quiet hours active", nil
	}
	return true, "", nil
}

// PlanGate denies messages from accounts whose entitlement has lapsed.
type PlanGate struct {
	store kv.Store
}

func NewPlanGate(store kv.Store) *PlanGate { return &PlanGate{store: store} }

func (g *PlanGate) Name() string { return "plan" }

func (g *PlanGate) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error) {
	active, err := g.store.IsPlanActive(ctx, rc.AccountID)
	if err != nil {
		return true, "", err
	}
	if !active {
		return false, "account plan inactive", nil
	}
	return true, "", nil
}
