package domain

import "time"

// CodeRepository is the durable tier of the Code Inventory. Partitioned
// logically by game name; the durable store is the source of truth.
//
//go:generate mockery --name=CodeRepository --with-expecter --filename=code_repository_mock.go
type CodeRepository interface {
	// Append persists a newly minted code. Must be durable: a code visible
	// to PeekOldest must survive a process restart.
	Append(ctx Context, game, code string) error
	// PeekOldest returns up to n codes for game in creation-time order
	// without removing them.
	PeekOldest(ctx Context, game string, n int) ([]Code, error)
	// Count returns the number of unissued codes for game (best-effort, used
	// for operator dashboards only).
	Count(ctx Context, game string) (int64, error)
}

// WarmTier is the in-memory ordered-list cache fronting CodeRepository,
// addressed as "keys:<GameName>".
//
//go:generate mockery --name=WarmTier --with-expecter --filename=warm_tier_mock.go
type WarmTier interface {
	// Push appends codes to the tail of game's ordered list.
	Push(ctx Context, game string, codes ...string) error
	// PopOldest atomically removes and returns up to n codes from the head
	// of game's ordered list. This is the Code Inventory's reservation
	// primitive: once PopOldest returns a code to one caller,
	// no concurrent or later PopOldest call can return that same code
	// again, so it must never be implemented as a peek followed by a
	// separate removal.
	PopOldest(ctx Context, game string, n int) ([]string, error)
	// PushFront re-adds codes to the head of game's ordered list, in their
	// original relative order, undoing a PopOldest whose reservation was
	// never committed.
	PushFront(ctx Context, game string, codes ...string) error
	// Len returns the current length of game's ordered list.
	Len(ctx Context, game string) (int64, error)
	// Expire sets a TTL on game's ordered list key to bound cache staleness.
	Expire(ctx Context, game string, ttl time.Duration) error
}

// UserRepository is the User State Store.
//
//go:generate mockery --name=UserRepository --with-expecter --filename=user_repository_mock.go
type UserRepository interface {
	// GetUser returns the UserRecord for userID, or ErrNotFound.
	GetUser(ctx Context, userID string) (UserRecord, error)
	// UpsertUser creates a user row if absent; never overwrites identity
	// fields on an existing row.
	UpsertUser(ctx Context, identity UserRecord) error
	// SetLanguage updates a user's preferred language.
	SetLanguage(ctx Context, userID, lang string) error
	// SetFlag lets an operator set is_banned, role, status, or notes
	// out-of-band. field is one of "is_banned", "role", "status", "notes".
	SetFlag(ctx Context, userID, field string, value any) error
	// ResetDailyIfNeeded atomically zeroes DailyRequestCount and advances
	// LastResetDate when the stored row is stale relative to now, returning
	// the up-to-date record either way.
	ResetDailyIfNeeded(ctx Context, userID string, now time.Time) (UserRecord, error)
	// LogAction appends an audit entry for a user-triggered action.
	LogAction(ctx Context, userID, action string) error
	// ListSubscribed returns user IDs eligible for broadcast notification.
	ListSubscribed(ctx Context) ([]string, error)
	// ListUsers returns one page of users for the operator console, newest
	// first, optionally filtered by status tier and a username/name search
	// term. offset/limit paginate; both are assumed pre-validated.
	ListUsers(ctx Context, offset, limit int, status UserStatus, query string) ([]UserRecord, error)
	// CountUsers returns the total number of known users (admin dashboard).
	CountUsers(ctx Context) (int64, error)
	// DailyRequestsCount returns the sum of DailyRequestCount across every
	// user whose LastResetDate is today (UTC), i.e. the raw "codes claimed
	// today" figure the operator dashboard scales by a display coefficient.
	DailyRequestsCount(ctx Context) (int64, error)
}

// IssuanceRepository performs the transactional commit step of a draw:
// atomic with respect to removing the drawn codes from the durable tier
// and updating the user's quota counters.
//
//go:generate mockery --name=IssuanceRepository --with-expecter --filename=issuance_repository_mock.go
type IssuanceRepository interface {
	// CommitDraw removes, in one transaction, every code in draws (keyed by
	// game name) from the durable Code Inventory and updates userID's
	// DailyRequestCount, TotalKeysGenerated, and LastRequestTime. Returns
	// the total number of codes committed.
	CommitDraw(ctx Context, userID string, draws map[string][]string) (int, error)
}

// Notifier is the operator console's outbound messaging port. Chat
// transport lives outside this module; production deployments supply a
// real implementation.
//
//go:generate mockery --name=Notifier --with-expecter --filename=notifier_mock.go
type Notifier interface {
	// NotifyUser sends message to a single user.
	NotifyUser(ctx Context, userID, message string) error
	// Broadcast sends message to every subscribed user.
	Broadcast(ctx Context, userIDs []string, message string) error
}

// PromoClient is the upstream promo API port consumed by the Worker.
//
//go:generate mockery --name=PromoClient --with-expecter --filename=promo_client_mock.go
type PromoClient interface {
	// LoginClient exchanges a freshly generated ClientID for a client token.
	LoginClient(ctx Context, g GameSpec, proxy ProxySpec, clientID ClientID) (token string, err error)
	// RegisterEvent emulates one promo event; hasCode reports whether the
	// upstream is now ready to mint a code for this token.
	RegisterEvent(ctx Context, g GameSpec, proxy ProxySpec, token string, eventID string) (hasCode bool, err error)
	// CreateCode mints a code for an already-registered token.
	CreateCode(ctx Context, g GameSpec, proxy ProxySpec, token string) (code string, err error)
}
