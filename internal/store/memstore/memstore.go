// Package memstore implementa core.Repository en memoria.
//
// Se usa en tests y en desarrollo sin Postgres. Replica la semántica del
// store real: conflictos de unicidad, par de amistad bidireccional y
// claims atómicos.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Store struct {
	mu sync.Mutex

	users         map[string]*core.User               // por id
	links         map[string]*core.IdentityLink       // por provider|provider_user_id
	verifications map[string]*core.VerificationRecord // por user_id|provider
	friendships   map[string]*core.Friendship         // por pair key
	rewardsPaid   map[string]bool                     // friendship_reward por pair key
	messages      []core.Message
	ledger        map[string][]core.RewardEntry // por user id

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[string]*core.User),
		links:         make(map[string]*core.IdentityLink),
		verifications: make(map[string]*core.VerificationRecord),
		friendships:   make(map[string]*core.Friendship),
		rewardsPaid:   make(map[string]bool),
		ledger:        make(map[string][]core.RewardEntry),
		now:           time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

func linkKey(provider, providerUserID string) string { return provider + "|" + providerUserID }

// ------- Usuarios / identidades -------

func (s *Store) FindUserByProviderKey(ctx context.Context, provider, providerUserID string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkKey(provider, providerUserID)]
	if !ok {
		return nil, core.ErrNotFound
	}
	u, ok := s.users[l.UserID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetUserByWallet(ctx context.Context, walletAddress string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.WalletAddress != nil && *u.WalletAddress == walletAddress {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ReferralCode != "" && u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) CreateUserWithLink(ctx context.Context, u *core.User, link *core.IdentityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[linkKey(link.Provider, link.ProviderUserID)]; exists {
		return core.ErrConflict
	}
	for _, other := range s.users {
		if strings.EqualFold(other.Username, u.Username) {
			return core.ErrConflict
		}
		if u.WalletAddress != nil && other.WalletAddress != nil && *other.WalletAddress == *u.WalletAddress {
			return core.ErrConflict
		}
		if u.ReferralCode != "" && other.ReferralCode == u.ReferralCode {
			return core.ErrConflict
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp

	link.UserID = u.ID
	return s.insertLinkLocked(link)
}

func (s *Store) CreateLink(ctx context.Context, link *core.IdentityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[linkKey(link.Provider, link.ProviderUserID)]; exists {
		return core.ErrConflict
	}
	return s.insertLinkLocked(link)
}

func (s *Store) insertLinkLocked(link *core.IdentityLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now().UTC()
	}
	link.UpdatedAt = link.CreatedAt
	cp := *link
	s.links[linkKey(link.Provider, link.ProviderUserID)] = &cp
	return nil
}

func (s *Store) UpsertLink(ctx context.Context, link *core.IdentityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.links[linkKey(link.Provider, link.ProviderUserID)]
	if !ok {
		return s.insertLinkLocked(link)
	}
	cur.Handle = link.Handle
	cur.DisplayName = link.DisplayName
	cur.Email = link.Email
	cur.AvatarURL = link.AvatarURL
	if link.AccessToken != nil {
		cur.AccessToken = link.AccessToken
	}
	if link.RefreshToken != nil {
		cur.RefreshToken = link.RefreshToken
	}
	cur.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ListLinks(ctx context.Context, userID string) ([]core.IdentityLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.IdentityLink
	for _, l := range s.links {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return core.ErrNotFound
	}
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) {
			return core.ErrConflict
		}
		if u.WalletAddress != nil && other.WalletAddress != nil && *other.WalletAddress == *u.WalletAddress {
			return core.ErrConflict
		}
	}
	cur.Username = u.Username
	cur.DisplayName = u.DisplayName
	cur.Email = u.Email
	cur.AvatarURL = u.AvatarURL
	cur.WalletAddress = u.WalletAddress
	cur.Verified = u.Verified
	cur.VerificationLevel = u.VerificationLevel
	cur.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) RecordVerification(ctx context.Context, rec *core.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.VerifiedAt.IsZero() {
		rec.VerifiedAt = s.now().UTC()
	}
	cp := *rec
	s.verifications[rec.UserID+"|"+rec.Provider] = &cp
	return nil
}

// Verifications expone el estado de verificación registrado (solo para asserts).
func (s *Store) Verifications() []core.VerificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.VerificationRecord, 0, len(s.verifications))
	for _, rec := range s.verifications {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VerifiedAt.Before(out[j].VerifiedAt) })
	return out
}

// ------- Streak -------

func (s *Store) TouchLoginDay(ctx context.Context, userID string, day time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, false, core.ErrNotFound
	}

	now := day.UTC()
	day = now.Truncate(24 * time.Hour)
	streak := u.LoginStreak
	if u.LastLoginDay != nil {
		lastDay := u.LastLoginDay.UTC().Truncate(24 * time.Hour)
		switch {
		case !day.After(lastDay):
			return streak, false, nil
		case day.Sub(lastDay) == 24*time.Hour:
			streak++
		default:
			streak = 1
		}
	} else {
		streak = 1
	}

	u.LoginStreak = streak
	if streak > u.MaxStreak {
		u.MaxStreak = streak
	}
	d := day
	u.LastLoginDay = &d
	first := now
	u.FirstLoginOfDay = &first
	return streak, true, nil
}

// ------- Amistades -------

func (s *Store) CreateFriendRequest(ctx context.Context, requesterID, addresseeID string) (*core.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.PairKey(requesterID, addresseeID)
	if _, exists := s.friendships[key]; exists {
		return nil, core.ErrConflict
	}
	f := &core.Friendship{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      core.FriendshipPending,
		CreatedAt:   s.now().UTC(),
	}
	s.friendships[key] = f
	cp := *f
	return &cp, nil
}

func (s *Store) AcceptFriendRequest(ctx context.Context, requesterID, addresseeID string) (*core.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.friendships[core.PairKey(requesterID, addresseeID)]
	if !ok || f.Status != core.FriendshipPending ||
		f.RequesterID != requesterID || f.AddresseeID != addresseeID {
		return nil, core.ErrNotFound
	}
	f.Status = core.FriendshipAccepted
	at := s.now().UTC()
	f.AcceptedAt = &at
	cp := *f
	return &cp, nil
}

func (s *Store) GetFriendship(ctx context.Context, a, b string) (*core.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[core.PairKey(a, b)]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *Store) DeleteFriendship(ctx context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := core.PairKey(a, b)
	if _, ok := s.friendships[key]; !ok {
		return core.ErrNotFound
	}
	delete(s.friendships, key)
	return nil
}

func (s *Store) ListFriends(ctx context.Context, userID string) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.User
	for _, f := range s.friendships {
		if f.Status != core.FriendshipAccepted {
			continue
		}
		var otherID string
		switch userID {
		case f.RequesterID:
			otherID = f.AddresseeID
		case f.AddresseeID:
			otherID = f.RequesterID
		default:
			continue
		}
		if u, ok := s.users[otherID]; ok {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) ListPendingRequests(ctx context.Context, userID string) ([]core.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Friendship
	for _, f := range s.friendships {
		if f.Status == core.FriendshipPending && f.AddresseeID == userID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AreFriends(ctx context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[core.PairKey(a, b)]
	return ok && f.Status == core.FriendshipAccepted, nil
}

func (s *Store) ClaimFriendshipReward(ctx context.Context, pairKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rewardsPaid[pairKey] {
		return false, nil
	}
	s.rewardsPaid[pairKey] = true
	return true, nil
}

// ------- Mensajería -------

func (s *Store) CreateMessage(ctx context.Context, m *core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	s.messages = append(s.messages, *m)
	return nil
}

func (s *Store) ListConversation(ctx context.Context, userID, otherID string, limit int, before time.Time) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []core.Message
	for _, m := range s.messages {
		between := (m.SenderID == userID && m.ReceiverID == otherID) ||
			(m.SenderID == otherID && m.ReceiverID == userID)
		if !between {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, receiverID, otherID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReceiverID == receiverID && m.SenderID == otherID && m.ReadAt == nil {
			t := now
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}

// ------- Rewards -------

func (s *Store) CreditTokens(ctx context.Context, userID, kind string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.TokenBalance += amount
	s.appendLedgerLocked(userID, kind, amount)
	return nil
}

func (s *Store) ClaimBalance(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, core.ErrNotFound
	}
	if u.TokenBalance <= 0 {
		return 0, core.ErrNothingToClaim
	}
	amount := u.TokenBalance
	u.TokenBalance = 0
	s.appendLedgerLocked(userID, core.RewardClaim, -amount)
	return amount, nil
}

func (s *Store) appendLedgerLocked(userID, kind string, amount int64) {
	s.ledger[userID] = append(s.ledger[userID], core.RewardEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: s.now().UTC(),
	})
}

func (s *Store) ListRewardEntries(ctx context.Context, userID string, limit int) ([]core.RewardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.ledger[userID]
	out := make([]core.RewardEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
