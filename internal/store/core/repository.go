package core

import (
	"context"
	"time"
)

type Repository interface {
	Ping(ctx context.Context) error
	Close()

	// ------- Usuarios / identidades -------

	// FindUserByProviderKey busca el usuario dueño del link (provider, providerUserID).
	// Retorna ErrNotFound si nadie tiene esa cuenta vinculada.
	FindUserByProviderKey(ctx context.Context, provider, providerUserID string) (*User, error)

	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByWallet(ctx context.Context, walletAddress string) (*User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*User, error)

	// CreateUserWithLink crea el usuario y su primer IdentityLink en una
	// transacción. Retorna ErrConflict si username/wallet ya existen o si
	// el par (provider, provider_user_id) ya está vinculado.
	CreateUserWithLink(ctx context.Context, u *User, link *IdentityLink) error

	// CreateLink agrega un link a un usuario existente (flujo de linking).
	// Retorna ErrConflict si el par (provider, provider_user_id) ya existe.
	CreateLink(ctx context.Context, link *IdentityLink) error

	// UpsertLink refresca el sub-registro del par (provider,
	// provider_user_id): handle, display_name, email, avatar y tokens.
	// Si el par no existe lo crea (link.UserID manda).
	UpsertLink(ctx context.Context, link *IdentityLink) error

	ListLinks(ctx context.Context, userID string) ([]IdentityLink, error)
	UpdateUserProfile(ctx context.Context, u *User) error

	// RecordVerification registra o refresca el estado de verificación
	// del par (user_id, provider).
	RecordVerification(ctx context.Context, rec *VerificationRecord) error

	// ------- Streak -------

	// TouchLoginDay actualiza streak y last_login_day si day (UTC, truncado
	// a medianoche) es posterior al último registrado. Retorna el streak
	// resultante y si hubo incremento (false en logins repetidos del día).
	TouchLoginDay(ctx context.Context, userID string, day time.Time) (streak int, counted bool, err error)

	// ------- Amistades -------

	// CreateFriendRequest crea la fila pending. Retorna ErrConflict si ya
	// existe una relación en cualquier dirección entre ambos usuarios.
	CreateFriendRequest(ctx context.Context, requesterID, addresseeID string) (*Friendship, error)

	// AcceptFriendRequest marca accepted la fila pending addressee<-requester.
	// Retorna ErrNotFound si no hay pending para aceptar.
	AcceptFriendRequest(ctx context.Context, requesterID, addresseeID string) (*Friendship, error)

	// GetFriendship retorna la relación entre ambos usuarios, en
	// cualquier dirección. ErrNotFound si no hay ninguna.
	GetFriendship(ctx context.Context, a, b string) (*Friendship, error)

	// DeleteFriendship elimina la fila del par (decline o unfriend).
	// ErrNotFound si no existe.
	DeleteFriendship(ctx context.Context, a, b string) error

	ListFriends(ctx context.Context, userID string) ([]User, error)
	ListPendingRequests(ctx context.Context, userID string) ([]Friendship, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)

	// ClaimFriendshipReward inserta la marca del par con ON CONFLICT DO
	// NOTHING. Retorna true solo si esta llamada insertó la fila (el
	// premio corresponde una única vez por par).
	ClaimFriendshipReward(ctx context.Context, pairKey string) (bool, error)

	// ------- Mensajería -------

	CreateMessage(ctx context.Context, m *Message) error
	ListConversation(ctx context.Context, userID, otherID string, limit int, before time.Time) ([]Message, error)
	MarkRead(ctx context.Context, receiverID, otherID string) (int64, error)

	// ------- Rewards -------

	// CreditTokens acredita amount al balance y agrega la línea al ledger,
	// en una transacción.
	CreditTokens(ctx context.Context, userID, kind string, amount int64) error

	// ClaimBalance pone el balance en cero de forma atómica y retorna el
	// monto debitado. Retorna ErrNothingToClaim si el balance era <= 0.
	// Registra la línea negativa en el ledger dentro de la misma tx.
	ClaimBalance(ctx context.Context, userID string) (int64, error)

	ListRewardEntries(ctx context.Context, userID string, limit int) ([]RewardEntry, error)
}
