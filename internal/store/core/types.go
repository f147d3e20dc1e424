package core

import "time"

// User es la identidad unificada. Cada cuenta externa vinculada vive en
// IdentityLink; el User concentra perfil, balance y racha de login.
type User struct {
	ID                string
	Username          string
	DisplayName       string
	Email             string
	AvatarURL         string
	WalletAddress     *string // checksummed, único cuando no es nil
	Verified          bool
	VerificationLevel string // "" | device | orb (lo que reporte worldid)
	ReferralCode      string // único, generado en el alta
	ReferrerID        *string
	TokenBalance      int64
	LoginStreak       int
	MaxStreak         int
	LastLoginDay      *time.Time // día UTC truncado del último login contado
	FirstLoginOfDay   *time.Time // timestamp del primer login del día actual
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IdentityLink vincula una cuenta externa (provider, provider_user_id)
// a un User. El par (Provider, ProviderUserID) es único en la base.
// Un login repetido refresca los campos del sub-registro (UpsertLink).
type IdentityLink struct {
	ID             string
	UserID         string
	Provider       string // twitter | discord | telegram | wallet | worldid
	ProviderUserID string
	Handle         string // username/handle en el provider, si lo hay
	DisplayName    string
	Email          string
	AvatarURL      string
	AccessToken    *string // cifrado con secretbox, si el provider entrega tokens
	RefreshToken   *string // cifrado, sólo providers OAuth2
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// VerificationRecord es el estado de verificación por método: una fila
// por (user_id, provider), actualizada en cada verificación exitosa.
type VerificationRecord struct {
	ID         string
	UserID     string
	Provider   string
	Outcome    string // login | link
	Verified   bool
	ProofHash  string // hash de la prueba (worldid: nullifier), si aplica
	TxHash     string // tx on-chain asociada, si aplica
	VerifiedAt time.Time
}

// Friendship es una fila direccional requester -> addressee.
type Friendship struct {
	ID          string
	RequesterID string
	AddresseeID string
	Status      string // pending | accepted
	CreatedAt   time.Time
	AcceptedAt  *time.Time
}

// FriendshipReward marca que un par de usuarios ya cobró el premio por
// amistad. PairKey es determinístico (IDs ordenados) para que el premio
// se pague una sola vez por par, sin importar direcciones ni re-amistades.
type FriendshipReward struct {
	PairKey   string
	CreatedAt time.Time
}

// Message es un mensaje directo entre amigos.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Body       string
	CreatedAt  time.Time
	ReadAt     *time.Time
}

// RewardEntry es una línea del ledger de tokens. Amount positivo
// acredita, negativo debita (claim).
type RewardEntry struct {
	ID        string
	UserID    string
	Kind      string // friend_accept | daily_login | streak_bonus | claim
	Amount    int64
	CreatedAt time.Time
}

// Voucher es el comprobante firmado EIP-712 que el usuario presenta
// on-chain para retirar su balance.
type Voucher struct {
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Nonce     int64  `json:"nonce"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"` // hex 65 bytes, v ∈ {27,28}
}

// Estados de amistad.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Kinds del ledger de rewards.
const (
	RewardFriendAccept = "friend_accept"
	RewardDailyLogin   = "daily_login"
	RewardStreakBonus  = "streak_bonus"
	RewardClaim        = "claim"
)

// Providers soportados.
const (
	ProviderTwitter  = "twitter"
	ProviderDiscord  = "discord"
	ProviderTelegram = "telegram"
	ProviderWallet   = "wallet"
	ProviderWorldID  = "worldid"
)
