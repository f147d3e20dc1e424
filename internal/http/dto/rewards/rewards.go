// Package rewards contiene los DTOs del ledger de tokens.
package rewards

import "time"

type EntryView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type BalanceResponse struct {
	Balance int64       `json:"balance"`
	Streak  int         `json:"streak"`
	Entries []EntryView `json:"entries"`
}

type DailyLoginResponse struct {
	Streak  int   `json:"streak"`
	Balance int64 `json:"balance"`
}

type ClaimResponse struct {
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Nonce     int64  `json:"nonce"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}
