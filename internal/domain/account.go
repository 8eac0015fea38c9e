package domain

import "time"

// Colecciones del almacén de documentos.
const (
	CollectionPendingAccounts = "tempUsers"
	CollectionAccounts        = "users"
	CollectionPasswordResets  = "passwordResets"
	CollectionUsernames       = "usernames"
)

// PendingAccount es un registro a la espera de la primera verificación TOTP.
type PendingAccount struct {
	Email        string    `json:"email" bson:"email"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"password" bson:"password"`
	MFASecret    string    `json:"mfaSecret" bson:"mfaSecret"`
	Verified     bool      `json:"verified" bson:"verified"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Account es una cuenta activa, promovida desde PendingAccount.
type Account struct {
	Email        string    `json:"email" bson:"email"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"password" bson:"password"`
	MFASecret    string    `json:"mfaSecret" bson:"mfaSecret"`
	Verified     bool      `json:"verified" bson:"verified"`
	MFAEnabled   bool      `json:"mfaEnabled" bson:"mfaEnabled"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Promote construye la cuenta definitiva a partir del registro pendiente.
func (p PendingAccount) Promote() Account {
	return Account{
		Email:        p.Email,
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		MFASecret:    p.MFASecret,
		Verified:     true,
		MFAEnabled:   true,
		CreatedAt:    p.CreatedAt,
	}
}

// UsernameReservation reserva un nombre de usuario para un email.
type UsernameReservation struct {
	Username  string    `json:"username" bson:"username"`
	Owner     string    `json:"owner" bson:"owner"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
