package domain

import "time"

// ISOTimeLayout reproduce el formato ISO con milisegundos usado en los documentos.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// PasswordReset es la solicitud de recuperación vigente para un email.
type PasswordReset struct {
	Code      string `json:"code" bson:"code"`
	ExpiresAt string `json:"expiresAt" bson:"expiresAt"`
}

func NewPasswordReset(code string, expiresAt time.Time) PasswordReset {
	return PasswordReset{
		Code:      code,
		ExpiresAt: expiresAt.UTC().Format(ISOTimeLayout),
	}
}

// Expired indica si la solicitud ya no es válida en now. Una fecha ilegible cuenta como expirada.
func (r PasswordReset) Expired(now time.Time) bool {
	expiresAt, err := time.Parse(time.RFC3339Nano, r.ExpiresAt)
	if err != nil {
		return true
	}
	return now.After(expiresAt)
}
