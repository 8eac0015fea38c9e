package service

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretSize = 20
	totpPeriod     = 30
	totpSkew       = 1
)

// OTPProvider genera secretos TOTP y valida códigos contra ellos.
type OTPProvider interface {
	// Generate devuelve el secreto base32 y la URI otpauth:// para el QR.
	Generate(accountName string) (secret string, uri string, err error)
	Validate(code, secret string, at time.Time) bool
}

type totpProvider struct {
	issuer string
}

func NewTOTPProvider(issuer string) OTPProvider {
	if issuer == "" {
		issuer = "El Dado de Oro"
	}
	return &totpProvider{issuer: issuer}
}

func (p *totpProvider) Generate(accountName string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Validate acepta el paso actual y uno a cada lado (±30s).
func (p *totpProvider) Validate(code, secret string, at time.Time) bool {
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
