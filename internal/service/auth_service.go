package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"

	"dado-auth/internal/domain"
	"dado-auth/internal/email"
	"dado-auth/internal/repository"
)

const (
	resetCodeTTL = 600 * time.Second
	resetCodeMin = 100000
	resetCodeMax = 999999

	// Una reserva más reciente que esto nunca se reclama: su dueño puede estar
	// aún entre la reserva y el guardado de su registro.
	usernameReservationGrace = 5 * time.Minute
)

// Prefijos de las claves del AttemptLimiter, una por tipo de verificación.
const (
	attemptRegistration = "registration:"
	attemptMFA          = "mfa:"
	attemptReset        = "reset:"
)

// AuthService orquesta registro, verificación MFA, login y recuperación de contraseña.
type AuthService struct {
	logger       *zap.Logger
	accounts     repository.AccountRepository
	pending      repository.PendingAccountRepository
	resets       repository.PasswordResetRepository
	usernames    repository.UsernameRepository
	hasher       PasswordHasher
	otp          OTPProvider
	emailSender  email.Sender
	attempts     AttemptLimiter
	resetLimiter ResetRateLimiter
	now          func() time.Time
}

func NewAuthService(
	logger *zap.Logger,
	accounts repository.AccountRepository,
	pending repository.PendingAccountRepository,
	resets repository.PasswordResetRepository,
	usernames repository.UsernameRepository,
	hasher PasswordHasher,
	otp OTPProvider,
	emailSender email.Sender,
	attempts AttemptLimiter,
	resetLimiter ResetRateLimiter,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(passwordHashCost)
	}
	if otp == nil {
		otp = NewTOTPProvider("")
	}
	if attempts == nil {
		attempts = NewMemoryAttemptLimiter(5, 15*time.Minute)
	}
	if resetLimiter == nil {
		resetLimiter = NewResetRateLimiter(10*time.Minute, 3)
	}
	return &AuthService{
		logger:       logger,
		accounts:     accounts,
		pending:      pending,
		resets:       resets,
		usernames:    usernames,
		hasher:       hasher,
		otp:          otp,
		emailSender:  emailSender,
		attempts:     attempts,
		resetLimiter: resetLimiter,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// LoginResult indica si falta el segundo factor; Account sólo es útil cuando no.
type LoginResult struct {
	Account     domain.Account
	RequiresMFA bool
}

// CheckUsername es consultivo: la unicidad real se impone al reservar el nombre.
func (s *AuthService) CheckUsername(ctx context.Context, username string) (bool, error) {
	taken, err := s.usernameInUse(ctx, username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (s *AuthService) CheckEmail(ctx context.Context, emailAddr string) (bool, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return false, ErrInvalidEmail
	}
	_, err := s.accounts.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup account: %w", err)
	}
	return false, nil
}

// Register guarda un PendingAccount y devuelve la URI otpauth:// para el QR de alta.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (string, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return "", ErrInvalidEmail
	}
	if !ValidateUsername(input.Username) {
		return "", ErrInvalidUsername
	}
	if !ValidatePassword(input.Password) {
		return "", ErrWeakPassword
	}

	if _, err := s.accounts.GetByEmail(ctx, emailAddr); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("lookup account: %w", err)
	}

	taken, err := s.accounts.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return "", fmt.Errorf("lookup username: %w", err)
	}
	if taken {
		return "", ErrUsernameTaken
	}

	previous, err := s.pending.GetByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("lookup pending account: %w", err)
	}
	hadPrevious := err == nil
	keepsUsername := hadPrevious && previous.Username == input.Username

	secret, uri, err := s.otp.Generate(input.Username)
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	if err := s.reserveUsername(ctx, input.Username, emailAddr); err != nil {
		return "", err
	}

	pending := domain.PendingAccount{
		Email:        emailAddr,
		Username:     input.Username,
		PasswordHash: hash,
		MFASecret:    secret,
		Verified:     false,
		CreatedAt:    s.now(),
	}
	if err := s.pending.Save(ctx, pending); err != nil {
		if !keepsUsername {
			s.releaseUsername(ctx, input.Username, emailAddr)
		}
		return "", fmt.Errorf("save pending account: %w", err)
	}

	if hadPrevious && !keepsUsername {
		s.releaseUsername(ctx, previous.Username, emailAddr)
	}
	return uri, nil
}

// VerifyRegistration valida el primer código TOTP y promueve el registro a cuenta activa.
func (s *AuthService) VerifyRegistration(ctx context.Context, emailAddr, token string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || token == "" {
		return ErrMissingFields
	}

	pending, err := s.pending.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup pending account: %w", err)
	}

	key := attemptRegistration + emailAddr
	if err := s.consumeAttempt(ctx, key); err != nil {
		return err
	}
	if !s.otp.Validate(token, pending.MFASecret, s.now()) {
		return ErrInvalidCode
	}

	// La cuenta destino es la fuente de verdad: crearla es idempotente y borrar el pendiente es limpieza.
	account := pending.Promote()
	if err := s.accounts.Create(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return fmt.Errorf("create account: %w", err)
		}
		existing, err := s.accounts.GetByEmail(ctx, emailAddr)
		if err != nil {
			return fmt.Errorf("lookup account: %w", err)
		}
		if existing.MFASecret != pending.MFASecret {
			return ErrEmailTaken
		}
	}

	s.resetAttempts(ctx, key)
	if err := s.pending.Delete(ctx, emailAddr); err != nil {
		s.logger.Warn("delete pending account failed", zap.Error(err), zap.String("email", emailAddr))
	}
	return nil
}

// Login comprueba la contraseña. Con MFA activo no emite sesión y pide el segundo factor.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return LoginResult{}, ErrMissingFields
	}

	account, err := s.getAccount(ctx, emailAddr)
	if err != nil {
		return LoginResult{}, err
	}
	if !account.Verified {
		return LoginResult{}, ErrAccountNotVerified
	}
	if !s.hasher.Compare(account.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if account.MFAEnabled {
		return LoginResult{RequiresMFA: true}, nil
	}
	return LoginResult{Account: account}, nil
}

// VerifyMFA valida el segundo factor. El llamador emite la sesión si no hay error.
func (s *AuthService) VerifyMFA(ctx context.Context, emailAddr, token string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || token == "" {
		return domain.Account{}, ErrMissingFields
	}

	account, err := s.getAccount(ctx, emailAddr)
	if err != nil {
		return domain.Account{}, err
	}
	if account.MFASecret == "" {
		return domain.Account{}, ErrMFANotConfigured
	}

	key := attemptMFA + emailAddr
	if err := s.consumeAttempt(ctx, key); err != nil {
		return domain.Account{}, err
	}
	if !s.otp.Validate(token, account.MFASecret, s.now()) {
		return domain.Account{}, ErrInvalidCode
	}
	s.resetAttempts(ctx, key)
	return account, nil
}

// ForgotPassword genera un código de 6 dígitos válido 10 minutos y lo envía por correo.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) (time.Time, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return time.Time{}, ErrInvalidEmail
	}
	if _, err := s.getAccount(ctx, emailAddr); err != nil {
		return time.Time{}, err
	}
	if s.resetLimiter != nil && !s.resetLimiter.Allow(ctx, emailAddr) {
		return time.Time{}, ErrRateLimited
	}

	code, err := generateResetCode()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate reset code: %w", err)
	}
	expiresAt := s.now().Add(resetCodeTTL)
	if err := s.resets.Save(ctx, emailAddr, domain.NewPasswordReset(code, expiresAt)); err != nil {
		return time.Time{}, fmt.Errorf("save password reset: %w", err)
	}
	s.resetAttempts(ctx, attemptReset+emailAddr)

	if s.emailSender == nil {
		return time.Time{}, ErrEmailSendFailure
	}
	if err := s.emailSender.SendPasswordResetCode(ctx, emailAddr, code, expiresAt); err != nil {
		s.logger.Warn("send password reset code failed", zap.Error(err), zap.String("email", emailAddr))
		return time.Time{}, ErrEmailSendFailure
	}
	return expiresAt, nil
}

// ResetPassword cambia la contraseña si el código coincide y no ha expirado.
// Código erróneo, expirado o inexistente comparten ErrInvalidOrExpired.
func (s *AuthService) ResetPassword(ctx context.Context, emailAddr, code, newPassword string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if !ValidatePassword(newPassword) {
		return ErrWeakPassword
	}

	key := attemptReset + emailAddr
	if err := s.consumeAttempt(ctx, key); err != nil {
		return err
	}

	reset, err := s.resets.Get(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return fmt.Errorf("lookup password reset: %w", err)
	}
	if reset.Code != code || reset.Expired(s.now()) {
		return ErrInvalidOrExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, emailAddr, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.resetAttempts(ctx, key)
	if err := s.resets.Delete(ctx, emailAddr); err != nil {
		s.logger.Warn("delete password reset failed", zap.Error(err), zap.String("email", emailAddr))
	}
	return nil
}

// GetProfile devuelve la cuenta del usuario autenticado.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (domain.Account, error) {
	return s.getAccount(ctx, normalizeEmail(userID))
}

// UpdateUsername cambia el nombre de usuario de la cuenta autenticada.
func (s *AuthService) UpdateUsername(ctx context.Context, userID, newUsername string) (string, error) {
	if !ValidateUsername(newUsername) {
		return "", ErrInvalidUsername
	}
	emailAddr := normalizeEmail(userID)
	account, err := s.getAccount(ctx, emailAddr)
	if err != nil {
		return "", err
	}

	taken, err := s.usernameInUse(ctx, newUsername)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrUsernameTaken
	}
	if err := s.reserveUsername(ctx, newUsername, emailAddr); err != nil {
		return "", err
	}

	if err := s.accounts.UpdateUsername(ctx, emailAddr, newUsername); err != nil {
		s.releaseUsername(ctx, newUsername, emailAddr)
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("update username: %w", err)
	}
	s.releaseUsername(ctx, account.Username, emailAddr)
	return newUsername, nil
}

func (s *AuthService) getAccount(ctx context.Context, emailAddr string) (domain.Account, error) {
	if emailAddr == "" {
		return domain.Account{}, ErrNotFound
	}
	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}

func (s *AuthService) usernameInUse(ctx context.Context, username string) (bool, error) {
	inAccounts, err := s.accounts.ExistsByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("lookup username: %w", err)
	}
	if inAccounts {
		return true, nil
	}
	inPending, err := s.pending.ExistsByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("lookup username: %w", err)
	}
	return inPending, nil
}

// reserveUsername reclama el nombre para owner. Una reserva ajena sólo se reclama
// si supera el periodo de gracia y su dueño ya no usa ese nombre; el borrado es
// condicional al dueño leído, así que de dos reclamantes sólo uno la obtiene.
func (s *AuthService) reserveUsername(ctx context.Context, username, owner string) error {
	reservation := domain.UsernameReservation{Username: username, Owner: owner, CreatedAt: s.now()}
	err := s.usernames.Reserve(ctx, reservation)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrAlreadyExists) {
		return fmt.Errorf("reserve username: %w", err)
	}

	held, err := s.usernames.Get(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("lookup username reservation: %w", err)
	case held.Owner == owner:
		return nil
	case s.now().Sub(held.CreatedAt) < usernameReservationGrace:
		return ErrUsernameTaken
	default:
		inUse, err := s.ownerStillUses(ctx, held)
		if err != nil {
			return err
		}
		if inUse {
			return ErrUsernameTaken
		}
		if _, err := s.usernames.ReleaseIfOwner(ctx, username, held.Owner); err != nil {
			return fmt.Errorf("release stale username: %w", err)
		}
	}

	if err := s.usernames.Reserve(ctx, reservation); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("reserve username: %w", err)
	}
	return nil
}

func (s *AuthService) ownerStillUses(ctx context.Context, held domain.UsernameReservation) (bool, error) {
	account, err := s.accounts.GetByEmail(ctx, held.Owner)
	switch {
	case err == nil:
		if account.Username == held.Username {
			return true, nil
		}
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("lookup account: %w", err)
	}

	pending, err := s.pending.GetByEmail(ctx, held.Owner)
	switch {
	case err == nil:
		return pending.Username == held.Username, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup pending account: %w", err)
	}
}

// releaseUsername libera la reserva sólo si pertenece a owner. Los fallos se registran.
func (s *AuthService) releaseUsername(ctx context.Context, username, owner string) {
	if _, err := s.usernames.ReleaseIfOwner(ctx, username, owner); err != nil {
		s.logger.Warn("release username failed", zap.Error(err), zap.String("username", username))
	}
}

// consumeAttempt cuenta el intento antes de verificar, así una ráfaga en paralelo no
// supera el cupo. Si el limitador falla se continúa sin él.
func (s *AuthService) consumeAttempt(ctx context.Context, key string) error {
	err := s.attempts.Consume(ctx, key)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTooManyAttempts) {
		return ErrTooManyAttempts
	}
	s.logger.Warn("attempt limiter unavailable", zap.Error(err))
	return nil
}

func (s *AuthService) resetAttempts(ctx context.Context, key string) {
	if err := s.attempts.Reset(ctx, key); err != nil {
		s.logger.Warn("attempt limiter reset failed", zap.Error(err))
	}
}

// generateResetCode devuelve un entero aleatorio en [100000, 999999].
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(resetCodeMax-resetCodeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+resetCodeMin, 10), nil
}
