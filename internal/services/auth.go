package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/moneytrail/apiserver/config"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/mail"
	"github.com/moneytrail/apiserver/internal/store"
	"github.com/moneytrail/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeTTL is how long a registration code stays valid.
	CodeTTL = 10 * time.Minute
	// CodeCooldown is the minimum gap between two codes sent to the same email.
	CodeCooldown = 60 * time.Second
	// MinPasswordLength is the shortest password accepted at registration.
	MinPasswordLength = 8

	defaultTokenTTL = 72 * time.Hour
)

// RegisterInput carries the account details submitted before a code is sent.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// VerifyInput completes a registration.
type VerifyInput struct {
	Email           string
	Code            string
	FullName        string
	Password        string
	ProfileImageURL string
}

// ProfileInput updates the mutable parts of a user profile. Nil fields are left alone.
type ProfileInput struct {
	FullName        *string
	ProfileImageURL *string
}

// AuthService runs the registration, login and session flows.
type AuthService struct {
	users    UserRepository
	codes    CodeRepository
	mailer   mail.Sender
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	newCode  func() (string, error)
	logger   *log.Logger
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithAuthClock replaces time.Now, mostly for tests.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() (string, error)) AuthOption {
	return func(s *AuthService) { s.newCode = gen }
}

func NewAuthService(users UserRepository, codes CodeRepository, mailer mail.Sender, cfg config.AuthConfig, logger *log.Logger, opts ...AuthOption) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	s := &AuthService{
		users:    users,
		codes:    codes,
		mailer:   mailer,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: ttl,
		now:      time.Now,
		newCode:  randomCode,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCode sends a fresh registration code to an unregistered email.
func (s *AuthService) RequestCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.ensureUnregistered(ctx, email); err != nil {
		return err
	}

	previous, err := s.codes.Get(ctx, email)
	switch {
	case err == nil:
		if err := s.checkCooldown(previous); err != nil {
			return err
		}
		return s.issueCode(ctx, email, &previous)
	case errors.Is(err, store.ErrNotFound):
		return s.issueCode(ctx, email, nil)
	default:
		return fmt.Errorf("load code: %w", err)
	}
}

// Register validates the account details up front and then sends a code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return validationf("all fields are required")
	}
	if len(in.Password) < MinPasswordLength {
		return validationf("password must be at least %d characters", MinPasswordLength)
	}
	return s.RequestCode(ctx, in.Email)
}

// ResendCode replaces a pending code, subject to the same cooldown.
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	previous, err := s.codes.Get(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("no pending code for this email")
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if err := s.checkCooldown(previous); err != nil {
		return err
	}
	return s.issueCode(ctx, email, &previous)
}

// VerifyRegistration checks the code and creates the account. It returns the
// new user together with a session token.
func (s *AuthService) VerifyRegistration(ctx context.Context, in VerifyInput) (types.User, string, error) {
	fullName := strings.TrimSpace(in.FullName)
	code := strings.TrimSpace(in.Code)
	if fullName == "" || strings.TrimSpace(in.Email) == "" || code == "" || in.Password == "" {
		return types.User{}, "", validationf("all fields are required")
	}
	if len(in.Password) < MinPasswordLength {
		return types.User{}, "", validationf("password must be at least %d characters", MinPasswordLength)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return types.User{}, "", err
	}

	pending, err := s.codes.Get(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", notFound("no pending code for this email")
	}
	if err != nil {
		return types.User{}, "", fmt.Errorf("load code: %w", err)
	}
	if pending.Expired(s.now()) {
		return types.User{}, "", validationf("code has expired")
	}
	if subtle.ConstantTimeCompare([]byte(pending.Code), []byte(code)) != 1 {
		return types.User{}, "", validationf("invalid code")
	}
	if err := s.ensureUnregistered(ctx, email); err != nil {
		return types.User{}, "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		FullName:        fullName,
		Email:           email,
		PasswordHash:    string(hashed),
		ProfileImageURL: strings.TrimSpace(in.ProfileImageURL),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return types.User{}, "", validationf("user already exists")
	}
	if err != nil {
		return types.User{}, "", fmt.Errorf("create user: %w", err)
	}

	if err := s.codes.Delete(ctx, email); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to delete used code", log.FieldEmail, email, log.FieldError, err)
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	s.logger.InfoContext(ctx, "user registered", log.FieldUserID, user.ID, log.FieldOperation, log.OpRegister)
	return user, token, nil
}

// Login checks the password and returns a session token. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return types.User{}, "", validationf("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.WarnContext(ctx, "login failed", log.FieldOperation, log.OpLogin)
		return types.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return types.User{}, "", fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "login failed", log.FieldOperation, log.OpLogin, log.FieldUserID, user.ID)
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to its user. Every failure is ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.User, error) {
	subject, err := s.parseTokenSubject(token)
	if err != nil {
		return types.User{}, ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidID) {
			s.logger.ErrorContext(ctx, "failed to resolve token subject", log.FieldError, err)
		}
		return types.User{}, ErrUnauthorized
	}
	return user, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
		return types.User{}, notFound("user not found")
	}
	return user, err
}

// UpdateProfile changes the caller's display name or profile image.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (types.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return types.User{}, validationf("full name cannot be empty")
		}
		user.FullName = name
	}
	if in.ProfileImageURL != nil {
		user.ProfileImageURL = strings.TrimSpace(*in.ProfileImageURL)
	}

	updated, err := s.users.Update(ctx, user)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, notFound("user not found")
	}
	return updated, err
}

func (s *AuthService) ensureUnregistered(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return validationf("user already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load user: %w", err)
	}
	return nil
}

func (s *AuthService) checkCooldown(code types.OneTimeCode) error {
	if s.now().Sub(code.LastSentAt) < CodeCooldown {
		return ErrCooldown
	}
	return nil
}

// issueCode stores a new code and mails it. If delivery fails the previous
// code, if any, is put back so the failed request leaves nothing behind.
func (s *AuthService) issueCode(ctx context.Context, email string, previous *types.OneTimeCode) error {
	value, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	now := s.now()
	code := types.OneTimeCode{
		Email:      email,
		Code:       value,
		ExpiresAt:  now.Add(CodeTTL),
		LastSentAt: now,
	}
	if err := s.codes.Upsert(ctx, code); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	msg, err := mail.CodeMessage(email, value, CodeTTL)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		var rollbackErr error
		if previous != nil {
			rollbackErr = s.codes.Upsert(ctx, *previous)
		} else {
			rollbackErr = s.codes.Delete(ctx, email)
		}
		if rollbackErr != nil {
			s.logger.WarnContext(ctx, "failed to roll back verification code, cooldown stays in place",
				log.FieldEmail, email,
				log.FieldOperation, log.OpSendCode,
				log.FieldError, rollbackErr,
			)
		}
		return fmt.Errorf("send code: %w", err)
	}

	s.logger.InfoContext(ctx, "verification code sent", log.FieldEmail, email, log.FieldOperation, log.OpSendCode)
	return nil
}

func (s *AuthService) issueToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) parseTokenSubject(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", validationf("email is required")
	}
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationf("invalid email address")
	}
	return email, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
