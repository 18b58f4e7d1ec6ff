package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-todo-api/internal/database"
	"github.com/redmonkez12/go-todo-api/internal/logging"
	"github.com/redmonkez12/go-todo-api/internal/ratelimit"
	"github.com/redmonkez12/go-todo-api/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
)

// EmailSender delivers password reset codes
type EmailSender interface {
	SendPasswordResetOTP(ctx context.Context, toEmail, code string) error
}

// Options holds the tunables of the auth flows
type Options struct {
	AccessTokenDuration time.Duration
	BcryptCost          int
	EmailSendTimeout    time.Duration
}

// Service handles authentication business logic
type Service struct {
	db           *bun.DB
	userRepo     *user.Repository
	otpRepo      *OTPRepository
	tokenService TokenService
	emailSender  EmailSender
	limiter      *ratelimit.Limiter
	logger       *logging.Logger
	opts         Options
}

func NewService(
	db *bun.DB,
	userRepo *user.Repository,
	otpRepo *OTPRepository,
	tokenService TokenService,
	emailSender EmailSender,
	limiter *ratelimit.Limiter,
	logger *logging.Logger,
	opts Options,
) *Service {
	return &Service{
		db:           db,
		userRepo:     userRepo,
		otpRepo:      otpRepo,
		tokenService: tokenService,
		emailSender:  emailSender,
		limiter:      limiter,
		logger:       logger,
		opts:         opts,
	}
}

// RegisterInput is the data needed to open an account
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// AccessToken is returned by a successful login
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// Register creates a new active account. Email uniqueness is checked before
// username uniqueness; races between concurrent registrations are settled by
// the database constraints.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	if _, err := s.userRepo.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	passwordHash, err := HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.userRepo.Create(ctx, user.CreateParams{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: passwordHash,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, user.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

// Login authenticates a user by email and password and issues an access token.
// Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !CheckPassword(password, existingUser.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenService.Issue(existingUser.Email, s.opts.AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AccessToken{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.opts.AccessTokenDuration.Seconds()),
	}, nil
}

// RequestPasswordReset issues a reset code for a registered email and mails
// it in the background. It never reports whether the email is registered;
// failures are logged only.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) {
	logger := s.loggerFor(ctx)

	if _, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			logger.Error("failed to get user for password reset", "error", err.Error())
		}
		return
	}

	free, err := s.limiter.AcquireEmailCooldown(ctx, email)
	if err != nil {
		logger.Error("failed to check reset cooldown", "error", err.Error())
	} else if !free {
		logger.Warn("password reset requested again during cooldown")
		return
	}

	code, err := s.otpRepo.Issue(ctx, email)
	if err != nil {
		logger.Error("failed to issue password reset code", "error", err.Error())
		// No code was stored, so the next request may try again
		if err := s.limiter.ReleaseEmailCooldown(ctx, email); err != nil {
			logger.Error("failed to release reset cooldown", "error", err.Error())
		}
		return
	}

	// The request context ends with the response; the send gets its own.
	go func() {
		sendCtx := logging.WithContext(context.Background(), logger)
		if s.opts.EmailSendTimeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(sendCtx, s.opts.EmailSendTimeout)
			defer cancel()
		}
		if err := s.emailSender.SendPasswordResetOTP(sendCtx, email, code); err != nil {
			logger.Warn("failed to send password reset email", "error", err.Error())
		}
	}()
}

// loggerFor returns the request logger carried by ctx, or the service logger
// outside a request.
func (s *Service) loggerFor(ctx context.Context) *logging.Logger {
	if logger, ok := ctx.Value(logging.LoggerContextKey).(*logging.Logger); ok {
		return logger
	}
	return s.logger
}

// VerifyOTP checks a reset code without consuming it
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	ok, err := s.otpRepo.Check(ctx, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOTP
	}
	return nil
}

// ResetPassword consumes a reset code and replaces the account password.
// Both writes commit together or not at all.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	passwordHash, err := HashPassword(newPassword, s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return database.WithTx(ctx, s.db, func(ctx context.Context) error {
		consumed, err := s.otpRepo.Consume(ctx, email, code)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrInvalidOTP
		}

		existingUser, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}

		return s.userRepo.UpdatePassword(ctx, existingUser.ID, passwordHash)
	})
}
