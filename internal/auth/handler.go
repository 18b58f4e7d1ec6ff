package auth

import (
	"errors"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/redmonkez12/go-todo-api/internal/httputil"
	"github.com/redmonkez12/go-todo-api/internal/logging"
	"github.com/redmonkez12/go-todo-api/internal/ratelimit"
	"github.com/redmonkez12/go-todo-api/internal/user"
)

const forgotPasswordMessage = "If your email is registered, you will receive an OTP"

// Handler contains HTTP handlers for the /users endpoints
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,min=8,bcrypt"`
}

// LoginRequest carries the OAuth2 password-form fields. Username holds the email.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest represents the OTP check request
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,bcrypt"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account with email, username and password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} user.User
// @Failure      400 {object} httputil.ErrorResponse "Email or username already in use"
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /users/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.rateLimited(w, r, "register") {
		return
	}

	var req RegisterRequest
	if !httputil.Bind(w, r, &req) {
		return
	}

	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), RegisterInput(req))
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			logger.Warn("registration failed: email already registered")
			httputil.RespondErrorWithCode(w, "Email already registered", httputil.CodeEmailAlreadyExists, http.StatusBadRequest)
		case errors.Is(err, ErrUsernameTaken):
			logger.Warn("registration failed: username already taken")
			httputil.RespondErrorWithCode(w, "Username already taken", httputil.CodeUsernameTaken, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordTooLong):
			respondPasswordTooLong(w, "password")
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			httputil.RespondInternalError(w)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)
	httputil.RespondJSON(w, newUser, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Exchange email and password for a bearer token. The email goes in the username field.
// @Tags         users
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username formData string true "Email address"
// @Param        password formData string true "Password"
// @Success      200 {object} AccessToken
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /users/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "login") {
		return
	}

	req, err := decodeLogin(r)
	if err != nil {
		httputil.RespondBindError(w, r, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			w.Header().Set("WWW-Authenticate", "Bearer")
			httputil.RespondErrorWithCode(w, "Incorrect email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		httputil.RespondInternalError(w)
		return
	}

	httputil.RespondJSON(w, token, http.StatusOK)
}

// decodeLogin reads the form body, or JSON when the client sends JSON.
func decodeLogin(r *http.Request) (*LoginRequest, error) {
	req := new(LoginRequest)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := httputil.DecodeJSON(r, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errors.Join(httputil.ErrInvalidBody, err)
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")

	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Me returns the authenticated user
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} user.User
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      403 {object} httputil.ErrorResponse "Inactive user"
// @Router       /users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "not authenticated", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	httputil.RespondJSON(w, current, http.StatusOK)
}

// ForgotPassword starts the password reset flow
// @Summary      Request a password reset code
// @Description  Emails a 6-digit code when the address is registered. The response is the same either way.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Router       /users/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.Bind(w, r, &req) {
		return
	}

	h.service.RequestPasswordReset(r.Context(), req.Email)

	// Always the same answer, registered or not
	httputil.RespondMessage(w, forgotPasswordMessage, http.StatusOK)
}

// VerifyOTP checks a password reset code
// @Summary      Verify a password reset code
// @Description  Checks the code without using it up
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body VerifyOTPRequest true "Email and code"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired OTP"
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /users/verify-otp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "verify-otp") {
		return
	}

	var req VerifyOTPRequest
	if !httputil.Bind(w, r, &req) {
		return
	}

	if err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			logger.Warn("otp verification failed")
			httputil.RespondErrorWithCode(w, "Invalid or expired OTP", httputil.CodeInvalidOTP, http.StatusBadRequest)
			return
		}
		logger.Error("otp verification failed: internal error", "error", err.Error())
		httputil.RespondInternalError(w)
		return
	}

	httputil.RespondMessage(w, "OTP verified successfully", http.StatusOK)
}

// ResetPassword sets a new password using a reset code
// @Summary      Reset password
// @Description  Consumes the code and replaces the password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Email, code and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired OTP"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /users/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "reset-password") {
		return
	}

	var req ResetPasswordRequest
	if !httputil.Bind(w, r, &req) {
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidOTP):
			logger.Warn("password reset failed: invalid or expired otp")
			httputil.RespondErrorWithCode(w, "Invalid or expired OTP", httputil.CodeInvalidOTP, http.StatusBadRequest)
		case errors.Is(err, user.ErrNotFound):
			logger.Warn("password reset failed: user not found")
			httputil.RespondErrorWithCode(w, "User not found", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrPasswordTooLong):
			respondPasswordTooLong(w, "new_password")
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			httputil.RespondInternalError(w)
		}
		return
	}

	logger.Info("password reset successfully")
	httputil.RespondMessage(w, "Password reset successfully", http.StatusOK)
}

func respondPasswordTooLong(w http.ResponseWriter, field string) {
	httputil.RespondValidationError(w, httputil.ValidationErrors{{
		Field:   field,
		Tag:     "bcrypt",
		Message: field + " must be at most 72 bytes long",
	}})
}

// rateLimited counts the request against the caller's IP and answers 429 once
// the window is used up. Limiter failures let the request through.
func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return false
}

// getClientIP returns the caller's address. chi's RealIP middleware has
// already applied X-Forwarded-For and X-Real-IP to RemoteAddr.
func getClientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return strings.TrimSpace(ip)
}
