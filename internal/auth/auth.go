package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"shortvid-saver/pkg/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// Service handles authentication and authorization
type Service struct {
	storage     models.Storage
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      zerolog.Logger
}

// NewService creates a new authentication service
func NewService(storage models.Storage, jwtSecret string, tokenExpiryHours int) *Service {
	if tokenExpiryHours <= 0 {
		tokenExpiryHours = 24
	}
	return &Service{
		storage:     storage,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: time.Duration(tokenExpiryHours) * time.Hour,
		logger:      zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// SetLogger sets the logger for the service
func (s *Service) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// EnsureAdminUser creates the admin account when it does not exist yet
func (s *Service) EnsureAdminUser(password string) error {
	if existing, _ := s.storage.GetUserByUsername("admin"); existing != nil {
		return nil
	}
	_, err := s.CreateUser("admin", password, "admin")
	return err
}

// CreateUser creates a new user with a bcrypt-hashed password
func (s *Service) CreateUser(username, password, role string) (*models.User, error) {
	if existing, _ := s.storage.GetUserByUsername(username); existing != nil {
		return nil, errors.New("user already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: string(hashed),
		Role:     role,
		Active:   true,
	}

	if err := s.storage.SaveUser(user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", username).Msg("User created")
	return user, nil
}

// Authenticate verifies credentials and returns a signed JWT plus a
// persisted session
func (s *Service) Authenticate(username, password string) (string, *models.User, error) {
	user, err := s.storage.GetUserByUsername(username)
	if err != nil || user == nil {
		return "", nil, ErrUserNotFound
	}

	if !user.Active {
		return "", nil, errors.New("user account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		Active:    true,
	}
	if err := s.storage.SaveSession(session); err != nil {
		return "", nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.storage.SaveUser(user); err != nil {
		s.logger.Error().Err(err).Msg("Error updating last login")
	}

	s.logger.Info().Str("username", username).Msg("User authenticated")
	return token, user, nil
}

// ValidateToken validates a JWT and its backing session
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	username, ok := claims["username"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	session, err := s.storage.GetSessionByToken(tokenString)
	if err != nil || session == nil {
		return nil, ErrInvalidToken
	}
	if time.Now().After(session.ExpiresAt) {
		s.storage.InvalidateSession(session.ID)
		return nil, ErrTokenExpired
	}

	user, err := s.storage.GetUserByUsername(username)
	if err != nil || user == nil || !user.Active {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// Logout invalidates the session backing a token
func (s *Service) Logout(tokenString string) error {
	session, err := s.storage.GetSessionByToken(tokenString)
	if err != nil || session == nil {
		return ErrInvalidToken
	}
	return s.storage.InvalidateSession(session.ID)
}

// generateToken generates a signed JWT for a user
func (s *Service) generateToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.tokenExpiry)
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
