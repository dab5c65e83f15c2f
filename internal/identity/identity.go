package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email address already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidSignUp      = errors.New("invalid sign up request")
)

const (
	userIdClaim = "user-id"
	expClaim    = "exp"
)

type SignUpParams struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	RequestedRole string `json:"role,omitempty"`
}

// Service authenticates accounts against the repository and issues
// session tokens.
type Service struct {
	db         database.ChurchRepository
	signingKey []byte
	ttl        time.Duration
	cost       int
	now        func() time.Time
}

func NewService(db database.ChurchRepository, signingKey []byte, ttl time.Duration) *Service {
	return &Service{
		db:         db,
		signingKey: signingKey,
		ttl:        ttl,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
	}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// SignUp creates a member account. The requested role is never honored;
// elevated roles are granted through SetRole only.
func (s *Service) SignUp(params SignUpParams) (types.User, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return types.User{}, fmt.Errorf("%w: email: %v", ErrInvalidSignUp, err)
	}
	if params.Password == "" {
		return types.User{}, fmt.Errorf("%w: empty password", ErrInvalidSignUp)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.cost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.db.CreateAccount(database.CreateAccountParams{
		EmailAddress: email,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		PasswordHash: string(hash),
		Role:         types.RoleMember,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("create account: %w", err)
	}

	return ToUser(account), nil
}

// SignIn verifies the credentials and returns the account with a signed
// session token.
func (s *Service) SignIn(email, password string) (types.User, string, error) {
	account, err := s.db.GetAccountByEmail(strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", fmt.Errorf("get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(account.Id)
	if err != nil {
		return types.User{}, "", err
	}

	return ToUser(account), token, nil
}

func (s *Service) IssueToken(userId int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    s.now().Add(s.ttl).Unix(),
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns the user id it carries.
func (s *Service) ParseToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("%w: claims", ErrInvalidToken)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: user id claim", ErrInvalidToken)
	}

	return int(userId), nil
}

// Role returns the stored role for the account, falling back to member
// when no role record exists.
func (s *Service) Role(accountId int) (string, error) {
	role, err := s.db.GetRole(accountId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RoleMember, nil
		}
		return "", fmt.Errorf("get role: %w", err)
	}
	if role == "" {
		return types.RoleMember, nil
	}
	return role, nil
}

func ToUser(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		EmailAddress: u.EmailAddress,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
