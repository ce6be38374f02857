package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/phillip/event-manager-go/models"
	"github.com/phillip/event-manager-go/repository"
)

const (
	localIssuer = "event-manager"
	BcryptCost  = 12
)

type localClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Local keeps accounts in the user repository and issues HS256 tokens.
type Local struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewLocal(users repository.UserRepository, secret string, ttl time.Duration) *Local {
	return &Local{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   BcryptCost,
		now:    time.Now,
	}
}

// WithCost overrides the bcrypt cost, mostly so tests stay fast.
func (l *Local) WithCost(cost int) *Local {
	l.cost = cost
	return l
}

func (l *Local) SignUp(ctx context.Context, email, password, displayName string) (Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(email),
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    l.now().UTC(),
	}
	if err := l.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Account{}, ErrEmailExists
		}
		return Account{}, err
	}

	return Account{UID: user.ID.Hex(), Email: user.Email, DisplayName: user.DisplayName}, nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := l.users.FindByEmail(ctx, strings.ToLower(email))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, err := l.IssueToken(models.Principal{UID: user.ID.Hex(), Email: user.Email, DisplayName: user.DisplayName})
	if err != nil {
		return Session{}, err
	}
	return Session{IDToken: token, ExpiresIn: int64(l.ttl / time.Second)}, nil
}

func (l *Local) IssueToken(p models.Principal) (string, error) {
	if p.UID == "" {
		return "", ErrInvalidToken
	}

	now := l.now()
	claims := &localClaims{
		Email: p.Email,
		Name:  p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UID,
			Issuer:    localIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(l.secret)
}

func (l *Local) Verify(_ context.Context, rawToken string) (models.Principal, error) {
	if strings.TrimSpace(rawToken) == "" {
		return models.Principal{}, ErrMissingToken
	}

	var claims localClaims
	parsed, err := jwt.ParseWithClaims(rawToken, &claims, func(token *jwt.Token) (interface{}, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return models.Principal{}, ErrInvalidToken
	}

	return models.Principal{UID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}
