package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"academy-platform/internal/isolation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrEmailTaken         = errors.New("email already registered in this academy")
)

// dummyHash keeps the cost of a failed lookup close to a failed compare.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// Service looks up and creates users in the bound tenant.
type Service struct {
	repo  Repository
	cost  int
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost, clock: time.Now}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

type CreateUserInput struct {
	Email    string
	Name     string
	Role     string
	Password string
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" || in.Role == "" {
		return User{}, ErrInvalidArgument
	}
	existing, err := s.repo.Find(ctx, isolation.Filter{"email": email}, isolation.Limit(1))
	if err != nil {
		return User{}, err
	}
	if len(existing) > 0 {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.Insert(ctx, User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	})
	if errors.Is(err, isolation.ErrDuplicate) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

// Authenticate checks email and password within the bound tenant. A user of
// another academy with the same email does not match.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	users, err := s.repo.Find(ctx, isolation.Filter{"email": normalizeEmail(email)}, isolation.Limit(1))
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	u := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.Get(ctx, id)
}
