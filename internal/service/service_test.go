package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/inkwell/internal/config"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/repository"
	"github.com/prn-tf/inkwell/internal/store/memory"
)

var testAuth = config.AuthConfig{
	SessionTTL:        time.Hour,
	SlidingSessions:   true,
	BcryptCost:        bcrypt.MinCost,
	MinPasswordLength: 8,
	LockTTL:           time.Second,
}

func newRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	driver := memory.NewDriver(zerolog.Nop())
	catalog := domain.NewCatalog()
	require.NoError(t, repository.EnsureCollections(context.Background(), driver, catalog, zerolog.Nop()))
	return repository.NewRepositories(repository.NewBackend(driver, catalog, repository.DefaultSettings(), zerolog.Nop()))
}

func seedUser(t *testing.T, repos *repository.Repositories, email string, role domain.Role) *domain.User {
	t.Helper()
	u := domain.NewUser(email, "hash", "Grace", "Hopper")
	u.Role = role
	created, err := repos.User.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func seedPublished(t *testing.T, repos *repository.Repositories, author *domain.User, title string) *domain.Post {
	t.Helper()
	p := domain.NewPost(author.ID, title, Slugify(title), "body")
	p.Status = domain.PostStatusPublished
	created, err := repos.Post.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

// =============================================================================
// Mocks
// =============================================================================

// MockCache is a testify mock of repository.Cache.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ repository.Cache = (*MockCache)(nil)

// MockLocker is a testify mock of lock.Locker.
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryDelay)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) Release(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  Go 1.24: what's new?  ", "go-1-24-what-s-new"},
		{"Crème brûlée", "creme-brulee"},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}
