package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/store"
)

// fakeUserStore is a minimal in-memory store.UserStore for authenticator tests.
type fakeUserStore struct {
	users map[uuid.UUID]*domain.User
}

func newFakeUserStore(ids ...uuid.UUID) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
	for _, id := range ids {
		s.users[id] = &domain.User{ID: id, Email: id.String() + "@example.com"}
	}
	return s
}

func (s *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func TestTokenAuthenticator(t *testing.T) {
	ctx := context.Background()
	jwtService, err := NewJWTService(testAuthConfig())
	require.NoError(t, err)

	userID := uuid.New()
	authenticator := NewTokenAuthenticator(jwtService, newFakeUserStore(userID))

	t.Run("valid token resolves identity", func(t *testing.T) {
		token, err := jwtService.GenerateToken(ctx, userID)
		require.NoError(t, err)

		got, err := authenticator.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := authenticator.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := authenticator.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token for deleted user", func(t *testing.T) {
		token, err := jwtService.GenerateToken(ctx, uuid.New())
		require.NoError(t, err)

		_, err = authenticator.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnknownIdentity)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"empty header", "", "", true},
		{"wrong scheme", "Basic abc", "", true},
		{"missing token", "Bearer ", "", true},
		{"bare token", "abc.def.ghi", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
