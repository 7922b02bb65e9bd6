package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	refreshTokens       map[string]*models.RefreshToken
	refreshTokenErr     error
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	updatePasswordErr   error
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, errors.New("not found")
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func seedToken(repo *mockAuthRepo, value string, token *models.RefreshToken) *models.RefreshToken {
	if repo.refreshTokens == nil {
		repo.refreshTokens = make(map[string]*models.RefreshToken)
	}
	token.Token = models.HashRefreshToken(value)
	repo.refreshTokens[token.Token] = token
	return token
}

func authConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour, Issuer: "sims-api"}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginOpensSession(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: hashed(t, "password"), Active: true, Role: models.RoleAccountant}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: " User@Example.com ", Password: "password", IP: "10.1.1.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleAccountant, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	stored := repo.refreshTokens[models.HashRefreshToken(res.RefreshToken)]
	require.NotNil(t, stored)
	assert.Equal(t, "10.1.1.1", stored.IPAddress)
	assert.NotContains(t, repo.refreshTokens, res.RefreshToken)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginRejections(t *testing.T) {
	cases := []struct {
		name     string
		user     *models.User
		findErr  error
		password string
		want     *appErrors.Error
	}{
		{name: "unknown email", findErr: sql.ErrNoRows, password: "password", want: appErrors.ErrInvalidCredentials},
		{name: "wrong password", user: &models.User{ID: "1", Active: true, Role: models.RoleTeacher}, password: "nope", want: appErrors.ErrInvalidCredentials},
		{name: "inactive", user: &models.User{ID: "2", Active: false, Role: models.RoleTeacher}, password: "password", want: appErrors.ErrInactiveAccount},
		{name: "no role", user: &models.User{ID: "3", Active: true}, password: "password", want: appErrors.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.user != nil {
				tc.user.PasswordHash = hashed(t, "password")
			}
			repo := &mockAuthRepo{userByEmail: tc.user, findByEmailErr: tc.findErr}
			svc := NewAuthService(repo, nil, nil, nil, authConfig())

			_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: tc.password})
			assert.True(t, errors.Is(err, tc.want), err)
			assert.Empty(t, repo.refreshTokens)
		})
	}
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@example.com", Active: true, Role: models.RoleAdmin}
	repo.userByID = user
	seedToken(repo, "token", &models.RefreshToken{ID: "rt1", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)})
	svc := NewAuthService(repo, nil, nil, nil, authConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens[models.HashRefreshToken("token")].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := &mockAuthRepo{}
	seedToken(repo, "old", &models.RefreshToken{ID: "rt1", UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)})
	svc := NewAuthService(repo, nil, nil, nil, authConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogoutOnlyOwnToken(t *testing.T) {
	repo := &mockAuthRepo{}
	mine := seedToken(repo, "mine", &models.RefreshToken{ID: "rt1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	theirs := seedToken(repo, "theirs", &models.RefreshToken{ID: "rt2", UserID: "u2", ExpiresAt: time.Now().Add(time.Hour)})
	svc := NewAuthService(repo, nil, nil, nil, authConfig())
	actor := models.Actor{UserID: "u1", Role: models.RoleStudent}

	err := svc.Logout(context.Background(), actor, models.LogoutRequest{RefreshToken: "theirs"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.False(t, theirs.Revoked)

	require.NoError(t, svc.Logout(context.Background(), actor, models.LogoutRequest{RefreshToken: "mine"}))
	assert.True(t, mine.Revoked)

	err = svc.Logout(context.Background(), actor, models.LogoutRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashed(t, "old-password")
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: oldHash, Active: true}}
	svc := NewAuthService(repo, nil, nil, nil, authConfig())
	actor := models.Actor{UserID: "u1", Role: models.RoleTeacher}

	err := svc.ChangePassword(context.Background(), actor, models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = svc.ChangePassword(context.Background(), actor, models.ChangePasswordRequest{OldPassword: "old-password", NewPassword: "old-password"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.ChangePassword(context.Background(), actor, models.ChangePasswordRequest{OldPassword: "old-password", NewPassword: "newpassword"}))
	assert.NotEqual(t, oldHash, repo.userByEmail.PasswordHash)
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, nil, authConfig())
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "sims-api", claims.Issuer)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(&mockAuthRepo{}, nil, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceMeIncludesPortalScope(t *testing.T) {
	repo := &mockAuthRepo{userByID: &models.User{ID: "par-user", Email: "guardian@example.com", FullName: "Siti", Role: models.RoleGuardian, Active: true}}
	svc := NewAuthService(repo, newTestResolver(), nil, nil, authConfig())

	profile, err := svc.Me(context.Background(), models.Actor{UserID: "par-user", Role: models.RoleGuardian})
	require.NoError(t, err)
	assert.Equal(t, "Siti", profile.FullName)
	assert.False(t, profile.Unrestricted)
	assert.Equal(t, "g1", profile.GuardianID)
	assert.Equal(t, []string{"s1", "s2"}, profile.StudentIDs)

	repo.userByID = &models.User{ID: "t", Role: models.RoleTeacher, Active: true}
	profile, err = svc.Me(context.Background(), models.Actor{UserID: "t", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.True(t, profile.Unrestricted)
	assert.Empty(t, profile.StudentIDs)
}
