package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/apperror"
	"task-manager/internal/service"
)

func TestAuthService_LoginAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := service.NewAuthService(f.store, "secret", 5*time.Minute, time.Hour)

	pair, err := auth.Login(ctx, []byte(`{"username":"dev","password":"dev-pass"}`))
	require.NoError(t, err)

	claims, err := auth.Parse(pair.Access, service.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, f.dev.ID, claims.UserID)
	assert.Equal(t, "developer", claims.Role)

	// Tokens are typed.
	_, err = auth.Parse(pair.Refresh, service.TokenAccess)
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
	_, err = auth.Refresh(ctx, []byte(`{"refresh":"`+pair.Access+`"}`))
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))

	access, err := auth.Refresh(ctx, []byte(`{"refresh":"`+pair.Refresh+`"}`))
	require.NoError(t, err)
	claims, err = auth.Parse(access, service.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, f.dev.ID, claims.UserID)

	other := service.NewAuthService(f.store, "another-secret", time.Minute, time.Hour)
	_, err = other.Parse(access, service.TokenAccess)
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}

func TestAuthService_LoginErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := service.NewAuthService(f.store, "secret", time.Minute, time.Hour)

	_, err := auth.Login(ctx, []byte(`{"username":"dev","password":"wrong"}`))
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
	_, err = auth.Login(ctx, []byte(`{"username":"nobody","password":"x"}`))
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))

	_, err = auth.Login(ctx, []byte(`{"username":"dev"}`))
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Equal(t, []string{"This field is required."}, appErr.Fields["password"])

	_, err = auth.Login(ctx, []byte(`[]`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestAuthService_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	auth := service.NewAuthService(f.store, "secret", -time.Minute, time.Hour)

	pair, err := auth.Login(context.Background(), []byte(`{"username":"dev","password":"dev-pass"}`))
	require.NoError(t, err)
	_, err = auth.Parse(pair.Access, service.TokenAccess)
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}
