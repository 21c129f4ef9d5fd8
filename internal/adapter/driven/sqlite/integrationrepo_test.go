package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

func TestIntegrationRepo_GatewayRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIntegrationRepo(db)
	ctx := context.Background()

	got, err := repo.GetGateway(ctx, "co-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	cfg := model.GatewayConfig{
		CompanyID:    "co-1",
		InstanceURL:  "https://gw.example.com",
		InstanceName: "main",
		Token:        "enc-token-1",
		UpdatedAt:    fixedTime(0),
	}
	require.NoError(t, repo.UpsertGateway(ctx, cfg))

	cfg.InstanceName = "renamed"
	cfg.Token = "enc-token-2"
	cfg.UpdatedAt = fixedTime(time.Hour)
	require.NoError(t, repo.UpsertGateway(ctx, cfg))

	got, err = repo.GetGateway(ctx, "co-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "renamed", got.InstanceName)
	assert.Equal(t, "enc-token-2", got.Token)
	assert.True(t, got.UpdatedAt.Equal(fixedTime(time.Hour)))

	other, err := repo.GetGateway(ctx, "co-2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestIntegrationRepo_AIProviderRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIntegrationRepo(db)
	ctx := context.Background()

	got, err := repo.GetAIProvider(ctx, "co-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.UpsertAIProvider(ctx, model.AIProviderConfig{
		CompanyID: "co-1",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		APIKey:    "enc-key",
		UpdatedAt: fixedTime(0),
	}))

	got, err = repo.GetAIProvider(ctx, "co-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "enc-key", got.APIKey)
}
