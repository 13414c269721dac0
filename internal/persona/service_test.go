package persona

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestService_InitializeCreatesEveryCategoryOnce(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	recs, err := svc.Initialize(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recs, len(Categories))

	recs, err = svc.Initialize(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recs, len(Categories), "second initialize must not duplicate")

	other, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_ReplaceOverwritesPairs(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	_, err := svc.Replace(ctx, 1, "Pain", []Pair{{"Q1", "A1"}, {"Q2", "A2"}}, nil)
	require.NoError(t, err)

	got, err := svc.Replace(ctx, 1, "Pain", []Pair{{"Q3", "A3"}}, nil)
	require.NoError(t, err)
	require.Len(t, got.Details, 1)
	assert.Equal(t, "Q3", got.Details[0].Prompt)

	all, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_RejectsUnknownCategory(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	_, err := svc.Replace(context.Background(), 1, "pain", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = svc.Get(context.Background(), 1, "Unknown")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestRepo_FindByUserAndCategoriesScopesByUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Replace(ctx, 1, "Pain", []Pair{{"mine", "1"}}, nil)
	require.NoError(t, err)
	_, err = svc.Replace(ctx, 2, "Pain", []Pair{{"theirs", "2"}}, nil)
	require.NoError(t, err)

	out, err := NewEngine(repo).Render(ctx, 1, "t", map[string]bool{"Pain": true})
	require.NoError(t, err)
	assert.Contains(t, out, "Prompt: mine")
	assert.NotContains(t, out, "theirs")
}
