package prompt

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
	if err := db.AutoMigrate(&Prompt{}, &Tag{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func strp(s string) *string { return &s }

func TestCreate_RequiresNameAndDetails(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, Input{Name: strp("  "), Details: strp("x")})
	assert.ErrorIs(t, err, ErrNameRequired)

	p, err := svc.Create(ctx, 1, Input{Name: strp(" Launch "), Details: strp("Write about {persona}")})
	require.NoError(t, err)
	assert.Equal(t, "Launch", p.Name)
	assert.NotNil(t, p.Selection())
	assert.Empty(t, p.Selection())
}

func TestSelectionSurvivesRoundTrip(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()
	sel := map[string]bool{"Pain": true, "Desires": false}

	p, err := svc.Create(ctx, 1, Input{Name: strp("p"), Details: strp("d"), SelectedCustomers: &sel})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, sel, got.Selection())
}

func TestUpdate_PartialAndOwnership(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, Input{Name: strp("p"), Details: strp("d"), URL: strp("https://a.example")})
	require.NoError(t, err)

	up, err := svc.Update(ctx, 1, p.ID, Input{Details: strp("new details")})
	require.NoError(t, err)
	assert.Equal(t, "p", up.Name)
	assert.Equal(t, "new details", up.Details)
	assert.Equal(t, "https://a.example", up.URL)

	_, err = svc.Update(ctx, 2, p.ID, Input{Details: strp("hijack")})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = svc.Update(ctx, 1, p.ID, Input{Details: strp("")})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestList_SearchTagAndPaging(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo)
	ctx := context.Background()

	tag, created, err := repo.EnsureTag(ctx, "promo")
	require.NoError(t, err)
	require.True(t, created)

	for i := 0; i < 5; i++ {
		in := Input{Name: strp(fmt.Sprintf("prompt %d", i)), Details: strp("details")}
		if i%2 == 0 {
			in.TagID = &tag.ID
		}
		_, err := svc.Create(ctx, 1, in)
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, 1, Input{Name: strp("summer sale"), Details: strp("beach")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, Input{Name: strp("other user"), Details: strp("beach")})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, 1, ListFilter{Search: "beach"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "summer sale", items[0].Name)

	items, total, err = svc.List(ctx, 1, ListFilter{TagID: &tag.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 3)

	items, total, err = svc.List(ctx, 1, ListFilter{Skip: 4, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, items, 2)
}

func TestEnsureTagIsIdempotent(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	a, created, err := repo.EnsureTag(ctx, "evergreen")
	require.NoError(t, err)
	assert.True(t, created)
	b, created, err := repo.EnsureTag(ctx, "evergreen")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)

	tags, err := NewService(repo).Tags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestDelete(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()
	p, err := svc.Create(ctx, 1, Input{Name: strp("p"), Details: strp("d")})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 2, p.ID), gorm.ErrRecordNotFound)
	require.NoError(t, svc.Delete(ctx, 1, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1, p.ID), gorm.ErrRecordNotFound)
}
