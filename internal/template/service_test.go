package template

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
	if err := db.AutoMigrate(&Template{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func strp(s string) *string { return &s }

func TestCreateDefaultsAndValidation(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	tpl, err := svc.Create(ctx, 1, Input{Name: strp("Hook"), Content: strp("Stop scrolling")})
	require.NoError(t, err)
	assert.Equal(t, CategoryManual, tpl.Category)
	assert.Empty(t, tpl.Tags)

	bad := Category("weird")
	_, err = svc.Create(ctx, 1, Input{Name: strp("x"), Content: strp("y"), Category: &bad})
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = svc.Create(ctx, 1, Input{Name: strp("x")})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestCreateFromOCRTruncatesName(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	long := "OCR: " + strings.Repeat("n", 300)

	tpl, err := svc.CreateFromOCR(context.Background(), 1, long, "text", []string{"ocr", "extracted", "ocr"})
	require.NoError(t, err)
	assert.Len(t, tpl.Name, 255)
	assert.Equal(t, CategoryOCR, tpl.Category)
	assert.Equal(t, []string{"ocr", "extracted"}, []string(tpl.Tags))
}

func TestListFilters(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	ocr := CategoryOCR
	_, err := svc.Create(ctx, 1, Input{Name: strp("Invoice"), Content: strp("total due"), Tags: &[]string{"ocr", "finance"}, Category: &ocr})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, Input{Name: strp("Caption"), Content: strp("summer vibes"), Tags: &[]string{"social"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, Input{Name: strp("Other"), Content: strp("total"), Tags: &[]string{"finance"}})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, 1, ListFilter{Category: CategoryOCR, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Invoice", items[0].Name)

	items, total, err = svc.List(ctx, 1, ListFilter{Tag: "finance", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)

	_, total, err = svc.List(ctx, 1, ListFilter{Search: "summer", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, _, err = svc.List(ctx, 1, ListFilter{Category: "nope", Limit: 10})
	assert.ErrorIs(t, err, ErrInvalidCategory)

	tags, err := svc.Tags(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "ocr", "social"}, tags)
}

func TestUpdateAndDeleteScopedToUser(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()
	tpl, err := svc.Create(ctx, 1, Input{Name: strp("a"), Content: strp("b")})
	require.NoError(t, err)

	_, err = svc.Update(ctx, 2, tpl.ID, Input{Content: strp("hijack")})
	assert.ErrorIs(t, err, ErrNotFound)

	up, err := svc.Update(ctx, 1, tpl.ID, Input{Content: strp("c")})
	require.NoError(t, err)
	assert.Equal(t, "c", up.Content)
	assert.Equal(t, "a", up.Name)

	assert.ErrorIs(t, svc.Delete(ctx, 2, tpl.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, 1, tpl.ID))
}
