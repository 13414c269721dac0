package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/postcraft/internal/persona"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&prompt.Prompt{}, &prompt.Tag{}, &persona.Record{}))
	return db
}

type fixture struct {
	im       *Importer
	prompts  *prompt.Repo
	personas *persona.Service
}

func newFixture(t *testing.T, ratio float64) fixture {
	t.Helper()
	db := openTestDB(t)
	prompts := prompt.NewRepo(db)
	personas := persona.NewService(persona.NewRepo(db))
	return fixture{
		im:       New(prompts, prompts, personas, Policy{SuccessRatio: ratio}),
		prompts:  prompts,
		personas: personas,
	}
}

func strp(s string) *string { return &s }

func TestImport_FullExport(t *testing.T) {
	f := newFixture(t, 0.5)
	ctx := context.Background()

	res, err := f.im.Import(ctx, 1, Request{
		Tags: []Tag{{Name: "Holiday"}, {Name: "Launch"}},
		CustomerInfo: []CustomerInfo{
			{Name: "Pain", Details: `[{"prompt":"biggest pain?","response":"no time"}]`},
		},
		Prompts: []Prompt{{
			Name:              "Holiday promo",
			Details:           "Write a holiday post",
			SelectedCustomers: map[string]bool{"Pain": true},
			Tag:               strp("Holiday"),
			URL:               strp("https://example.com"),
		}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TagsImported)
	assert.Equal(t, 1, res.CustomerInfoImported)
	assert.Equal(t, 1, res.PromptsImported)
	assert.Empty(t, res.Errors)

	p, err := f.prompts.FindByName(ctx, 1, "Holiday promo")
	require.NoError(t, err)
	require.NotNil(t, p.TagID)
	assert.Equal(t, "https://example.com", p.URL)
	assert.Equal(t, map[string]bool{"Pain": true}, p.Selection())

	rec, err := f.personas.Get(ctx, 1, "Pain")
	require.NoError(t, err)
	require.Len(t, rec.Details, 1)
	assert.Equal(t, "no time", rec.Details[0].Response)
}

func TestImport_UpsertsByName(t *testing.T) {
	f := newFixture(t, 0.5)
	ctx := context.Background()

	_, err := f.personas.Replace(ctx, 1, "Desires", []persona.Pair{{Prompt: "a", Response: "b"}}, strp("keep me"))
	require.NoError(t, err)

	req := Request{
		Tags:         []Tag{{Name: "Evergreen"}},
		CustomerInfo: []CustomerInfo{{Name: "Desires", Details: `[]`}},
		Prompts:      []Prompt{{Name: "Weekly", Details: "v1"}},
	}
	_, err = f.im.Import(ctx, 1, req)
	require.NoError(t, err)

	req.Prompts[0].Details = "v2"
	res, err := f.im.Import(ctx, 1, req)
	require.NoError(t, err)
	assert.Zero(t, res.TagsImported, "existing tags are not counted again")
	assert.Equal(t, 1, res.PromptsImported)

	_, total, err := f.prompts.List(ctx, 1, prompt.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	p, err := f.prompts.FindByName(ctx, 1, "Weekly")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Details)

	rec, err := f.personas.Get(ctx, 1, "Desires")
	require.NoError(t, err)
	assert.Empty(t, rec.Details)
	require.NotNil(t, rec.Description)
	assert.Equal(t, "keep me", *rec.Description)

	// another user's prompt with the same name is a separate row
	_, err = f.im.Import(ctx, 2, Request{Prompts: []Prompt{{Name: "Weekly", Details: "theirs"}}})
	require.NoError(t, err)
	p, err = f.prompts.FindByName(ctx, 1, "Weekly")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Details)
}

func TestImport_ItemErrorsAndRatio(t *testing.T) {
	f := newFixture(t, 0.5)
	ctx := context.Background()

	res, err := f.im.Import(ctx, 1, Request{
		CustomerInfo: []CustomerInfo{
			{Name: "Horoscope", Details: "[]"},
			{Name: "Pain", Details: "{not json"},
		},
		Prompts: []Prompt{
			{Name: "ok", Details: "fine", Tag: strp("missing-tag")},
			{Name: "ok2", Details: "fine"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Customer info 'Horoscope': Unknown category",
		"Customer info 'Pain': Invalid JSON in details",
	}, res.Errors)
	assert.False(t, res.Success, "2 errors out of 4 items is not below half")
	assert.Equal(t, 2, res.PromptsImported)

	p, err := f.prompts.FindByName(ctx, 1, "ok")
	require.NoError(t, err)
	assert.Nil(t, p.TagID, "unknown tag leaves the prompt untagged")

	res, err = f.im.Import(ctx, 1, Request{
		Tags:    []Tag{{Name: "a"}, {Name: "b"}},
		Prompts: []Prompt{{Name: "", Details: "x"}, {Name: "c", Details: "y"}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 1)
	assert.True(t, res.Success, "1 error out of 4 items is below half")
}

func TestPolicy(t *testing.T) {
	cases := []struct {
		ratio       float64
		errs, total int
		want        bool
	}{
		{0.5, 0, 0, true},
		{0.5, 1, 3, true},
		{0.5, 2, 4, false},
		{0.1, 1, 20, true},
		{0.1, 2, 20, false},
	}
	for _, tc := range cases {
		got := Policy{SuccessRatio: tc.ratio}.succeeded(tc.errs, tc.total)
		assert.Equal(t, tc.want, got, "ratio=%v errs=%d total=%d", tc.ratio, tc.errs, tc.total)
	}

	im := New(nil, nil, nil, Policy{})
	assert.Equal(t, DefaultPolicy(), im.policy)
}
