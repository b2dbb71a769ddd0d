package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sample struct {
	ID      int64  `gorm:"primaryKey"`
	Project string `gorm:"type:text"`
	Barcode string `gorm:"type:text"`
}

func setup(t *testing.T) Store[sample] {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sample{}))
	return New[sample](db)
}

func TestStoreInsertAndFind(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx))
	require.NoError(t, store.Insert(ctx,
		sample{ID: 1, Project: "p1", Barcode: "S-001"},
		sample{ID: 2, Project: "p2", Barcode: "S-002"},
		sample{ID: 3, Project: "p1", Barcode: "S-003"},
	))

	found, err := store.Find(ctx, &sample{Project: "p1"}, option.WithSortBy("id", "desc"))
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "S-003", found[0].Barcode)
	assert.Equal(t, "S-001", found[1].Barcode)

	count, err := store.Count(ctx, &sample{Project: "p2"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStoreFindOneMissingReturnsNil(t *testing.T) {
	store := setup(t)

	got, err := store.FindOne(context.Background(), &sample{ID: 42})

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreDeleteWhere(t *testing.T) {
	store := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx,
		sample{ID: 1, Project: "p1", Barcode: "S-001"},
		sample{ID: 2, Project: "p2", Barcode: "S-002"},
	))

	_, err := store.DeleteWhere(ctx, nil)
	require.ErrorIs(t, err, gorm.ErrMissingWhereClause)

	n, err := store.DeleteWhere(ctx, &sample{Project: "p1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := store.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "S-002", left[0].Barcode)
}
