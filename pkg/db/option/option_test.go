package option

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type record struct {
	ID        int64 `gorm:"primaryKey"`
	CreatedAt time.Time
}

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&record{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, db.Create(&record{ID: i, CreatedAt: base.Add(time.Duration(i) * time.Hour)}).Error)
	}
	return db
}

func TestApplyPaginationFollowsCursor(t *testing.T) {
	db := setup(t)

	var first []record
	err := ApplyPagination(pagination.Pagination{PageSize: 1}).
		Apply(db.Model(&record{}).Order("created_at desc, id desc")).
		Find(&first).Error
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(3), first[0].ID)

	token, err := pagination.EncodeCursor(pagination.Cursor{ID: "3", CreatedAt: first[0].CreatedAt.Format(time.RFC3339Nano)})
	require.NoError(t, err)

	var next []record
	err = ApplyPagination(pagination.Pagination{PageToken: token, PageSize: 5}).
		Apply(db.Model(&record{}).Order("created_at desc, id desc")).
		Find(&next).Error
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, int64(2), next[0].ID)
}

func TestApplyPaginationRejectsMalformedToken(t *testing.T) {
	db := setup(t)

	badTime, err := pagination.EncodeCursor(pagination.Cursor{ID: "3", CreatedAt: "yesterday"})
	require.NoError(t, err)
	badID, err := pagination.EncodeCursor(pagination.Cursor{ID: "x", CreatedAt: "2026-01-01T01:00:00Z"})
	require.NoError(t, err)

	for _, token := range []string{"%%%", "bm90LWpzb24", badTime, badID} {
		var rows []record
		err := ApplyPagination(pagination.Pagination{PageToken: token}).
			Apply(db.Model(&record{})).
			Find(&rows).Error
		assert.ErrorIs(t, err, pagination.ErrInvalidPageToken, token)
		assert.Empty(t, rows, token)
	}
}
