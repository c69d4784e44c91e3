package repository_test

import (
	"context"
	"testing"
	"time"

	"tunestream/internal/testdb"
	"tunestream/model"
	"tunestream/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackRepository_CreateAndGet(t *testing.T) {
	repo := repository.NewGormTrackRepository(testdb.New(t))
	ctx := context.Background()

	track := &model.Track{Title: "Blue in Green", Artist: "Miles Davis", StorageKey: "jazz/blue.mp3", OwnerID: 7}
	require.NoError(t, repo.CreateTrack(ctx, track))

	_, err := uuid.Parse(track.ID)
	require.NoError(t, err, "CreateTrack should assign a UUID")

	got, err := repo.GetTrackByID(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue in Green", got.Title)
	assert.Equal(t, "jazz/blue.mp3", got.StorageKey)
	assert.Equal(t, int64(7), got.OwnerID)
}

func TestTrackRepository_KeepsExplicitID(t *testing.T) {
	repo := repository.NewGormTrackRepository(testdb.New(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateTrack(ctx, &model.Track{ID: "song-1", Title: "x", StorageKey: "x.mp3"}))
	got, err := repo.GetTrackByID(ctx, "song-1")
	require.NoError(t, err)
	assert.Equal(t, "x.mp3", got.StorageKey)
}

func TestTrackRepository_GetMissing(t *testing.T) {
	repo := repository.NewGormTrackRepository(testdb.New(t))

	_, err := repo.GetTrackByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrTrackNotFound)
}

func TestTrackRepository_ListNewestFirst(t *testing.T) {
	repo := repository.NewGormTrackRepository(testdb.New(t))
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, repo.CreateTrack(ctx, &model.Track{
			Title:      title,
			StorageKey: title + ".mp3",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := repo.ListTracks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Title)

	limited, err := repo.ListTracks(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestTrackRepository_Delete(t *testing.T) {
	repo := repository.NewGormTrackRepository(testdb.New(t))
	ctx := context.Background()

	track := &model.Track{Title: "gone", StorageKey: "gone.mp3"}
	require.NoError(t, repo.CreateTrack(ctx, track))

	require.NoError(t, repo.DeleteTrack(ctx, track.ID))
	_, err := repo.GetTrackByID(ctx, track.ID)
	assert.ErrorIs(t, err, repository.ErrTrackNotFound)

	assert.ErrorIs(t, repo.DeleteTrack(ctx, track.ID), repository.ErrTrackNotFound)
}
