package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"staybooking/internal/database"
	"staybooking/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDB(t *testing.T) (string, int64) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stays.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()

	stay := &models.Stay{
		HostID:      "host-1",
		Name:        "Loft",
		Address:     "2000 Mission St",
		GuestNumber: 2,
		Location:    models.GeoPoint{Latitude: 37.76, Longitude: -122.41},
	}
	_, err = db.CreateStay(context.Background(), stay)
	require.NoError(t, err)
	return path, stay.ID
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestExport(t *testing.T) {
	dbPath, stayID := seedDB(t)
	out := filepath.Join(t.TempDir(), "out.xlsx")

	got, err := execute(t, "--db", dbPath, "export", "--stay", fmt.Sprint(stayID), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, got, "exported 0 reservations")

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBackup(t *testing.T) {
	dbPath, _ := seedDB(t)
	dir := t.TempDir()

	_, err := execute(t, "--db", dbPath, "backup", "--dir", dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGeoFailedAndRequeue(t *testing.T) {
	dbPath, _ := seedDB(t)

	logger := zerolog.Nop()
	db, err := database.NewDB(dbPath, &logger)
	require.NoError(t, err)
	ctx := context.Background()
	pending, err := db.GetPendingGeoSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, db.UpdateGeoSyncTaskStatus(ctx, pending[0].ID, models.TaskStatusFailed, "redis down", nil))
	require.NoError(t, db.Close())

	got, err := execute(t, "--db", dbPath, "geo", "failed")
	require.NoError(t, err)
	assert.Contains(t, got, "redis down")
	assert.Contains(t, got, models.GeoTaskIndex)

	got, err = execute(t, "--db", dbPath, "geo", "requeue")
	require.NoError(t, err)
	assert.Equal(t, "requeued: 1\n", got)

	got, err = execute(t, "--db", dbPath, "geo", "failed")
	require.NoError(t, err)
	assert.Equal(t, "no failed tasks\n", got)
}

func TestGeoReindex(t *testing.T) {
	dbPath, stayID := seedDB(t)

	got, err := execute(t, "--db", dbPath, "geo", "reindex")
	require.NoError(t, err)
	assert.Equal(t, "enqueued: 1\n", got)

	logger := zerolog.Nop()
	db, err := database.NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	pending, err := db.GetPendingGeoSyncTasks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2, "create task plus the reindex one")
	for _, task := range pending {
		assert.Equal(t, models.GeoTaskIndex, task.TaskType)
		assert.Equal(t, stayID, task.StayID)
	}
}

func TestExportErrors(t *testing.T) {
	dbPath, _ := seedDB(t)

	_, err := execute(t, "--db", dbPath, "export")
	assert.Error(t, err)
	_, err = execute(t, "--db", dbPath, "export", "--stay", "999")
	assert.Error(t, err)
	_, err = execute(t, "--db", dbPath, "bogus")
	assert.Error(t, err)
}
