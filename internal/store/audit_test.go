// ABOUTME: Tests for audit log store operations
// ABOUTME: Covers Append and List with filtering for the audit_log table

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStore_Append(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := &AuditEntry{
		UserEmail: "alice@example.com",
		Action:    AuditMappingExport,
		TargetID:  "produits_completes_20250101_120000.csv",
		Detail:    map[string]any{"rows": 12},
	}

	err := store.AppendAuditLog(ctx, entry)
	require.NoError(t, err)

	// Should have generated ID and timestamp
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AuditMappingExport, entries[0].Action)
	assert.Equal(t, "Mapping effectué et fichier téléchargé", string(entries[0].Action))
	assert.Equal(t, "alice@example.com", entries[0].UserEmail)
	assert.Equal(t, float64(12), entries[0].Detail["rows"])
}

func TestAuditStore_List_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, action := range []AuditAction{AuditSetRole, AuditResetPassword, AuditMappingExport} {
		entry := &AuditEntry{
			UserEmail: "admin@example.com",
			Action:    action,
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, store.AppendAuditLog(ctx, entry))
	}

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, AuditMappingExport, entries[0].Action)
	assert.Equal(t, AuditSetRole, entries[2].Action)
}

func TestAuditStore_List_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seed := []AuditEntry{
		{UserEmail: "a@example.com", Action: AuditMappingExport, Timestamp: base},
		{UserEmail: "b@example.com", Action: AuditMappingExport, Timestamp: base.Add(time.Hour)},
		{UserEmail: "a@example.com", Action: AuditSetRole, Timestamp: base.Add(2 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, store.AppendAuditLog(ctx, &seed[i]))
	}

	email := "a@example.com"
	entries, err := store.ListAuditLog(ctx, AuditFilter{UserEmail: &email})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	action := AuditMappingExport
	entries, err = store.ListAuditLog(ctx, AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	since := base.Add(30 * time.Minute)
	entries, err = store.ListAuditLog(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	until := base.Add(30 * time.Minute)
	entries, err = store.ListAuditLog(ctx, AuditFilter{Until: &until})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a@example.com", entries[0].UserEmail)

	entries, err = store.ListAuditLog(ctx, AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNormalizeAuditLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeAuditLimit(0))
	assert.Equal(t, 100, normalizeAuditLimit(-5))
	assert.Equal(t, 50, normalizeAuditLimit(50))
	assert.Equal(t, 1000, normalizeAuditLimit(5000))
}
