package dataset

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "investment-chat/internal/common/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "testdata/investment_updates.json"

func loadFixture(t *testing.T) *Store {
	t.Helper()
	store, err := Load(fixture)
	require.NoError(t, err)
	return store
}

func TestLoad(t *testing.T) {
	store := loadFixture(t)

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, fixture, store.Path())

	want := []NameEntry{
		{Name: "Rollstack", ID: "deal-001"},
		{Name: "Acme Corp", ID: "deal-002"},
		{Name: "Bluefin Robotics", ID: "deal-003"},
	}
	if diff := cmp.Diff(want, store.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetByID(t *testing.T) {
	store := loadFixture(t)

	deal, ok := store.GetByID("deal-002")
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", deal.CompanyName)

	_, ok = store.GetByID("deal-999")
	assert.False(t, ok)

	_, ok = store.GetByID("")
	assert.False(t, ok)
}

func TestDealMarshalsVerbatim(t *testing.T) {
	first := loadFixture(t)
	second := loadFixture(t)

	for _, deal := range first.All() {
		a, err := json.Marshal(deal)
		require.NoError(t, err)
		other, ok := second.GetByID(deal.ID)
		require.True(t, ok)
		b, err := json.Marshal(other)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}

	acme, _ := first.GetByID("deal-002")
	assert.Contains(t, string(acme.Raw()), `"sector": null`)
}

func TestSnapshot(t *testing.T) {
	store := loadFixture(t)
	raw, err := os.ReadFile(fixture)
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, raw, snap)

	snap[0] = 'X'
	assert.Equal(t, raw, store.Snapshot(), "snapshot must be a copy")
}

func TestDigest(t *testing.T) {
	store := loadFixture(t)

	want := strings.Join([]string{
		"--------------------------------------------------",
		"Company: Rollstack",
		"",
		"As of Date: March, 2024 | Lastest MRR: 120000|",
		"As of Date: June, 2024 | Lastest MRR: 150000.5|",
		"--------------------------------------------------",
		"Company: Acme Corp",
		"",
		"As of Date: December, 2023 | Lastest ARR: null|",
		"--------------------------------------------------",
		"Company: Bluefin Robotics",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, store.Digest())
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid json", `{"data": [`, "does not match expected shape"},
		{"missing data key", `{"items": []}`, "does not match expected shape"},
		{"record without id", `{"data": [{"companyName": "A"}]}`, "does not match expected shape"},
		{"non string name", `{"data": [{"id": "1", "companyName": 7}]}`, "does not match expected shape"},
		{"duplicate ids", `{"data": [{"id": "1", "companyName": "A"}, {"id": "1", "companyName": "B"}]}`, `duplicate record id "1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			require.Error(t, err)

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, apperrors.ErrCodeDatasetLoadFailed, stdErr.Code)
			assert.Contains(t, stdErr.Details, tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		var stdErr *apperrors.StandardError
		require.True(t, errors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeDatasetLoadFailed, stdErr.Code)
	})
}

func TestEmptyDataset(t *testing.T) {
	store, err := Parse([]byte(`{"data": []}`))
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.Names())
	assert.Equal(t, "", store.Digest())
}

func TestSchemaText(t *testing.T) {
	assert.True(t, strings.HasPrefix(SchemaText, "// Root\ninterface Root {\n  data: Deal[];\n}"))
	assert.Contains(t, SchemaText, "interface Deal {")
	assert.NotContains(t, SchemaText, "\r")
}
