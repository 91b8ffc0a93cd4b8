package utils

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

func TestOutputFileName(t *testing.T) {
	tests := []struct {
		name   string
		format string
		params map[string]string
		want   *regexp.Regexp
	}{
		{
			name:   "original",
			format: "Updated_{original}",
			params: map[string]string{"original": "/data/lazada export.xlsx"},
			want:   regexp.MustCompile(`^Updated_lazada export\.xlsx$`),
		},
		{
			name:   "csv target",
			format: "Updated_{original}",
			params: map[string]string{"original": "shopee.csv"},
			want:   regexp.MustCompile(`^Updated_shopee\.xlsx$`),
		},
		{
			name:   "platform and timestamp",
			format: "{platform}_{mode}_{timestamp}.xlsx",
			params: map[string]string{"platform": "tiktok", "mode": "manual"},
			want:   regexp.MustCompile(`^tiktok_manual_\d{8}_\d{6}\.xlsx$`),
		},
		{
			name:   "uuid",
			format: "{uuid}",
			want:   regexp.MustCompile(`^[0-9a-f-]{36}\.xlsx$`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputFileName(tt.format, tt.params)
			assert.Regexp(t, tt.want, got)
		})
	}
}

func TestCheckReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "target.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.NoError(t, CheckReadable(path))

	err := CheckReadable(filepath.Join(dir, "missing.xlsx"))
	assert.True(t, errors.Is(err, errs.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "missing.xlsx")

	assert.True(t, errors.Is(CheckReadable(dir), errs.ErrSourceUnavailable))
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckWritable(filepath.Join(dir, "new.xlsx")))

	existing := filepath.Join(dir, "out.xlsx")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))
	assert.NoError(t, CheckWritable(existing))

	err := CheckWritable(filepath.Join(dir, "nope", "out.xlsx"))
	assert.True(t, errors.Is(err, errs.ErrSourceUnavailable))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, FileExists(dir))
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	path, err := WriteSummary(RunSummary{
		RunID:     "0f8fad5b-d9cb-469f-a165-70867728950e",
		Policy:    "lazada/regular",
		PromoName: "Mega Sale",
		Target:    "target.xlsx",
		Promotion: "promo.xlsx",
		Output:    "Updated_target.xlsx",
		StartTime: start,
		EndTime:   start.Add(1500 * time.Millisecond),
		Stats:     types.Stats{TargetRows: 4, Eligible: 1, Escalated: 3},
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, "run_summary_20240501_100001_0f8fad5b.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "lazada/regular")
	assert.Contains(t, content, "Duration:       1.5s")
	assert.True(t, strings.Contains(content, "Escalated:          3"))
}
