package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/wello-store/internal/domain/coupon"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    coupon.Rule
		wantErr bool
	}{
		{
			line: " monsoon10 , PERCENT, 10.5 , Monsoon sale",
			want: coupon.Rule{Code: "MONSOON10", Kind: coupon.KindPercent, Value: decimal.RequireFromString("10.5"), Description: "Monsoon sale"},
		},
		{
			line: "FLAT75,flat,75",
			want: coupon.Rule{Code: "FLAT75", Kind: coupon.KindFlat, Value: decimal.NewFromInt(75)},
		},
		{line: "SHORT,flat", wantErr: true},
		{line: ",flat,10", wantErr: true},
		{line: "BOGO,bogo,1", wantErr: true},
		{line: "NEG,flat,-5", wantErr: true},
		{line: "NAN,flat,ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.True(t, tt.want.Value.Equal(got.Value), "value %s", got.Value)
			assert.Equal(t, tt.want.Description, got.Description)
		})
	}
}

func TestParseFiles_Dedupe(t *testing.T) {
	dir := t.TempDir()
	a := writeGz(t, dir, "a.gz",
		"# seasonal",
		"SPRING15,percent,15",
		"",
		"broken line",
		"FLAT75,flat,75",
	)
	b := writeGz(t, dir, "b.gz",
		"spring15,flat,999",
		"CHEF200,flat,200",
	)

	results, err := parseFiles(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].skipped)

	rules, dups := dedupe(results)
	assert.Equal(t, 1, dups)
	require.Len(t, rules, 3)
	assert.Equal(t, "SPRING15", rules[0].Code)
	assert.Equal(t, coupon.KindPercent, rules[0].Kind, "first file wins")

	_, err = parseFiles(context.Background(), []string{a, filepath.Join(dir, "missing.gz")})
	require.Error(t, err)
}

type memoryCoupons struct {
	rules  map[string]coupon.Rule
	exists int
}

func (m *memoryCoupons) Codes(context.Context) ([]string, error) {
	codes := make([]string, 0, len(m.rules))
	for c := range m.rules {
		codes = append(codes, c)
	}
	return codes, nil
}

func (m *memoryCoupons) Exists(_ context.Context, code string) (bool, error) {
	m.exists++
	_, ok := m.rules[code]
	return ok, nil
}

func (m *memoryCoupons) Upsert(_ context.Context, r coupon.Rule) error {
	m.rules[r.Code] = r
	return nil
}

func TestImportRules_SkipsExisting(t *testing.T) {
	store := &memoryCoupons{rules: map[string]coupon.Rule{}}
	for _, r := range coupon.DefaultRules() {
		store.rules[r.Code] = r
	}

	rules := []coupon.Rule{
		{Code: "CHEF200", Kind: coupon.KindFlat, Value: decimal.NewFromInt(1)},
		{Code: "SPRING15", Kind: coupon.KindPercent, Value: decimal.NewFromInt(15)},
		{Code: "FLAT75", Kind: coupon.KindFlat, Value: decimal.NewFromInt(75)},
	}
	stats, err := importRules(context.Background(), store, rules)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.inserted)
	assert.Equal(t, 1, stats.existing)
	assert.Equal(t, stats.probes, store.exists)
	assert.GreaterOrEqual(t, stats.probes, 1)
	assert.True(t, decimal.NewFromInt(200).Equal(store.rules["CHEF200"].Value), "existing rule untouched")
	assert.Len(t, store.rules, 5)
}
