package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/wello-store/internal/domain/coupon"
)

// parsed holds the rules read from one file.
type parsed struct {
	path    string
	rules   []coupon.Rule
	skipped int
}

// parseLine parses "CODE,kind,value[,description]".
func parseLine(line string) (coupon.Rule, error) {
	fields := strings.SplitN(line, ",", 4)
	if len(fields) < 3 {
		return coupon.Rule{}, errors.Errorf("want at least 3 fields, got %d", len(fields))
	}

	r := coupon.Rule{
		Code: coupon.Normalize(fields[0]),
		Kind: coupon.Kind(strings.ToLower(strings.TrimSpace(fields[1]))),
	}
	if r.Code == "" {
		return coupon.Rule{}, errors.New("empty code")
	}
	if !r.Kind.Valid() {
		return coupon.Rule{}, errors.Errorf("unknown kind %q", r.Kind)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
	if err != nil {
		return coupon.Rule{}, errors.Wrap(err, "value")
	}
	if v.IsNegative() {
		return coupon.Rule{}, errors.Errorf("negative value %s", v)
	}
	r.Value = v
	if len(fields) == 4 {
		r.Description = strings.TrimSpace(fields[3])
	}
	return r, nil
}

// parseFile streams a gzip rule file. Blank lines and lines starting with
// '#' are ignored; malformed lines are logged and counted.
func parseFile(ctx context.Context, path string) (parsed, error) {
	out := parsed{path: path}

	f, err := os.Open(path)
	if err != nil {
		return out, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return out, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for n := 1; scanner.Scan(); n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			slog.Warn("skipping line",
				slog.String("file", path),
				slog.Int("line", n),
				slog.String("error", err.Error()),
			)
			out.skipped++
			continue
		}
		out.rules = append(out.rules, r)
	}
	if err := scanner.Err(); err != nil {
		return out, errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("parsed file",
		slog.String("file", path),
		slog.Int("rules", len(out.rules)),
		slog.Int("skipped", out.skipped),
	)
	return out, nil
}

// parseFiles parses files concurrently, preserving their order.
func parseFiles(ctx context.Context, files []string) ([]parsed, error) {
	results := make([]parsed, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			p, err := parseFile(ctx, path)
			if err != nil {
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// dedupe keeps the first rule for each code across files in order and
// reports how many later duplicates were dropped.
func dedupe(results []parsed) ([]coupon.Rule, int) {
	seen := make(map[string]struct{})
	var (
		rules []coupon.Rule
		dups  int
	)
	for _, p := range results {
		for _, r := range p.rules {
			if _, ok := seen[r.Code]; ok {
				dups++
				continue
			}
			seen[r.Code] = struct{}{}
			rules = append(rules, r)
		}
	}
	return rules, dups
}
