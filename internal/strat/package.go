package strat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/infrastructure"
	"tapestrat/internal/tape"
)

// DefaultWorkers bounds concurrent table builds in BuildPackage.
const DefaultWorkers = 4

// PackageOptions tune BuildPackage.
type PackageOptions struct {
	Options
	// AssetClasses limits the package to these product classes. Empty means
	// every product class present on the tape.
	AssetClasses []string
	// Fields limits the package to these variables. Empty means every
	// stratify-by field of the schema that the tape carries.
	Fields  []string
	Workers int
}

// Failure records a table that could not be built.
type Failure struct {
	AssetClass string `json:"asset_class"`
	Field      string `json:"field"`
	Error      string `json:"error"`
}

// Package is a full stratification run over one tape.
type Package struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Records   int       `json:"records"`
	Tables    []*Table  `json:"tables"`
	Failures  []Failure `json:"failures,omitempty"`
}

// BuildPackage stratifies every requested asset class by every requested
// field. Tables come back in asset class then field order regardless of
// completion order. A failed table is recorded in Failures and does not stop
// the run; only context cancellation does.
func BuildPackage(ctx context.Context, rs *tape.RecordSet, opts PackageOptions) (*Package, error) {
	opts.Options = opts.Options.withDefaults()
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	classes := opts.AssetClasses
	if len(classes) == 0 {
		classes = classesOnTape(rs, opts.ProductField)
		if len(classes) == 0 {
			return nil, apperrors.NewStratificationError("no known product class on the tape", nil).
				WithContext("product_field", opts.ProductField).
				WithContext("values", rs.Distinct(opts.ProductField))
		}
	}
	fields := opts.Fields
	if len(fields) == 0 {
		fields = stratifyFields(rs)
	}

	pkg := &Package{
		RunID:     uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Records:   rs.Len(),
	}

	ctx, span := infrastructure.StartSpan(ctx, "strat.package")
	defer span.End()
	logger := infrastructure.WithComponent(opts.Logger, "strat").With(slog.String("run_id", pkg.RunID))

	type job struct{ class, field string }
	var jobs []job
	for _, c := range classes {
		for _, f := range fields {
			jobs = append(jobs, job{c, f})
		}
	}

	tables := make([]*Table, len(jobs))
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tables[i], errs[i] = Stratify(gctx, rs, j.class, j.field, opts.Options)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	for i, j := range jobs {
		if errs[i] != nil {
			pkg.Failures = append(pkg.Failures, Failure{AssetClass: j.class, Field: j.field, Error: errs[i].Error()})
			continue
		}
		pkg.Tables = append(pkg.Tables, tables[i])
	}

	logger.Info("stratification package built",
		slog.Int("records", pkg.Records),
		slog.Int("tables", len(pkg.Tables)),
		slog.Int("failures", len(pkg.Failures)),
	)
	return pkg, nil
}

// classesOnTape lists the known product classes present on the tape in
// report order, matching case-insensitively. A tape without a product column
// is stratified as a whole.
func classesOnTape(rs *tape.RecordSet, productField string) []string {
	if !rs.HasColumn(productField) {
		return []string{""}
	}
	present := make(map[string]bool)
	for _, v := range rs.Distinct(productField) {
		present[normalizeClass(v)] = true
	}
	var out []string
	for _, c := range ProductClasses {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

func stratifyFields(rs *tape.RecordSet) []string {
	if rs.Schema() == nil {
		return nil
	}
	var out []string
	for _, f := range rs.Schema().StratifyByFields() {
		if rs.HasColumn(f) {
			out = append(out, f)
		}
	}
	return out
}

func normalizeClass(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
