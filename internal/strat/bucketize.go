package strat

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/schema"
	"tapestrat/internal/tape"
)

const (
	DefaultMaxBuckets     = 10
	DefaultRoundPrecision = 2

	// fractionRoundBase and wholeRoundBase snap step sizes for rate-like
	// variables stored as fractions or as whole percentages.
	fractionRoundBase = 0.0025
	wholeRoundBase    = 0.25
)

// BucketKind tells how a BucketSet assigns values.
type BucketKind int

const (
	BucketNumeric BucketKind = iota
	BucketCategorical
	BucketVintage
)

func (k BucketKind) String() string {
	switch k {
	case BucketNumeric:
		return "numeric"
	case BucketCategorical:
		return "categorical"
	case BucketVintage:
		return "vintage"
	default:
		return "BucketKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Bucket labels outside the regular buckets.
const (
	LabelMissing = "missing"
	LabelOther   = "other"
	LabelTotal   = "Total"
)

// BucketSet is the ordered set of buckets for one variable. It is a value
// and is never modified after construction.
type BucketSet struct {
	Field string     `json:"field"`
	Kind  BucketKind `json:"kind"`
	// Edges are the strictly increasing upper bounds of numeric buckets.
	Edges []float64 `json:"edges,omitempty"`
	// Categories are the category or vintage labels in output order.
	Categories []string `json:"categories,omitempty"`
	// Vintage is the period of a vintage BucketSet.
	Vintage schema.StratType `json:"vintage,omitempty"`
	// Preset names the preset table the edges came from, if any.
	Preset string `json:"preset,omitempty"`
}

// BucketOptions tune Bucketize.
type BucketOptions struct {
	MaxBuckets     int
	RoundPrecision int
	// StratType forces unique_value or a vintage period. Empty means the
	// schema's StratType for the field, if known.
	StratType schema.StratType
}

func (o BucketOptions) withDefaults() BucketOptions {
	if o.MaxBuckets <= 0 {
		o.MaxBuckets = DefaultMaxBuckets
	}
	if o.RoundPrecision <= 0 {
		o.RoundPrecision = DefaultRoundPrecision
	}
	return o
}

type preset struct {
	key   string
	edges []float64
	step  bool
	scale bool
}

// presets are matched as substrings of the variable name; the last match in
// this order wins.
var presets = []preset{
	{key: "fico", edges: []float64{540, 580, 620, 640, 660, 680, 700, 720, 740, 760, 780, 800}},
	{key: "ltv", edges: []float64{30, 40, 50, 60, 65, 70, 75, 80, 85, 90}, scale: true},
	{key: "dti", edges: []float64{10, 15, 20, 25, 30, 35, 40, 45, 50, 55}, scale: true},
	{key: "term", edges: []float64{3, 6, 12, 24, 36, 48, 60, 84, 120, 180, 240, 360, 420}},
	{key: "rate", step: true},
	{key: "margin", step: true},
}

func matchPreset(variable string) (preset, bool) {
	name := strings.ToLower(variable)
	var found preset
	var ok bool
	for _, p := range presets {
		if strings.Contains(name, p.key) {
			found, ok = p, true
		}
	}
	return found, ok
}

// Bucketize computes the buckets for field over rs. String and bool columns
// and unique_value fields get one bucket per distinct value; date columns
// get vintage buckets; numeric columns get edges from BucketizeFloats.
func Bucketize(rs *tape.RecordSet, field string, opts BucketOptions) (BucketSet, error) {
	field = schema.NormalizeName(field)
	if !rs.HasColumn(field) {
		return BucketSet{}, &apperrors.UnsupportedVariableError{Variable: field, Reason: "not present on the tape"}
	}
	opts = opts.withDefaults()

	stratType := opts.StratType
	if stratType == "" && rs.Schema() != nil {
		if spec, ok := rs.Schema().Field(field); ok {
			stratType = spec.StratType
		}
	}

	kind := rs.ColumnKind(field)
	switch {
	case kind == convert.KindMissing:
		return BucketSet{}, &apperrors.UnsupportedVariableError{Variable: field, Reason: "no values on the tape"}
	case kind == convert.KindDate || stratType.IsVintage():
		if kind != convert.KindDate {
			return BucketSet{}, &apperrors.UnsupportedVariableError{Variable: field, Reason: "vintage buckets need a date field"}
		}
		if !stratType.IsVintage() {
			stratType = schema.StratVintageAnnual
		}
		return vintageBuckets(rs, field, stratType), nil
	case stratType == schema.StratUniqueValue || !(kind == convert.KindInt || kind == convert.KindFloat):
		return categoricalBuckets(rs, field, kind), nil
	}

	values, _ := rs.Floats(field)
	return BucketizeFloats(field, values, opts)
}

// BucketizeFloats computes numeric edges for variable. NaN values are
// ignored. A preset table matching the name wins over data-driven edges;
// otherwise MaxBuckets+1 evenly spaced edges span the rounded data range.
func BucketizeFloats(variable string, values []float64, opts BucketOptions) (BucketSet, error) {
	opts = opts.withDefaults()

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return BucketSet{}, &apperrors.UnsupportedVariableError{Variable: variable, Reason: "no numeric values"}
	}

	roundBase, bucketMult := wholeRoundBase, 1.0
	if hi < 1 || (hi > 1 && lo < 1 && lo != 0) {
		roundBase, bucketMult = fractionRoundBase, 100
	}

	bs := BucketSet{Field: schema.NormalizeName(variable), Kind: BucketNumeric}

	p, hasPreset := matchPreset(variable)
	if hasPreset && !p.step {
		bs.Preset = p.key
		bs.Edges = make([]float64, len(p.edges))
		for i, e := range p.edges {
			if p.scale {
				e = decimal.NewFromFloat(e).DivRound(decimal.NewFromFloat(bucketMult), 16).InexactFloat64()
			}
			bs.Edges[i] = e
		}
		return bs, nil
	}

	bottom := LowestBucket(lo, opts.RoundPrecision)
	top := HighestBucket(hi, opts.RoundPrecision)
	if top <= bottom {
		top = bottom + unitOf(bottom, opts.RoundPrecision)
	}

	step := (top - bottom) / float64(opts.MaxBuckets)
	if hasPreset {
		bs.Preset = p.key
		if snapped := RoundToNearest(step, roundBase, RoundDown); snapped > 0 {
			step = snapped
		}
	}
	bs.Edges = evenEdges(bottom, step, opts.MaxBuckets)
	return bs, nil
}

// unitOf is the rounding unit LowestBucket uses around v, in v's units.
func unitOf(v float64, precision int) float64 {
	_, base, factor := bucketUnit(v, precision)
	if base.IsZero() {
		return 1
	}
	return base.DivRound(factor, 16).InexactFloat64()
}

func evenEdges(bottom, step float64, n int) []float64 {
	b, s := decimal.NewFromFloat(bottom), decimal.NewFromFloat(step)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = b.Add(s.Mul(decimal.NewFromInt(int64(i)))).InexactFloat64()
	}
	return edges
}

// NewEdgeBuckets builds a numeric BucketSet from caller-supplied edges.
func NewEdgeBuckets(field string, edges []float64) (BucketSet, error) {
	if len(edges) == 0 {
		return BucketSet{}, &apperrors.UnsupportedVariableError{Variable: field, Reason: "no bucket edges given"}
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return BucketSet{}, &apperrors.UnsupportedVariableError{
				Variable: field,
				Reason:   fmt.Sprintf("bucket edges must increase: %v then %v", edges[i-1], edges[i]),
			}
		}
	}
	return BucketSet{
		Field: schema.NormalizeName(field),
		Kind:  BucketNumeric,
		Edges: append([]float64(nil), edges...),
	}, nil
}

func categoricalBuckets(rs *tape.RecordSet, field string, kind convert.Kind) BucketSet {
	cats := rs.Distinct(field)
	if kind == convert.KindInt || kind == convert.KindFloat {
		sort.SliceStable(cats, func(i, j int) bool {
			a, _ := strconv.ParseFloat(cats[i], 64)
			b, _ := strconv.ParseFloat(cats[j], 64)
			return a < b
		})
	}
	return BucketSet{Field: field, Kind: BucketCategorical, Categories: cats}
}

func vintageBuckets(rs *tape.RecordSet, field string, period schema.StratType) BucketSet {
	dates, ok, _ := rs.Dates(field)
	seen := make(map[string]time.Time)
	for i, d := range dates {
		if !ok[i] {
			continue
		}
		label := VintageLabel(d, period)
		if _, dup := seen[label]; !dup {
			seen[label] = periodStart(d, period)
		}
	}
	cats := make([]string, 0, len(seen))
	for label := range seen {
		cats = append(cats, label)
	}
	sort.Slice(cats, func(i, j int) bool { return seen[cats[i]].Before(seen[cats[j]]) })
	return BucketSet{Field: field, Kind: BucketVintage, Categories: cats, Vintage: period}
}

// VintageLabel names the origination period of d: 2006-01, 2006Q1 or 2006.
func VintageLabel(d time.Time, period schema.StratType) string {
	switch period {
	case schema.StratVintageMonth:
		return d.Format("2006-01")
	case schema.StratVintageQuarter:
		return fmt.Sprintf("%dQ%d", d.Year(), (int(d.Month())-1)/3+1)
	default:
		return strconv.Itoa(d.Year())
	}
}

func periodStart(d time.Time, period schema.StratType) time.Time {
	switch period {
	case schema.StratVintageMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	case schema.StratVintageQuarter:
		m := time.Month((int(d.Month())-1)/3*3 + 1)
		return time.Date(d.Year(), m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
}

// Len is the number of regular buckets.
func (b BucketSet) Len() int {
	if b.Kind == BucketNumeric {
		return len(b.Edges)
	}
	return len(b.Categories)
}

// Labels returns the regular bucket labels in order.
func (b BucketSet) Labels() []string {
	if b.Kind != BucketNumeric {
		return append([]string(nil), b.Categories...)
	}
	labels := make([]string, len(b.Edges))
	for i, e := range b.Edges {
		if i == 0 {
			labels[i] = "<= " + formatEdge(e)
			continue
		}
		labels[i] = fmt.Sprintf("(%s, %s]", formatEdge(b.Edges[i-1]), formatEdge(e))
	}
	return labels
}

// OverflowLabel names the bucket for values past the last edge or outside
// the listed categories.
func (b BucketSet) OverflowLabel() string {
	if b.Kind == BucketNumeric && len(b.Edges) > 0 {
		return "> " + formatEdge(b.Edges[len(b.Edges)-1])
	}
	return LabelOther
}

func formatEdge(e float64) string {
	return strconv.FormatFloat(e, 'f', -1, 64)
}

// assigner maps a value to a bucket index: 0..Len()-1 for regular buckets,
// Len() for overflow and -1 for missing.
type assigner func(convert.Value) int

func (b BucketSet) assigner() assigner {
	overflow := b.Len()
	switch b.Kind {
	case BucketNumeric:
		edges := b.Edges
		return func(v convert.Value) int {
			f, ok := v.AsFloat()
			if !ok || math.IsNaN(f) {
				return -1
			}
			// first edge with f <= edge
			return sort.SearchFloat64s(edges, f)
		}
	default:
		index := make(map[string]int, len(b.Categories))
		for i, c := range b.Categories {
			index[c] = i
		}
		period := b.Vintage
		vintage := b.Kind == BucketVintage
		return func(v convert.Value) int {
			if v.IsMissing() || v.IsInvalid() {
				return -1
			}
			key := v.Text()
			if vintage {
				d, ok := v.AsDate()
				if !ok {
					return -1
				}
				key = VintageLabel(d, period)
			}
			if i, ok := index[key]; ok {
				return i
			}
			return overflow
		}
	}
}
