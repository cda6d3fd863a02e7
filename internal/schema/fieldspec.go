package schema

import (
	"sort"
	"strings"
)

// DataDesc describes what a field means to a reader.
type DataDesc string

const (
	DescUniqueID    DataDesc = "uniqueid"
	DescCategorical DataDesc = "categorical"
	DescNumeric     DataDesc = "numeric"
	DescDate        DataDesc = "date"
	DescFlag        DataDesc = "flag"
)

// DataCategory selects the converter family of a field.
type DataCategory string

const (
	CategoryStrings DataCategory = "strings"
	CategoryFloats  DataCategory = "floats"
	CategoryInts    DataCategory = "ints"
	CategoryDates   DataCategory = "dates"
	CategoryBools   DataCategory = "bools"
	CategoryArrays  DataCategory = "arrays"
)

// Categories lists the six categories in partition order.
var Categories = []DataCategory{
	CategoryStrings, CategoryDates, CategoryBools, CategoryInts, CategoryFloats, CategoryArrays,
}

var categoryAliases = map[string]DataCategory{
	"strings": CategoryStrings,
	"strs":    CategoryStrings,
	"floats":  CategoryFloats,
	"ints":    CategoryInts,
	"dates":   CategoryDates,
	"bools":   CategoryBools,
	"arrays":  CategoryArrays,
}

// ScalarType is the output representation selected by DataType.
type ScalarType string

const (
	TypeString     ScalarType = "string"
	TypeEnum       ScalarType = "enum"
	TypeDate       ScalarType = "date"
	TypeInt32      ScalarType = "int32"
	TypeInt64      ScalarType = "int64"
	TypeFloat32    ScalarType = "float32"
	TypeFloat64    ScalarType = "float64"
	TypeBool       ScalarType = "bool"
	TypeFloatArray ScalarType = "float_array"
	TypeDateArray  ScalarType = "date_array"
)

var dataTypeTags = map[string]ScalarType{
	"str":           TypeString,
	"string":        TypeString,
	"enum":          TypeEnum,
	"datetime.date": TypeDate,
	"date":          TypeDate,
	"int":           TypeInt64,
	"int32":         TypeInt32,
	"int64":         TypeInt64,
	"np.int64":      TypeInt64,
	"float":         TypeFloat64,
	"float32":       TypeFloat32,
	"float64":       TypeFloat64,
	"np.float64":    TypeFloat64,
	"bool":          TypeBool,
	"array":         TypeFloatArray,
	"ramp":          TypeFloatArray,
	"dates":         TypeDateArray,
}

// Shape tells scalar fields from schedule fields.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeArray
)

// StratType is how a field is bucketed when stratified.
type StratType string

const (
	StratNone           StratType = "none"
	StratBucketFixed    StratType = "bucket_fixed"
	StratBucketAuto     StratType = "bucket_auto"
	StratUniqueValue    StratType = "unique_value"
	StratVintageMonth   StratType = "vintage_month"
	StratVintageQuarter StratType = "vintage_quarter"
	StratVintageAnnual  StratType = "vintage_annual"
)

var stratTypeAliases = map[string]StratType{
	"none":            StratNone,
	"bucket_fixed":    StratBucketFixed,
	"bucketfixed":     StratBucketFixed,
	"bucket_auto":     StratBucketAuto,
	"bucketauto":      StratBucketAuto,
	"unique_value":    StratUniqueValue,
	"uniquevalue":     StratUniqueValue,
	"vintage_month":   StratVintageMonth,
	"vintagem":        StratVintageMonth,
	"vintage_quarter": StratVintageQuarter,
	"vintageq":        StratVintageQuarter,
	"vintage_annual":  StratVintageAnnual,
	"vintagea":        StratVintageAnnual,
}

// IsVintage reports whether t buckets dates by origination period.
func (t StratType) IsVintage() bool {
	return t == StratVintageMonth || t == StratVintageQuarter || t == StratVintageAnnual
}

// SummarySet names the report section a field feeds.
type SummarySet string

const (
	SetNone            SummarySet = "none"
	SetSummary         SummarySet = "summary"
	SetSummaryExtended SummarySet = "summary_extended"
	SetServicing       SummarySet = "servicing"
	SetPerformance     SummarySet = "performance"
	SetUtilization     SummarySet = "utilization"
)

var summarySets = map[string]SummarySet{
	"":                 SetNone,
	"none":             SetNone,
	"summary":          SetSummary,
	"summary_extended": SetSummaryExtended,
	"servicing":        SetServicing,
	"performance":      SetPerformance,
	"utilization":      SetUtilization,
}

var stratFlags = map[string]struct{ on, extended bool }{
	"true":  {on: true},
	"y":     {on: true},
	"y(e)":  {on: true, extended: true},
	"false": {},
	"n":     {},
}

// AssetClass is one of the applicability flag columns.
type AssetClass string

const (
	AssetGenericLoan          AssetClass = "GenericLoan"
	AssetConsumerLoan         AssetClass = "ConsumerLoan"
	AssetConsumerMortgage     AssetClass = "ConsumerMortgage"
	AssetConsumerAuto         AssetClass = "ConsumerAuto"
	AssetConsumerStudent      AssetClass = "ConsumerStudent"
	AssetConsumerCard         AssetClass = "ConsumerCard"
	AssetConsumerUnsecured    AssetClass = "ConsumerUnsecured"
	AssetCommercialLoan       AssetClass = "CommercialLoan"
	AssetCommercialMortgage   AssetClass = "CommercialMortgage"
	AssetCommercialAmortizing AssetClass = "CommercialAmortizing"
	AssetCommercialBullet     AssetClass = "CommercialBullet"
	AssetCommercialRevolver   AssetClass = "CommercialRevolver"
	AssetCommercialABL        AssetClass = "CommercialABL"
)

// AssetClasses lists the flag columns in header order.
var AssetClasses = []AssetClass{
	AssetGenericLoan, AssetConsumerLoan, AssetConsumerMortgage, AssetConsumerAuto,
	AssetConsumerStudent, AssetConsumerCard, AssetConsumerUnsecured, AssetCommercialLoan,
	AssetCommercialMortgage, AssetCommercialAmortizing, AssetCommercialBullet,
	AssetCommercialRevolver, AssetCommercialABL,
}

// ParseAssetClass accepts a flag column name in any case, with or without
// underscores (ConsumerMortgage, consumer_mortgage).
func ParseAssetClass(s string) (AssetClass, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "")
	for _, c := range AssetClasses {
		if strings.ToLower(string(c)) == key {
			return c, true
		}
	}
	return "", false
}

// ParseSummarySet accepts a summary set name in any case. The empty string
// is SetNone.
func ParseSummarySet(s string) (SummarySet, bool) {
	set, ok := summarySets[strings.ToLower(strings.TrimSpace(s))]
	return set, ok
}

// FieldSpec is one validated schema row.
type FieldSpec struct {
	Name           string
	Desc           DataDesc
	Category       DataCategory
	DataType       string
	Type           ScalarType
	Shape          Shape
	Description    string
	PossibleValues string
	DefaultValue   string
	Stratify       bool
	StratExtended  bool
	StratType      StratType
	SummarySet     SummarySet
	AssetClasses   []AssetClass
	Required       bool
}

// AppliesTo reports whether the field is flagged for class.
func (f FieldSpec) AppliesTo(class AssetClass) bool {
	for _, c := range f.AssetClasses {
		if c == class {
			return true
		}
	}
	return false
}

// NormalizeName lowercases and trims a field name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
