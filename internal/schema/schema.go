package schema

import (
	"fmt"
	"time"

	"tapestrat/internal/convert"
)

// Schema is an immutable field table. All derived lookups are computed by
// Builder.Build and never change afterwards, so a *Schema is safe to share.
type Schema struct {
	path       string
	loadedAt   time.Time
	policy     convert.Policy
	fields     []FieldSpec
	index      map[string]int
	byCategory map[DataCategory][]string
	types      map[string]ScalarType
	converters map[string]convert.Converter
	byClass    map[AssetClass][]string
	stratifyBy []string
	summary    map[SummarySet][]string
}

// Path is the schema file the Schema was loaded from, if any.
func (s *Schema) Path() string { return s.path }

// LoadedAt is when the Schema was built.
func (s *Schema) LoadedAt() time.Time { return s.loadedAt }

// Policy is the conversion policy bound into the converters.
func (s *Schema) Policy() convert.Policy { return s.policy }

// Len is the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns the field specs in file order.
func (s *Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

// FieldNames returns the normalized field names in file order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks a field up by name, case-insensitively.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[NormalizeName(name)]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema defines name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[NormalizeName(name)]
	return ok
}

// TypeOf returns the target scalar type of a field.
func (s *Schema) TypeOf(name string) (ScalarType, bool) {
	t, ok := s.types[NormalizeName(name)]
	return t, ok
}

// FieldsByCategory returns the field names in one category partition.
func (s *Schema) FieldsByCategory(cat DataCategory) []string {
	return append([]string(nil), s.byCategory[cat]...)
}

// ConverterFor returns the converter bound to a field.
func (s *Schema) ConverterFor(name string) (convert.Converter, bool) {
	c, ok := s.converters[NormalizeName(name)]
	return c, ok
}

// Converters returns a copy of the field → converter table.
func (s *Schema) Converters() map[string]convert.Converter {
	out := make(map[string]convert.Converter, len(s.converters))
	for k, v := range s.converters {
		out[k] = v
	}
	return out
}

// FieldsForAssetClass lists the fields flagged for class, in file order.
func (s *Schema) FieldsForAssetClass(class AssetClass) []string {
	return append([]string(nil), s.byClass[class]...)
}

// RequiredFields lists every field marked Required.
func (s *Schema) RequiredFields() []string {
	var out []string
	for _, f := range s.fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// RequiredFieldsFor lists the Required fields flagged for class.
func (s *Schema) RequiredFieldsFor(class AssetClass) []string {
	var out []string
	for _, f := range s.fields {
		if f.Required && f.AppliesTo(class) {
			out = append(out, f.Name)
		}
	}
	return out
}

// StratifyByFields lists the fields eligible for stratification.
func (s *Schema) StratifyByFields() []string {
	return append([]string(nil), s.stratifyBy...)
}

// StratifySummaryFields maps each summary set to its fields.
func (s *Schema) StratifySummaryFields() map[SummarySet][]string {
	out := make(map[SummarySet][]string, len(s.summary))
	for k, v := range s.summary {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Builder assembles a Schema. A Builder is single use.
type Builder struct {
	path   string
	policy convert.Policy
	fields []FieldSpec
	index  map[string]int
}

// NewBuilder creates a new Builder whose converters follow policy.
func NewBuilder(policy convert.Policy) *Builder {
	return &Builder{policy: policy, index: make(map[string]int)}
}

// WithPath records the source file of the schema.
func (b *Builder) WithPath(path string) *Builder {
	b.path = path
	return b
}

// Add appends a field. Names are normalized and must be unique.
func (b *Builder) Add(f FieldSpec) error {
	f.Name = NormalizeName(f.Name)
	if f.Name == "" {
		return fmt.Errorf("field name is empty")
	}
	if _, dup := b.index[f.Name]; dup {
		return fmt.Errorf("duplicate field name %q", f.Name)
	}
	if _, ok := categoryConverters[f.Category]; !ok {
		return fmt.Errorf("field %q: unknown data category %q", f.Name, f.Category)
	}
	if f.Category == CategoryArrays {
		f.Shape = ShapeArray
	} else {
		f.Shape = ShapeScalar
	}
	if f.StratType == "" {
		f.StratType = StratNone
	}
	if f.SummarySet == "" {
		f.SummarySet = SetNone
	}
	b.index[f.Name] = len(b.fields)
	b.fields = append(b.fields, f)
	return nil
}

// Build derives every lookup table and returns the finished Schema.
func (b *Builder) Build() *Schema {
	s := &Schema{
		path:       b.path,
		loadedAt:   time.Now(),
		policy:     b.policy,
		fields:     append([]FieldSpec(nil), b.fields...),
		index:      make(map[string]int, len(b.fields)),
		byCategory: make(map[DataCategory][]string, len(Categories)),
		types:      make(map[string]ScalarType, len(b.fields)),
		converters: make(map[string]convert.Converter, len(b.fields)),
		byClass:    make(map[AssetClass][]string, len(AssetClasses)),
		summary:    make(map[SummarySet][]string),
	}
	for i, f := range s.fields {
		s.index[f.Name] = i
		s.byCategory[f.Category] = append(s.byCategory[f.Category], f.Name)
		if f.Type != "" {
			s.types[f.Name] = f.Type
		}
		s.converters[f.Name] = converterFor(b.policy, f)
		for _, c := range f.AssetClasses {
			s.byClass[c] = append(s.byClass[c], f.Name)
		}
		if f.Stratify {
			s.stratifyBy = append(s.stratifyBy, f.Name)
		}
		if f.SummarySet != SetNone {
			s.summary[f.SummarySet] = append(s.summary[f.SummarySet], f.Name)
		}
	}
	return s
}

var categoryConverters = map[DataCategory]func(convert.Policy, ScalarType) convert.Converter{
	CategoryStrings: func(p convert.Policy, _ ScalarType) convert.Converter {
		return p.ConvertStrs
	},
	CategoryBools: func(p convert.Policy, _ ScalarType) convert.Converter {
		return p.ConvertBools
	},
	CategoryInts: func(p convert.Policy, t ScalarType) convert.Converter {
		w := widthOf(t)
		return func(raw interface{}) convert.Value { return p.ConvertInts(raw, w) }
	},
	CategoryFloats: func(p convert.Policy, t ScalarType) convert.Converter {
		w := widthOf(t)
		return func(raw interface{}) convert.Value { return p.ConvertFloats(raw, w) }
	},
	CategoryDates: func(p convert.Policy, _ ScalarType) convert.Converter {
		return func(raw interface{}) convert.Value { return p.ConvertDates(raw, "") }
	},
	CategoryArrays: func(p convert.Policy, t ScalarType) convert.Converter {
		if t == TypeDateArray || t == TypeDate {
			return func(raw interface{}) convert.Value {
				return p.ReadDatesToArray(raw, convert.DateArrayOptions{})
			}
		}
		return p.ReadRampToArray
	},
}

// converterFor picks the named schedule parser for known schedule fields and
// the category converter for everything else.
func converterFor(p convert.Policy, f FieldSpec) convert.Converter {
	if c, ok := p.ArrayConverterFor(f.Name); ok {
		return c
	}
	return categoryConverters[f.Category](p, f.Type)
}

func widthOf(t ScalarType) convert.Width {
	if t == TypeInt32 || t == TypeFloat32 {
		return convert.Width32
	}
	return convert.Width64
}
