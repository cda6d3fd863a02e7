package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequiredColumns is the exact header of a schema file.
var RequiredColumns = []string{
	"FieldName", "DataDesc", "DataCategory", "DataType", "Description", "PossibleValues",
	"DefaultValue", "StratFlag", "StratType", "StratSumSet",
	"GenericLoan", "ConsumerLoan", "ConsumerMortgage", "ConsumerAuto", "ConsumerStudent",
	"ConsumerCard", "ConsumerUnsecured", "CommercialLoan", "CommercialMortgage",
	"CommercialAmortizing", "CommercialBullet", "CommercialRevolver", "CommercialABL", "Required",
}

// schemaRow mirrors one data row. Every cell is trimmed; enumerated cells
// are also lowercased.
type schemaRow struct {
	FieldName            string `col:"FieldName" validate:"required"`
	DataDesc             string `col:"DataDesc" validate:"oneof=uniqueid categorical numeric date flag"`
	DataCategory         string `col:"DataCategory" validate:"datacategory"`
	DataType             string `col:"DataType" validate:"datatype"`
	Description          string `col:"Description"`
	PossibleValues       string `col:"PossibleValues"`
	DefaultValue         string `col:"DefaultValue"`
	StratFlag            string `col:"StratFlag" validate:"stratflag"`
	StratType            string `col:"StratType" validate:"strattype"`
	StratSumSet          string `col:"StratSumSet" validate:"summaryset"`
	GenericLoan          string `col:"GenericLoan" validate:"boolstr"`
	ConsumerLoan         string `col:"ConsumerLoan" validate:"boolstr"`
	ConsumerMortgage     string `col:"ConsumerMortgage" validate:"boolstr"`
	ConsumerAuto         string `col:"ConsumerAuto" validate:"boolstr"`
	ConsumerStudent      string `col:"ConsumerStudent" validate:"boolstr"`
	ConsumerCard         string `col:"ConsumerCard" validate:"boolstr"`
	ConsumerUnsecured    string `col:"ConsumerUnsecured" validate:"boolstr"`
	CommercialLoan       string `col:"CommercialLoan" validate:"boolstr"`
	CommercialMortgage   string `col:"CommercialMortgage" validate:"boolstr"`
	CommercialAmortizing string `col:"CommercialAmortizing" validate:"boolstr"`
	CommercialBullet     string `col:"CommercialBullet" validate:"boolstr"`
	CommercialRevolver   string `col:"CommercialRevolver" validate:"boolstr"`
	CommercialABL        string `col:"CommercialABL" validate:"boolstr"`
	Required             string `col:"Required" validate:"boolstr"`
}

var freeTextColumns = map[string]bool{
	"FieldName": true, "Description": true, "PossibleValues": true, "DefaultValue": true,
}

// newSchemaRow maps a record onto a schemaRow in RequiredColumns order.
func newSchemaRow(record []string) schemaRow {
	var row schemaRow
	v := reflect.ValueOf(&row).Elem()
	for i, name := range RequiredColumns {
		cell := strings.TrimSpace(record[i])
		if !freeTextColumns[name] {
			cell = strings.ToLower(cell)
		}
		v.Field(i).SetString(cell)
	}
	return row
}

func (r schemaRow) flags() map[AssetClass]bool {
	v := reflect.ValueOf(r)
	out := make(map[AssetClass]bool, len(AssetClasses))
	for _, c := range AssetClasses {
		out[c] = v.FieldByName(string(c)).String() == "true"
	}
	return out
}

// toFieldSpec converts a validated row.
func (r schemaRow) toFieldSpec() FieldSpec {
	flag := stratFlags[r.StratFlag]
	spec := FieldSpec{
		Name:           NormalizeName(r.FieldName),
		Desc:           DataDesc(r.DataDesc),
		Category:       categoryAliases[r.DataCategory],
		DataType:       r.DataType,
		Type:           dataTypeTags[r.DataType],
		Description:    strings.TrimSpace(r.Description),
		PossibleValues: strings.TrimSpace(r.PossibleValues),
		DefaultValue:   strings.TrimSpace(r.DefaultValue),
		Stratify:       flag.on,
		StratExtended:  flag.extended,
		StratType:      StratNone,
		SummarySet:     summarySets[r.StratSumSet],
		Required:       r.Required == "true",
	}
	if flag.on {
		spec.StratType = stratTypeAliases[r.StratType]
	}
	flags := r.flags()
	for _, c := range AssetClasses {
		if flags[c] {
			spec.AssetClasses = append(spec.AssetClasses, c)
		}
	}
	return spec
}

// rowValidator checks schema rows against the meta-schema.
type rowValidator struct {
	validate *validator.Validate
}

func newRowValidator() *rowValidator {
	v := validator.New()

	v.RegisterValidation("boolstr", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "true" || s == "false"
	})
	v.RegisterValidation("datacategory", enumValidation(categoryAliases))
	v.RegisterValidation("datatype", enumValidation(dataTypeTags))
	v.RegisterValidation("stratflag", enumValidation(stratFlags))
	v.RegisterValidation("strattype", enumValidation(stratTypeAliases))
	v.RegisterValidation("summaryset", enumValidation(summarySets))

	// Report header names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("col")
	})

	return &rowValidator{validate: v}
}

func enumValidation[V any](allowed map[string]V) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, ok := allowed[fl.Field().String()]
		return ok
	}
}

// check returns the first failing column of row, in header order.
func (rv *rowValidator) check(row schemaRow) (field, expected, actual string, ok bool) {
	err := rv.validate.Struct(row)
	if err == nil {
		return "", "", "", true
	}
	verrs, isVerr := err.(validator.ValidationErrors)
	if !isVerr || len(verrs) == 0 {
		return "", "valid row", err.Error(), false
	}
	fe := verrs[0]
	return fe.Field(), expectedText(fe), fmt.Sprint(fe.Value()), false
}

func expectedText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "non-empty text"
	case "oneof":
		return "one of [" + fe.Param() + "]"
	case "boolstr":
		return "true or false"
	case "datacategory":
		return "one of [" + strings.Join(sortedKeys(categoryAliases), " ") + "]"
	case "datatype":
		return "one of [" + strings.Join(sortedKeys(dataTypeTags), " ") + "]"
	case "stratflag":
		return "one of [" + strings.Join(sortedKeys(stratFlags), " ") + "]"
	case "strattype":
		return "one of [" + strings.Join(sortedKeys(stratTypeAliases), " ") + "]"
	case "summaryset":
		return "blank or one of [" + strings.Join(sortedKeys(summarySets), " ") + "]"
	default:
		return fe.Tag()
	}
}
