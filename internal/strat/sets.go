package strat

import (
	"tapestrat/internal/schema"
)

// Product classes found in the product description column.
const (
	ConsumerMortgage     = "consumer_mortgage"
	ConsumerHELOC        = "consumer_heloc"
	ConsumerServicing    = "consumer_servicing"
	ConsumerAuto         = "consumer_auto"
	ConsumerStudent      = "consumer_student"
	ConsumerCard         = "consumer_card"
	ConsumerUnsecured    = "consumer_unsecured"
	CommercialMortgage   = "commercial_mortgage"
	CommercialAmortizing = "commercial_amortizing"
	CommercialBullet     = "commercial_bullet"
	CommercialRevolver   = "commercial_revolver"
	CommercialABL        = "commercial_abl"

	DefaultProductField = "productdesc"
)

// ProductClasses lists the product classes in report order.
var ProductClasses = []string{
	ConsumerMortgage, ConsumerHELOC, ConsumerServicing, ConsumerAuto, ConsumerStudent,
	ConsumerCard, ConsumerUnsecured, CommercialMortgage, CommercialAmortizing,
	CommercialBullet, CommercialRevolver, CommercialABL,
}

// productFlags ties each product class to the schema applicability flag whose
// Required fields it must carry.
var productFlags = map[string]schema.AssetClass{
	ConsumerMortgage:     schema.AssetConsumerMortgage,
	ConsumerHELOC:        schema.AssetConsumerMortgage,
	ConsumerServicing:    schema.AssetConsumerMortgage,
	ConsumerAuto:         schema.AssetConsumerAuto,
	ConsumerStudent:      schema.AssetConsumerStudent,
	ConsumerCard:         schema.AssetConsumerCard,
	ConsumerUnsecured:    schema.AssetConsumerUnsecured,
	CommercialMortgage:   schema.AssetCommercialMortgage,
	CommercialAmortizing: schema.AssetCommercialAmortizing,
	CommercialBullet:     schema.AssetCommercialBullet,
	CommercialRevolver:   schema.AssetCommercialRevolver,
	CommercialABL:        schema.AssetCommercialABL,
}

// IsProductClass reports whether s is a known product class.
func IsProductClass(s string) bool {
	_, ok := productFlags[s]
	return ok
}

// DefaultSetFor picks the report section for a product class: line
// utilization for open-end credit, servicing for servicing tapes and the
// closed-end summary for everything else.
func DefaultSetFor(class string) schema.SummarySet {
	switch class {
	case ConsumerCard, ConsumerHELOC:
		return schema.SetUtilization
	case ConsumerServicing:
		return schema.SetServicing
	default:
		return schema.SetSummary
	}
}

// Field names used by the summary sets.
const (
	fBalOrig      = "bal_orig"
	fBalCurr      = "bal_curr"
	fBalLimitCurr = "bal_limit_curr"
	fRateMargin   = "rate_margin"
	fTermOrig     = "term_orig"
	fTermRem      = "term_rem"
	fFicoOrig     = "fico_orig"
	fFicoCurr     = "fico_curr"
	fLTVOrig      = "uw_ltv_orig"
	fBalOrigCum   = "bal_orig_cum"
	fAppraisal    = "prop_appraisal"
	fDTIOrig      = "uw_dti_orig"
	fDQStatus     = "dq_status"
	fFCStatus     = "fc_status"
	fBKStatus     = "bk_status"
	fState        = "state"
	fModType      = "mod_type"
)

// column computes one output column for a group of records against the
// class pool.
type column struct {
	name     string
	optional []string
	compute  func(g, pool *frame) (Cell, error)
}

// setDef is the table layout of one summary set.
type setDef struct {
	required  []string
	columns   []column
	topStates bool
}

func waOrig(field string, round bool) func(g, pool *frame) (Cell, error) {
	return func(g, _ *frame) (Cell, error) {
		return g.weighted(field, fBalOrig, round)
	}
}

func waCurr(field string, round bool) func(g, pool *frame) (Cell, error) {
	return func(g, _ *frame) (Cell, error) {
		return g.weighted(field, fBalCurr, round)
	}
}

func countCol() column {
	return column{name: "count", compute: func(g, _ *frame) (Cell, error) {
		return ValueCell(float64(g.count(fBalOrig))), nil
	}}
}

func countPctCol() column {
	return column{name: "count_pct", compute: func(g, pool *frame) (Cell, error) {
		return pct(float64(g.count(fBalOrig)), float64(pool.count(fBalOrig))), nil
	}}
}

func sumCol(name, field string) column {
	return column{name: name, compute: func(g, _ *frame) (Cell, error) {
		return ValueCell(g.sum(field)), nil
	}}
}

func sumPctCol(name, field string) column {
	return column{name: name, compute: func(g, pool *frame) (Cell, error) {
		return pct(g.sum(field), pool.sum(field)), nil
	}}
}

func ratioPctCol(name, num, den string) column {
	return column{name: name, compute: func(g, _ *frame) (Cell, error) {
		return pct(g.sum(num), g.sum(den)), nil
	}}
}

func presentPctCol(name, field string) column {
	return column{name: name, compute: func(g, _ *frame) (Cell, error) {
		return pct(float64(g.present(field)), float64(g.n)), nil
	}}
}

func optionalPresentPctCol(name, field string) column {
	c := presentPctCol(name, field)
	c.optional = []string{field}
	return c
}

// pct is 100·num/den rounded to three decimals; a zero denominator is
// NotApplicable.
func pct(num, den float64) Cell {
	if den == 0 {
		return NotApplicable()
	}
	return ValueCell(RoundHalfAway(num/den*100, 3))
}

var summarySets = map[schema.SummarySet]setDef{
	schema.SetNone: {
		required: []string{fBalOrig},
		columns: []column{
			countCol(),
			countPctCol(),
			sumCol("origbal", fBalOrig),
			sumPctCol("origbal_pct", fBalOrig),
			withOptional(sumCol("currbal", fBalCurr), fBalCurr),
			withOptional(sumPctCol("currbal_pct", fBalCurr), fBalCurr),
		},
	},
	schema.SetSummary: {
		required: []string{
			fBalOrig, fBalCurr, fRateMargin, fTermOrig, fTermRem, fFicoOrig, fFicoCurr,
			fLTVOrig, fBalOrigCum, fAppraisal, fDTIOrig, fFCStatus, fBKStatus, fState, fModType,
		},
		columns: []column{
			countCol(),
			countPctCol(),
			sumCol("origbal", fBalOrig),
			sumPctCol("origbal_pct", fBalOrig),
			sumCol("currbal", fBalCurr),
			sumPctCol("currbal_pct", fBalCurr),
			ratioPctCol("factor", fBalCurr, fBalOrig),
			{name: "wa_origrate", compute: waOrig(fRateMargin, false)},
			{name: "wa_origterm", compute: waOrig(fTermOrig, true)},
			{name: "wa_remterm", compute: waCurr(fTermRem, true)},
			{name: "wa_origfico", compute: waOrig(fFicoOrig, true)},
			{name: "wa_currfico", compute: waCurr(fFicoCurr, true)},
			{name: "wa_origltv", compute: waOrig(fLTVOrig, false)},
			{name: "wa_origcltv", compute: func(g, _ *frame) (Cell, error) {
				return ratio(g.sum(fBalOrigCum), g.sum(fAppraisal)), nil
			}},
			{name: "wa_origdti", compute: waOrig(fDTIOrig, false)},
			optionalPresentPctCol("dq_pct", fDQStatus),
			presentPctCol("fc_pct", fFCStatus),
			presentPctCol("bk_pct", fBKStatus),
		},
		topStates: true,
	},
	schema.SetUtilization: {
		required: []string{
			fBalOrig, fBalCurr, fBalLimitCurr, fRateMargin, fFicoOrig, fFicoCurr,
			fFCStatus, fBKStatus, fState,
		},
		columns: []column{
			countCol(),
			countPctCol(),
			sumCol("currbal", fBalCurr),
			sumPctCol("currbal_pct", fBalCurr),
			sumCol("currlimit", fBalLimitCurr),
			sumPctCol("currlimit_pct", fBalLimitCurr),
			ratioPctCol("currutil", fBalCurr, fBalLimitCurr),
			{name: "wa_origrate", compute: waOrig(fRateMargin, false)},
			{name: "wa_origfico", compute: waOrig(fFicoOrig, true)},
			{name: "wa_currfico", compute: waCurr(fFicoCurr, true)},
			presentPctCol("fc_pct", fFCStatus),
			presentPctCol("bk_pct", fBKStatus),
		},
		topStates: true,
	},
	schema.SetServicing: {
		required: []string{
			fBalOrig, fBalCurr, fRateMargin, "svc_rate_pt", "svc_fee_gross", "svc_fee_net",
			"svc_fee_gtee", "svc_fee_late", "svc_fee_pmt", "svc_adv_balrec", "svc_adv_balnorec",
			"svc_adv_tp_balrec", "esc_currbal", "esc_advbal", fModType, fFCStatus, fBKStatus,
		},
		columns: []column{
			countPctCol(),
			sumPctCol("origbal_pct", fBalOrig),
			sumCol("currbal", fBalCurr),
			sumPctCol("currbal_pct", fBalCurr),
			ratioPctCol("factor", fBalCurr, fBalOrig),
			{name: "wa_rate", compute: waCurr(fRateMargin, false)},
			{name: "wa_ptrate", compute: waCurr("svc_rate_pt", false)},
			{name: "wa_svcfee_gross", compute: waCurr("svc_fee_gross", false)},
			{name: "wa_svcfee_net", compute: waCurr("svc_fee_net", false)},
			{name: "wa_fee_gtee", compute: waCurr("svc_fee_gtee", false)},
			{name: "wa_fee_late", compute: waCurr("svc_fee_late", false)},
			{name: "wa_fee_pmt", compute: waCurr("svc_fee_pmt", false)},
			{name: "wa_adv_rec", compute: waCurr("svc_adv_balrec", false)},
			{name: "wa_adv_norec", compute: waCurr("svc_adv_balnorec", false)},
			{name: "wa_adv_tprec", compute: waCurr("svc_adv_tp_balrec", false)},
			{name: "wa_escrow", compute: waCurr("esc_currbal", false)},
			{name: "wa_escrow_adv", compute: waCurr("esc_advbal", false)},
			presentPctCol("mod_pct", fModType),
			presentPctCol("fc_pct", fFCStatus),
			presentPctCol("bk_pct", fBKStatus),
		},
	},
}

func withOptional(c column, fields ...string) column {
	c.optional = fields
	return c
}

func ratio(num, den float64) Cell {
	if den == 0 {
		return NotApplicable()
	}
	return ValueCell(num / den)
}

// RequiredFieldsForSet lists the tape fields a summary set needs.
func RequiredFieldsForSet(set schema.SummarySet) ([]string, bool) {
	def, ok := summarySets[set]
	if !ok {
		return nil, false
	}
	return append([]string(nil), def.required...), true
}
