// Package reconcile computes one authoritative value per logical invoice
// field from an extraction result that may state the same fact in up to three
// places: a dedicated section, the resumen_tabular mirror, and the billing
// line-item list.
package reconcile

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/schema"
)

// Options tunes reconciliation behavior.
type Options struct {
	// StrictPresence switches the precedence operator from truthy-or
	// (empty string, zero, and absent all mean "no value") to presence-or
	// (an explicit zero beats a fallback). The default, false, reproduces
	// the historical behavior: downstream consumers cannot tell
	// "invoice shows B/.0.00" from "field missing".
	StrictPresence bool
}

// Fields is the reconciled, single-valued view of an invoice. Text fields
// default to "" and amounts to unset (flattened as 0).
type Fields struct {
	InvoiceNumber string
	NIS           string
	BillingMonth  string
	Tariff        string
	PeriodFrom    string
	PeriodTo      string
	ReadingType   string
	Sector        string

	PeriodTotal   schema.Amount
	GrandTotal    schema.Amount
	PriorBalance  schema.Amount
	CutoffBalance schema.Amount

	PrevReadingKWh  schema.Amount
	CurrReadingKWh  schema.Amount
	ConsumptionKWh  schema.Amount
	ReactiveKVARh   schema.Amount
	DemandCurrentKW schema.Amount

	HistoryKWh      schema.Amount
	HistoryKW       schema.Amount
	HistoryReactive schema.Amount

	DemandMediaF   schema.Amount
	DemandMax      schema.Amount
	DemandMaxGen   schema.Amount
	DemandMaxPeak  schema.Amount
	DemandLowFPeak schema.Amount

	EnergyPeak  schema.Amount
	EnergyFPeak schema.Amount
	EnergyFlat  schema.Amount

	CargoFijo    schema.Amount
	Energia      schema.Amount
	InteresMora  schema.Amount
	Subsidio     schema.Amount
	Compensacion schema.Amount

	Generation     schema.Amount
	Transmission   schema.Amount
	Distribution   schema.Amount
	VarCombustible schema.Amount
	VarTransmision schema.Amount
	VarGeneracion  schema.Amount

	GenerationKWh   schema.Amount
	TransmissionKWh schema.Amount
	DistributionKWh schema.Amount
	Compensations   schema.Amount
	Adjustments     schema.Amount
	Discounts       schema.Amount

	EnergyDetail string
}

// Reconcile resolves every field of doc to a single value. doc must not be
// nil; the pipeline never invokes the reconciler for a failed extraction.
func Reconcile(doc *schema.ExtractionResult, opts Options) Fields {
	text := func(primary, fallback schema.Text) string {
		if opts.StrictPresence {
			return primary.OrIfSet(fallback).String()
		}
		return primary.Or(fallback).String()
	}
	amount := func(primary, fallback schema.Amount) schema.Amount {
		if opts.StrictPresence {
			return primary.OrIfSet(fallback)
		}
		return primary.Or(fallback)
	}
	// three-source: mirror, then the classified line item, then the
	// dedicated section (when one exists)
	amount3 := func(mirror, classified, dedicated schema.Amount) schema.Amount {
		return amount(mirror, amount(classified, dedicated))
	}

	sum := &doc.Summary
	buckets := ClassifyLineItems(doc.LineItems)

	return Fields{
		InvoiceNumber: text(sum.InvoiceNumber, doc.InvoiceData.InvoiceNumber),
		NIS:           NormalizeNIS(text(sum.NIS, doc.ClientInfo.NIS)),
		BillingMonth:  text(sum.BillingMonth, doc.InvoiceData.BillingMonth),
		Tariff:        text(sum.Tariff, doc.ReadingPeriod.Tariff),
		PeriodFrom:    text(sum.PeriodFrom, doc.ReadingPeriod.FromDate),
		PeriodTo:      text(sum.PeriodTo, doc.ReadingPeriod.ToDate),
		ReadingType:   text(sum.ReadingType, doc.InvoiceData.ReadingType),
		Sector:        text(sum.Sector, doc.InvoiceData.Sector),

		PeriodTotal:   amount(sum.PeriodTotal, doc.Totals.PeriodTotal),
		GrandTotal:    amount(sum.GrandTotal, doc.Totals.GrandTotal),
		PriorBalance:  doc.Totals.PriorBalance,
		CutoffBalance: doc.Totals.CutoffBal,

		PrevReadingKWh:  doc.MeterReadings.ActiveEnergy.PreviousReading,
		CurrReadingKWh:  doc.MeterReadings.ActiveEnergy.CurrentReading,
		ConsumptionKWh:  doc.MeterReadings.ActiveEnergy.Consumption,
		ReactiveKVARh:   doc.MeterReadings.ReactiveEnergy.Consumption,
		DemandCurrentKW: doc.MeterReadings.Demand.CurrentReading,

		HistoryKWh:      sum.HistoryKWh,
		HistoryKW:       sum.HistoryKW,
		HistoryReactive: sum.ReactiveKVAR,

		DemandMediaF:   sum.DemandMediaF,
		DemandMax:      amount(sum.DemandMax, doc.DemandBreakdown.Maximum),
		DemandMaxGen:   amount(sum.DemandMaxGen, doc.DemandBreakdown.Generation),
		DemandMaxPeak:  amount(sum.DemandMaxPeak, doc.DemandBreakdown.Peak),
		DemandLowFPeak: amount(sum.DemandLowFPeak, doc.DemandBreakdown.OffPeak),

		EnergyPeak:  amount(sum.EnergyPeak, doc.EnergyByBand.Peak),
		EnergyFPeak: amount(sum.EnergyFPeak, doc.EnergyByBand.OffPeak),
		EnergyFlat:  amount(sum.EnergyFlat, doc.EnergyByBand.Flat),

		CargoFijo:    amount(sum.CargoFijo, buckets[constants.ConceptCargoFijo]),
		Energia:      amount(sum.Energia, buckets[constants.ConceptEnergia]),
		InteresMora:  amount(sum.InteresMora, buckets[constants.ConceptInteresMora]),
		Subsidio:     amount(sum.Subsidio, buckets[constants.ConceptSubsidio]),
		Compensacion: amount(sum.Compensacion, buckets[constants.ConceptCompensacion]),

		Generation:   doc.EnergyCharges.Generation,
		Transmission: doc.EnergyCharges.Transmission,
		Distribution: doc.EnergyCharges.Distribution,
		VarCombustible: amount3(sum.VarCombustible,
			buckets[constants.ConceptVarCombustible], doc.EnergyCharges.FuelVariation),
		VarTransmision: amount3(sum.VarTransmision,
			buckets[constants.ConceptVarTransmision], doc.EnergyCharges.TransVariation),
		VarGeneracion: amount3(sum.VarGeneracion,
			buckets[constants.ConceptVarGeneracion], doc.EnergyCharges.GenVariation),

		GenerationKWh:   sum.OtherDetails.GenerationKWh,
		TransmissionKWh: sum.OtherDetails.TransmissionKWh,
		DistributionKWh: sum.OtherDetails.DistributionKWh,
		Compensations:   sum.OtherDetails.Compensations,
		Adjustments:     sum.OtherDetails.Adjustments,
		Discounts:       sum.OtherDetails.Discounts,

		EnergyDetail: renderEnergyDetail(sum.EnergyDetail),
	}
}

// ClassifyLineItems buckets every billing line item by keyword. When several
// items land in the same bucket, the last one in iteration order wins.
func ClassifyLineItems(items []schema.LineItem) map[constants.ConceptCategory]schema.Amount {
	buckets := make(map[constants.ConceptCategory]schema.Amount, len(constants.ConceptRules))
	for _, item := range items {
		if !item.Concept.Set {
			continue
		}
		cat, ok := constants.ClassifyConcept(item.Concept.Val)
		if !ok {
			continue
		}
		buckets[cat] = item.Amount
	}
	return buckets
}

// NormalizeNIS concatenates all digit groups of a customer id into one digit
// string ("6012355 002" -> "6012355002"). Already-concatenated ids pass
// through unchanged; the function never re-splits.
func NormalizeNIS(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return strings.TrimSpace(raw)
	}
	return b.String()
}

// renderEnergyDetail turns the raw detalle_energia list into a compact,
// deterministic string for the single spreadsheet cell it occupies.
func renderEnergyDetail(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "[]"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "[]"
	}
	return buf.String()
}
