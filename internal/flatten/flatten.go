// Package flatten projects reconciled invoice fields into the fixed tabular
// row written to spreadsheets. Column labels and their order are a
// compatibility contract with existing consumers; do not reorder.
package flatten

import (
	"github.com/panabill/invoice-extractor/internal/reconcile"
)

// Column labels, grouped the way the consolidated sheet groups them:
// identity/metadata, totals, meter readings, consumption history, demand,
// energy by band, line-item categories, energy charges, other details.
var columns = []string{
	"Número de factura",
	"NIS",
	"Mes de la factura",
	"Tarifa",
	"Periodo de lectura desde",
	"Periodo de lectura hasta",
	"Tipo de lectura",
	"Sector",
	"Total del mes",
	"Gran total",
	"Saldo anterior",
	"Saldo a corte",
	"Lectura anterior kWh",
	"Lectura actual kWh",
	"Consumo kWh",
	"Consumo reactiva kVARh",
	"Demanda actual kW",
	"Histórico consumo kWh",
	"Histórico consumo kW",
	"Reactiva kVARh",
	"Demanda Media F",
	"Demanda Máxima",
	"Deman. Max. Gen.",
	"Demanda Max. Punta",
	"Demanda Baja F. Punta",
	"Energía Punta",
	"Energía F. Punta",
	"Energía Llano",
	"Cargo Fijo",
	"Energía",
	"Interés por Mora",
	"Subsidio Ley 15 (Recargo)",
	"Compensación por Incumplimiento",
	"Generación",
	"Transmisión",
	"Distribución",
	"Var. Combustible",
	"Var. Transmisión",
	"Var. Generación",
	"Generación kWh",
	"Transmisión kWh",
	"Distribución kWh",
	"Compensaciones",
	"Ajustes",
	"Descuentos",
	"Detalle Energía (kWh e importe)",
}

// Columns returns the fixed column header, in output order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// FlatRecord is one row of the output table: every column present, text
// defaulting to "" and numbers to 0. Constructed once per document and
// immutable thereafter.
type FlatRecord struct {
	values []any // parallel to columns; string or float64
}

// Flatten maps reconciled fields onto the fixed column set.
func Flatten(f reconcile.Fields) *FlatRecord {
	return &FlatRecord{values: []any{
		f.InvoiceNumber,
		f.NIS,
		f.BillingMonth,
		f.Tariff,
		f.PeriodFrom,
		f.PeriodTo,
		f.ReadingType,
		f.Sector,
		f.PeriodTotal.Float(),
		f.GrandTotal.Float(),
		f.PriorBalance.Float(),
		f.CutoffBalance.Float(),
		f.PrevReadingKWh.Float(),
		f.CurrReadingKWh.Float(),
		f.ConsumptionKWh.Float(),
		f.ReactiveKVARh.Float(),
		f.DemandCurrentKW.Float(),
		f.HistoryKWh.Float(),
		f.HistoryKW.Float(),
		f.HistoryReactive.Float(),
		f.DemandMediaF.Float(),
		f.DemandMax.Float(),
		f.DemandMaxGen.Float(),
		f.DemandMaxPeak.Float(),
		f.DemandLowFPeak.Float(),
		f.EnergyPeak.Float(),
		f.EnergyFPeak.Float(),
		f.EnergyFlat.Float(),
		f.CargoFijo.Float(),
		f.Energia.Float(),
		f.InteresMora.Float(),
		f.Subsidio.Float(),
		f.Compensacion.Float(),
		f.Generation.Float(),
		f.Transmission.Float(),
		f.Distribution.Float(),
		f.VarCombustible.Float(),
		f.VarTransmision.Float(),
		f.VarGeneracion.Float(),
		f.GenerationKWh.Float(),
		f.TransmissionKWh.Float(),
		f.DistributionKWh.Float(),
		f.Compensations.Float(),
		f.Adjustments.Float(),
		f.Discounts.Float(),
		f.EnergyDetail,
	}}
}

// Values returns the row values in column order.
func (r *FlatRecord) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// Value returns the value for a column label, or nil when the label is
// unknown.
func (r *FlatRecord) Value(column string) any {
	for i, c := range columns {
		if c == column {
			return r.values[i]
		}
	}
	return nil
}

// FilledCount reports how many columns carry a non-empty, non-zero value,
// plus the total column count. Operator-facing diagnostics only.
func (r *FlatRecord) FilledCount() (filled, total int) {
	for _, v := range r.values {
		switch t := v.(type) {
		case string:
			if t != "" {
				filled++
			}
		case float64:
			if t != 0 {
				filled++
			}
		}
	}
	return filled, len(r.values)
}
