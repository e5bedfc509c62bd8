package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExtractionResult is the nested document the extraction service is asked to
// produce for a Panama electricity invoice. Every section and every field is
// optional; the same fact may appear in a dedicated section, in the
// resumen_tabular mirror, and (for some charges) in the line-item list.
type ExtractionResult struct {
	ClientInfo      ClientInfo      `json:"informacion_cliente"`
	InvoiceData     InvoiceData     `json:"datos_factura"`
	ReadingPeriod   ReadingPeriod   `json:"periodo_lectura"`
	MeterReadings   MeterReadings   `json:"lecturas_medidor"`
	EnergyCharges   EnergyCharges   `json:"cargos_energia"`
	LineItems       []LineItem      `json:"conceptos_facturacion"`
	History         []HistoryEntry  `json:"historico_consumo"`
	DemandBreakdown DemandBreakdown `json:"demandas_detalladas"`
	EnergyByBand    EnergyByBand    `json:"energia_por_franjas"`
	Totals          Totals          `json:"totales"`
	Summary         Summary         `json:"resumen_tabular"`
}

type ClientInfo struct {
	Name     Text `json:"nombre_cliente"`
	Address  Text `json:"direccion"`
	City     Text `json:"ciudad"`
	NIS      Text `json:"nis"`
	Contract Text `json:"contrato"`
	Route    Text `json:"ruta"`
}

type InvoiceData struct {
	InvoiceNumber Text `json:"numero_factura"`
	BillingMonth  Text `json:"mes_factura"`
	IssueDate     Text `json:"fecha_emision"`
	DueDate       Text `json:"fecha_vencimiento"`
	CutoffDate    Text `json:"fecha_corte"`
	MeterID       Text `json:"medidor"`
	Sector        Text `json:"sector"`
	ReadingType   Text `json:"tipo_lectura"`
}

type ReadingPeriod struct {
	FromDate Text   `json:"fecha_desde"`
	ToDate   Text   `json:"fecha_hasta"`
	Days     Amount `json:"dias"`
	Tariff   Text   `json:"tarifa"`
}

type MeterReadings struct {
	ActiveEnergy   ActiveEnergy   `json:"energia_activa"`
	ReactiveEnergy ReactiveEnergy `json:"energia_reactiva"`
	Demand         DemandReading  `json:"demanda"`
}

type ActiveEnergy struct {
	PreviousReading Amount `json:"lectura_anterior"`
	CurrentReading  Amount `json:"lectura_actual"`
	Consumption     Amount `json:"consumo"`
}

type ReactiveEnergy struct {
	Consumption Amount `json:"consumo"`
}

type DemandReading struct {
	CurrentReading Amount `json:"lectura_actual"`
}

type EnergyCharges struct {
	Generation     Amount `json:"generacion"`
	Transmission   Amount `json:"transmision"`
	Distribution   Amount `json:"distribucion"`
	FuelVariation  Amount `json:"var_combustible"`
	TransVariation Amount `json:"var_transmision"`
	GenVariation   Amount `json:"var_generacion"`
}

// LineItem is one labeled charge/credit row in the billing breakdown.
type LineItem struct {
	Concept Text   `json:"concepto"`
	Amount  Amount `json:"importe"`
}

// HistoryEntry is one historical billing period shown on the invoice.
type HistoryEntry struct {
	Month  Text   `json:"mes"`
	KWh    Amount `json:"kwh"`
	Amount Amount `json:"importe"`
}

type DemandBreakdown struct {
	Maximum    Amount `json:"demanda_maxima"`
	Peak       Amount `json:"demanda_punta"`
	OffPeak    Amount `json:"demanda_fuera_punta"`
	Generation Amount `json:"demanda_generacion"`
}

type EnergyByBand struct {
	Peak    Amount `json:"energia_punta"`
	OffPeak Amount `json:"energia_fuera_punta"`
	Flat    Amount `json:"energia_llano"`
}

type Totals struct {
	PeriodTotal  Amount `json:"total_mes"`
	GrandTotal   Amount `json:"gran_total"`
	PriorBalance Amount `json:"saldo_anterior"`
	CutoffBal    Amount `json:"saldo_corte"`
}

// Summary is the resumen_tabular convenience mirror. When present it takes
// precedence over the dedicated sections.
type Summary struct {
	InvoiceNumber Text `json:"numero_factura"`
	NIS           Text `json:"nis"`
	BillingMonth  Text `json:"mes_factura"`
	Tariff        Text `json:"tarifa"`
	PeriodFrom    Text `json:"periodo_lectura_desde"`
	PeriodTo      Text `json:"periodo_lectura_hasta"`
	ReadingType   Text `json:"tipo_lectura"`
	Sector        Text `json:"sector"`

	PeriodTotal Amount `json:"total_mes"`
	GrandTotal  Amount `json:"gran_total"`

	HistoryKWh   Amount `json:"historico_consumo_kwh"`
	HistoryKW    Amount `json:"historico_consumo_kw"`
	ReactiveKVAR Amount `json:"reactiva_kvarh"`

	DemandMediaF   Amount `json:"demanda_media_f"`
	DemandMax      Amount `json:"demanda_maxima"`
	DemandMaxGen   Amount `json:"deman_max_gen"`
	DemandMaxPeak  Amount `json:"demanda_max_punta"`
	DemandLowFPeak Amount `json:"demanda_baja_f_punta"`

	EnergyPeak    Amount `json:"energia_punta"`
	EnergyFPeak   Amount `json:"energia_f_punta"`
	EnergyFlat    Amount `json:"energia_llano"`

	CargoFijo      Amount `json:"cargo_fijo"`
	Energia        Amount `json:"energia"`
	InteresMora    Amount `json:"interes_por_mora"`
	Subsidio       Amount `json:"subsidio_ley_15_recargo"`
	Compensacion   Amount `json:"compensacion_por_incumplimiento"`
	VarCombustible Amount `json:"var_combustible"`
	VarTransmision Amount `json:"var_transmision"`
	VarGeneracion  Amount `json:"var_generacion"`

	EnergyDetail json.RawMessage `json:"detalle_energia"`
	OtherDetails OtherDetails    `json:"otros_detalles_factura"`
}

type OtherDetails struct {
	GenerationKWh   Amount `json:"generacion_kwh"`
	TransmissionKWh Amount `json:"transmision_kwh"`
	DistributionKWh Amount `json:"distribucion_kwh"`
	Compensations   Amount `json:"compensaciones"`
	Adjustments     Amount `json:"ajustes"`
	Discounts       Amount `json:"descuentos"`
}

// Decode parses an extraction response body into an ExtractionResult. The
// top level must be a JSON object; inside it every section is decoded
// independently so one malformed section cannot take down the rest. Unknown
// keys are ignored, scalar type mismatches are absorbed by Text/Amount.
func Decode(data []byte) (*ExtractionResult, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("decode extraction result: %w", err)
	}

	doc := &ExtractionResult{}
	decodeSection(sections, "informacion_cliente", &doc.ClientInfo)
	decodeSection(sections, "datos_factura", &doc.InvoiceData)
	decodeSection(sections, "periodo_lectura", &doc.ReadingPeriod)
	decodeSection(sections, "lecturas_medidor", &doc.MeterReadings)
	decodeSection(sections, "cargos_energia", &doc.EnergyCharges)
	decodeSection(sections, "conceptos_facturacion", &doc.LineItems)
	decodeSection(sections, "historico_consumo", &doc.History)
	decodeSection(sections, "demandas_detalladas", &doc.DemandBreakdown)
	decodeSection(sections, "energia_por_franjas", &doc.EnergyByBand)
	decodeSection(sections, "totales", &doc.Totals)
	decodeSection(sections, "resumen_tabular", &doc.Summary)
	return doc, nil
}

// decodeSection unmarshals one section, tolerating absence, null, and wrong
// shapes. A section that fails to decode is simply left at its defaults.
func decodeSection(m map[string]json.RawMessage, key string, dst any) {
	raw, ok := m[key]
	if !ok {
		return
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return
	}
	_ = json.Unmarshal(trimmed, dst)
}
