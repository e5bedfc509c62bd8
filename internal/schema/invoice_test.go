package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFullDocument(t *testing.T) {
	doc, err := Decode([]byte(`{
		"informacion_cliente": {"nombre_cliente": "HOTEL CENTRAL S.A.", "nis": "6012355 002"},
		"datos_factura": {"numero_factura": "123456789", "sector": "No Residencial"},
		"periodo_lectura": {"fecha_desde": "01/05/2024", "fecha_hasta": "31/05/2024", "dias": 30, "tarifa": "BTD"},
		"lecturas_medidor": {
			"energia_activa": {"lectura_anterior": 1000, "lectura_actual": 1500, "consumo": 500},
			"energia_reactiva": {"consumo": 120},
			"demanda": {"lectura_actual": 45.5}
		},
		"cargos_energia": {"generacion": 100.5, "transmision": 20.25, "distribucion": 30.75},
		"conceptos_facturacion": [
			{"concepto": "Cargo Fijo", "importe": 3.16},
			{"concepto": "Energía", "importe": 1534.72}
		],
		"historico_consumo": [{"mes": "ABR/24", "kwh": 480, "importe": 1400.10}],
		"totales": {"total_mes": 1549.19, "gran_total": 1549.19},
		"resumen_tabular": {"numero_factura": "123456789", "nis": "6012355002", "gran_total": 1549.19}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "HOTEL CENTRAL S.A.", doc.ClientInfo.Name.String())
	assert.Equal(t, "6012355 002", doc.ClientInfo.NIS.String())
	assert.Equal(t, "No Residencial", doc.InvoiceData.Sector.String())
	assert.InDelta(t, 500, doc.MeterReadings.ActiveEnergy.Consumption.Float(), 1e-9)
	require.Len(t, doc.LineItems, 2)
	assert.Equal(t, "Cargo Fijo", doc.LineItems[0].Concept.String())
	assert.InDelta(t, 3.16, doc.LineItems[0].Amount.Float(), 1e-9)
	require.Len(t, doc.History, 1)
	assert.InDelta(t, 1549.19, doc.Summary.GrandTotal.Float(), 1e-9)
}

func TestDecodeToleratesMissingAndNullSections(t *testing.T) {
	doc, err := Decode([]byte(`{"totales": null, "datos_factura": {"numero_factura": "X1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "X1", doc.InvoiceData.InvoiceNumber.String())
	assert.False(t, doc.Totals.GrandTotal.Set)
	assert.Empty(t, doc.LineItems)
}

func TestDecodeToleratesWrongShapes(t *testing.T) {
	doc, err := Decode([]byte(`{
		"conceptos_facturacion": {"not": "a list"},
		"totales": {"gran_total": "no es un numero", "total_mes": 10},
		"resumen_tabular": [1, 2, 3],
		"campo_desconocido": true
	}`))
	require.NoError(t, err)
	assert.Empty(t, doc.LineItems)
	assert.False(t, doc.Totals.GrandTotal.Set)
	assert.InDelta(t, 10, doc.Totals.PeriodTotal.Float(), 1e-9)
	assert.False(t, doc.Summary.GrandTotal.Set)
}

func TestDecodeRejectsNonObjectTopLevel(t *testing.T) {
	_, err := Decode([]byte(`[1,2,3]`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json at all`))
	assert.Error(t, err)
}
