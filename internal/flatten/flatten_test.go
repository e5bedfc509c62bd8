package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panabill/invoice-extractor/internal/reconcile"
	"github.com/panabill/invoice-extractor/internal/schema"
)

func sampleFields() reconcile.Fields {
	return reconcile.Fields{
		InvoiceNumber: "123456789",
		NIS:           "6012355002",
		BillingMonth:  "MAYO 2024",
		Tariff:        "BTD",
		GrandTotal:    schema.AmountFromFloat(1549.19),
		PeriodTotal:   schema.AmountFromFloat(1549.19),
		CargoFijo:     schema.AmountFromFloat(3.16),
		Energia:       schema.AmountFromFloat(1534.72),
		EnergyDetail:  "[]",
	}
}

func TestColumnsFixedContract(t *testing.T) {
	cols := Columns()
	require.Len(t, cols, 46)
	assert.Equal(t, "Número de factura", cols[0])
	assert.Equal(t, "NIS", cols[1])
	assert.Equal(t, "Gran total", cols[9])
	assert.Equal(t, "Cargo Fijo", cols[28])
	assert.Equal(t, "Detalle Energía (kWh e importe)", cols[45])
}

func TestColumnsReturnsCopy(t *testing.T) {
	cols := Columns()
	cols[0] = "mutated"
	assert.Equal(t, "Número de factura", Columns()[0])
}

func TestFlattenEveryColumnPresent(t *testing.T) {
	rec := Flatten(reconcile.Fields{})
	values := rec.Values()
	require.Len(t, values, 46)
	for i, v := range values {
		switch tv := v.(type) {
		case string:
			// identity columns default to "", the detail column may be ""
			_ = tv
		case float64:
			assert.Zero(t, tv, "column %d should default to 0", i)
		default:
			t.Fatalf("column %d has unexpected type %T", i, v)
		}
	}
}

func TestFlattenDeterministic(t *testing.T) {
	f := sampleFields()
	a := Flatten(f)
	b := Flatten(f)
	assert.Equal(t, a.Values(), b.Values())
}

func TestFlattenValueLookup(t *testing.T) {
	rec := Flatten(sampleFields())
	assert.Equal(t, "123456789", rec.Value("Número de factura"))
	assert.Equal(t, "6012355002", rec.Value("NIS"))
	assert.InDelta(t, 1549.19, rec.Value("Gran total").(float64), 1e-9)
	assert.InDelta(t, 3.16, rec.Value("Cargo Fijo").(float64), 1e-9)
	assert.Nil(t, rec.Value("No Such Column"))
}

func TestFilledCount(t *testing.T) {
	empty := Flatten(reconcile.Fields{})
	filled, total := empty.FilledCount()
	assert.Equal(t, 46, total)
	assert.Equal(t, 0, filled)

	rec := Flatten(sampleFields())
	filled, total = rec.FilledCount()
	assert.Equal(t, 46, total)
	// 4 identity strings + 4 amounts + the "[]" detail string
	assert.Equal(t, 9, filled)
}
