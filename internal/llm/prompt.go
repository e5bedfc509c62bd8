package llm

import "strings"

// responseSkeleton is the exact JSON shape the model must fill in. Keys are
// the wire contract with internal/schema; do not rename them.
const responseSkeleton = `{
  "informacion_cliente": {
    "nombre_cliente": "",
    "direccion": "",
    "ciudad": "",
    "nis": "",
    "contrato": "",
    "ruta": ""
  },
  "datos_factura": {
    "numero_factura": "",
    "mes_factura": "",
    "fecha_emision": "",
    "fecha_vencimiento": "",
    "fecha_corte": "",
    "medidor": "",
    "sector": "",
    "tipo_lectura": ""
  },
  "periodo_lectura": {
    "fecha_desde": "",
    "fecha_hasta": "",
    "dias": 0,
    "tarifa": ""
  },
  "lecturas_medidor": {
    "energia_activa": {
      "lectura_anterior": 0,
      "lectura_actual": 0,
      "consumo": 0
    },
    "energia_reactiva": {
      "consumo": 0
    },
    "demanda": {
      "lectura_actual": 0
    }
  },
  "cargos_energia": {
    "generacion": 0,
    "transmision": 0,
    "distribucion": 0,
    "var_combustible": 0,
    "var_transmision": 0,
    "var_generacion": 0
  },
  "conceptos_facturacion": [
    {
      "concepto": "Cargo Fijo",
      "importe": 0
    },
    {
      "concepto": "Energía",
      "importe": 0
    }
  ],
  "historico_consumo": [
    {
      "mes": "",
      "kwh": 0,
      "importe": 0
    }
  ],
  "demandas_detalladas": {
    "demanda_maxima": 0,
    "demanda_punta": 0,
    "demanda_fuera_punta": 0,
    "demanda_generacion": 0
  },
  "energia_por_franjas": {
    "energia_punta": 0,
    "energia_fuera_punta": 0,
    "energia_llano": 0
  },
  "totales": {
    "total_mes": 0,
    "gran_total": 0,
    "saldo_anterior": 0,
    "saldo_corte": 0
  },
  "resumen_tabular": {
    "numero_factura": "",
    "nis": "",
    "mes_factura": "",
    "tarifa": "",
    "periodo_lectura_desde": "",
    "periodo_lectura_hasta": "",
    "tipo_lectura": "",
    "sector": "",
    "total_mes": 0,
    "gran_total": 0,
    "historico_consumo_kwh": 0,
    "historico_consumo_kw": 0,
    "reactiva_kvarh": 0,
    "demanda_media_f": 0,
    "interes_por_mora": 0,
    "subsidio_ley_15_recargo": 0,
    "compensacion_por_incumplimiento": 0,
    "cargo_fijo": 0,
    "energia": 0,
    "demanda_maxima": 0,
    "deman_max_gen": 0,
    "demanda_max_punta": 0,
    "demanda_baja_f_punta": 0,
    "energia_punta": 0,
    "energia_f_punta": 0,
    "energia_llano": 0,
    "var_combustible": 0,
    "var_transmision": 0,
    "var_generacion": 0,
    "detalle_energia": [],
    "otros_detalles_factura": {
      "generacion_kwh": 0,
      "transmision_kwh": 0,
      "distribucion_kwh": 0,
      "compensaciones": 0,
      "ajustes": 0,
      "descuentos": 0
    }
  }
}`

// BuildSystemPrompt frames the model as a Panama utility-invoice analyst.
func BuildSystemPrompt() string {
	return strings.Join([]string{
		"Eres un analista experto en facturas de energía eléctrica de Panamá.",
		"Tu especialidad es extraer información estructurada desde tablas ASCII,",
		"sin importar cómo estén formateadas. Respondes SOLO con JSON válido,",
		"sin texto adicional.",
	}, " ")
}

// BuildUserPrompt packages the invoice text with the field-by-field
// extraction instructions and the response skeleton.
func BuildUserPrompt(asciiText string) string {
	var b strings.Builder
	b.WriteString("Analiza LÍNEA POR LÍNEA esta factura de energía eléctrica de Panamá y extrae TODOS los datos disponibles:\n\n")
	b.WriteString(asciiText)
	b.WriteString("\n\nINSTRUCCIONES ESPECÍFICAS - BUSCA CADA CAMPO:\n\n")
	b.WriteString("1. NIS COMPLETO: Si ves \"NIS: 6012355 002\" extrae \"6012355002\" (concatena TODOS los dígitos).\n\n")
	b.WriteString("2. VALORES MONETARIOS (convierte comas):\n")
	b.WriteString("   - \"B/. 1.549,19\" -> 1549.19\n")
	b.WriteString("   - \"B/. 42,68\" -> 42.68\n\n")
	b.WriteString("3. CONSUMOS Y LECTURAS: busca kWh actuales e históricos, kW de demanda, kVARh de reactiva y las lecturas anterior/actual del medidor.\n\n")
	b.WriteString("4. CARGOS ESPECÍFICOS DE ENERGÍA: Generación, Transmisión y Distribución con su valor en B/.\n\n")
	b.WriteString("5. SECTOR: si ves \"Residencial\", \"No Residencial\", \"Comercial\" o \"Industrial\", va en el campo \"sector\".\n\n")
	b.WriteString("6. OTROS DETALLES: Variación por Combustible, Compensación por Incumplimiento, demandas por tipo y energía por franjas horarias.\n\n")
	b.WriteString("7. HISTÓRICO COMPLETO: extrae TODOS los meses mostrados con kWh e importes; no omitas ninguno.\n\n")
	b.WriteString("8. TOTALES - DIFERENCIA CRÍTICA:\n")
	b.WriteString("   - \"TOTAL ESTE MES\" es el total SOLO de este período de facturación -> \"total_mes\".\n")
	b.WriteString("   - \"GRAN TOTAL\" es el total INCLUYENDO saldos pendientes anteriores -> \"gran_total\".\n")
	b.WriteString("   - Si ambos campos muestran el mismo valor en la factura, está bien que coincidan.\n")
	b.WriteString("   - AMBOS campos SIEMPRE deben estar presentes.\n\n")
	b.WriteString("REGLAS CRÍTICAS:\n")
	b.WriteString("- Si ves un valor en la factura, extráelo (no pongas 0).\n")
	b.WriteString("- Convierte correctamente las comas decimales y de miles.\n")
	b.WriteString("- Busca valores en TODA la factura, no solo en una sección.\n")
	b.WriteString("- Extrae cada campo desde su ubicación específica, no copies valores entre campos.\n\n")
	b.WriteString("RESPONDE SOLO CON ESTE JSON (sin texto adicional):\n")
	b.WriteString(responseSkeleton)
	return b.String()
}
