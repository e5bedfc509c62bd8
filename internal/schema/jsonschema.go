package schema

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the extraction service as an output constraint
// and also use it locally to reject replies that are not invoice-shaped.
// Nothing is required: every section and field is optional by contract, and
// extra keys are tolerated (the reconciler ignores what it does not know).
func BuildInvoiceJSONSchema() map[string]any {
	amount := map[string]any{"type": []string{"number", "string", "null"}}
	text := map[string]any{"type": []string{"string", "number", "null"}}

	section := func(props map[string]any) map[string]any {
		return map[string]any{
			"type":       []string{"object", "null"},
			"properties": props,
		}
	}

	lineItem := map[string]any{
		"type": []string{"array", "null"},
		"items": section(map[string]any{
			"concepto": text,
			"importe":  amount,
		}),
	}
	history := map[string]any{
		"type": []string{"array", "null"},
		"items": section(map[string]any{
			"mes":     text,
			"kwh":     amount,
			"importe": amount,
		}),
	}

	summaryProps := map[string]any{
		"numero_factura": text, "nis": text, "mes_factura": text, "tarifa": text,
		"periodo_lectura_desde": text, "periodo_lectura_hasta": text,
		"tipo_lectura": text, "sector": text,
		"total_mes": amount, "gran_total": amount,
		"historico_consumo_kwh": amount, "historico_consumo_kw": amount,
		"reactiva_kvarh": amount, "demanda_media_f": amount,
		"interes_por_mora": amount, "subsidio_ley_15_recargo": amount,
		"compensacion_por_incumplimiento": amount,
		"cargo_fijo":                      amount, "energia": amount,
		"demanda_maxima": amount, "deman_max_gen": amount,
		"demanda_max_punta": amount, "demanda_baja_f_punta": amount,
		"energia_punta": amount, "energia_f_punta": amount, "energia_llano": amount,
		"var_combustible": amount, "var_transmision": amount, "var_generacion": amount,
		"detalle_energia": map[string]any{"type": []string{"array", "null"}},
		"otros_detalles_factura": section(map[string]any{
			"generacion_kwh": amount, "transmision_kwh": amount,
			"distribucion_kwh": amount, "compensaciones": amount,
			"ajustes": amount, "descuentos": amount,
		}),
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"informacion_cliente": section(map[string]any{
				"nombre_cliente": text, "direccion": text, "ciudad": text,
				"nis": text, "contrato": text, "ruta": text,
			}),
			"datos_factura": section(map[string]any{
				"numero_factura": text, "mes_factura": text, "fecha_emision": text,
				"fecha_vencimiento": text, "fecha_corte": text, "medidor": text,
				"sector": text, "tipo_lectura": text,
			}),
			"periodo_lectura": section(map[string]any{
				"fecha_desde": text, "fecha_hasta": text, "dias": amount, "tarifa": text,
			}),
			"lecturas_medidor": section(map[string]any{
				"energia_activa": section(map[string]any{
					"lectura_anterior": amount, "lectura_actual": amount, "consumo": amount,
				}),
				"energia_reactiva": section(map[string]any{"consumo": amount}),
				"demanda":          section(map[string]any{"lectura_actual": amount}),
			}),
			"cargos_energia": section(map[string]any{
				"generacion": amount, "transmision": amount, "distribucion": amount,
				"var_combustible": amount, "var_transmision": amount, "var_generacion": amount,
			}),
			"conceptos_facturacion": lineItem,
			"historico_consumo":     history,
			"demandas_detalladas": section(map[string]any{
				"demanda_maxima": amount, "demanda_punta": amount,
				"demanda_fuera_punta": amount, "demanda_generacion": amount,
			}),
			"energia_por_franjas": section(map[string]any{
				"energia_punta": amount, "energia_fuera_punta": amount, "energia_llano": amount,
			}),
			"totales": section(map[string]any{
				"total_mes": amount, "gran_total": amount,
				"saldo_anterior": amount, "saldo_corte": amount,
			}),
			"resumen_tabular": section(summaryProps),
		},
	}
}
