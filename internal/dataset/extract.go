package dataset

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kiranshivaraju/risco/pkg/models"
)

// Synonymous source keys, highest priority first. Study documents are
// written by several form versions, so each attribute has more than one name.
var (
	ValueKeys    = []string{"valor_estimado", "valor_estimado_total", "estimativa_valor", "estimated_value"}
	DurationKeys = []string{"prazo_execucao_dias", "prazo_execucao", "prazo", "prazo_contrato", "execution_duration_days"}
	CategoryKeys = []string{"categoria_objeto", "categoria", "tipo_objeto", "object_category"}
	ModalityKeys = []string{"modalidade_licitacao", "modalidade", "bidding_modality"}

	valueMembers    = []string{"valor", "total", "valor_total"}
	durationMembers = []string{"dias", "valor", "total"}
)

var (
	reNonNumeric = regexp.MustCompile(`[^0-9.,\-]`)
	reFirstNum   = regexp.MustCompile(`-?\d[\d.,]*`)
)

// ExtractValue returns the estimated value of a study document.
func ExtractValue(data map[string]any) (float64, bool) {
	return extractNumber(data, ValueKeys, valueMembers, parseMoney)
}

// ExtractDuration returns the execution duration of a study document in days.
func ExtractDuration(data map[string]any) (float64, bool) {
	return extractNumber(data, DurationKeys, durationMembers, parseDuration)
}

// ExtractCategory returns the normalized object category, or "" when absent.
func ExtractCategory(data map[string]any) string {
	return extractLabel(data, CategoryKeys)
}

// ExtractModality returns the normalized bidding modality, or "" when absent.
func ExtractModality(data map[string]any) string {
	return extractLabel(data, ModalityKeys)
}

// SnapshotFromStudy builds the model input for one study. The value is
// log1p-transformed and the duration clipped to be non-negative; missing
// numeric attributes are left as NaN.
func SnapshotFromStudy(study models.ProcurementStudy) models.FeatureSnapshot {
	snap := models.FeatureSnapshot{
		ValueLog:     math.NaN(),
		DurationDays: math.NaN(),
		Category:     ExtractCategory(study.Data),
		Modality:     ExtractModality(study.Data),
	}
	if v, ok := ExtractValue(study.Data); ok {
		snap.ValueLog = math.Log1p(math.Max(v, 0))
	}
	if d, ok := ExtractDuration(study.Data); ok {
		snap.DurationDays = math.Max(d, 0)
	}
	return snap
}

// extractNumber tries each key in priority order and returns the first value
// that parses. A present but unparseable key falls through to the next one.
func extractNumber(data map[string]any, keys, members []string, parse func(any) (float64, bool)) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	for _, key := range keys {
		raw, ok := search(data, key)
		if !ok {
			continue
		}
		if nested, isMap := raw.(map[string]any); isMap {
			if raw, ok = member(nested, members); !ok {
				continue
			}
		}
		if v, ok := parse(raw); ok {
			return v, true
		}
	}
	return 0, false
}

func extractLabel(data map[string]any, keys []string) string {
	raw, ok := lookup(data, keys)
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// lookup tries each key in order and returns the first non-empty value found
// anywhere in the document.
func lookup(data map[string]any, keys []string) (any, bool) {
	if len(data) == 0 {
		return nil, false
	}
	for _, key := range keys {
		if v, ok := search(data, key); ok {
			return v, true
		}
	}
	return nil, false
}

// search looks for key at the top level of node first, then depth-first
// through nested maps and lists.
func search(node any, key string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		if v, ok := n[key]; ok && !isEmpty(v) {
			return v, true
		}
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v, ok := search(n[k], key); ok {
				return v, true
			}
		}
	case []any:
		for _, child := range n {
			if v, ok := search(child, key); ok {
				return v, true
			}
		}
	}
	return nil, false
}

func member(m map[string]any, names []string) (any, bool) {
	for _, name := range names {
		if v, ok := m[name]; ok && !isEmpty(v) {
			return v, true
		}
	}
	return nil, false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// parseMoney accepts numbers and strings such as "R$ 1.500.000,00",
// "1500000.50" or "1.500.000".
func parseMoney(raw any) (float64, bool) {
	if f, ok := asFloat(raw); ok {
		return f, true
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	s = reNonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return 0, false
	}
	return parseDecimal(s)
}

// parseDecimal reads a number written with Brazilian or plain separators.
// A comma is the decimal mark when present; otherwise repeated dots, or a
// single dot followed by exactly three digits, are thousands separators.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimRight(s, ".,")
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case strings.Count(s, ".") == 1 && len(s)-strings.Index(s, ".")-1 == 3:
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// parseDuration accepts numbers (days) and strings such as "420 dias",
// "1.000 dias", "12 meses" or "1,5 anos".
func parseDuration(raw any) (float64, bool) {
	if f, ok := asFloat(raw); ok {
		return f, true
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	s = strings.ToLower(s)
	num := reFirstNum.FindString(s)
	if num == "" {
		return 0, false
	}
	days, ok := parseDecimal(num)
	if !ok {
		return 0, false
	}
	switch {
	case strings.Contains(s, "ano"):
		days *= 365
	case strings.Contains(s, "mes") || strings.Contains(s, "mês"):
		days *= 30
	case strings.Contains(s, "semana"):
		days *= 7
	}
	return days, true
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	}
	return 0, false
}
