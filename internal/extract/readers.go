package extract

import (
	"strings"
	"time"

	"github.com/pharmintel/pharmawatch/internal/models"
)

// Shape readers. Upstream agent payloads are loosely typed JSON, so each
// reader probes for the sub-structure it understands and contributes a
// partial fragment to the set. A payload that carries none of the known
// shapes contributes nothing. Absent fields stay unset, never zero.

// readPatents pulls a patent list: {"patents": [{patent_number, expiry,
// claim_type, title, blocking}, ...]}. Fields pass through verbatim when
// present.
func readPatents(payload map[string]interface{}, set *models.AssertionSet) {
	items, ok := asSlice(payload["patents"])
	if !ok {
		return
	}

	for _, item := range items {
		entry, ok := asMap(item)
		if !ok {
			continue
		}
		number, ok := asString(pick(entry, "patent_number", "patentNumber", "number"))
		if !ok || strings.TrimSpace(number) == "" {
			continue
		}

		patent := models.PatentAssertion{
			PatentNumber: NormalizePatentNumber(number),
			ClaimType:    models.ClaimOther,
		}
		if title, ok := asString(entry["title"]); ok {
			patent.Title = title
		}
		if claimType, ok := asString(pick(entry, "claim_type", "claimType")); ok {
			patent.ClaimType = normalizeClaimType(claimType)
		}
		if expiry, ok := asTime(entry["expiry"]); ok {
			patent.Expiry = &expiry
		}
		if blocking, ok := asBool(entry["blocking"]); ok {
			patent.Blocking = &blocking
		}

		set.Patents = append(set.Patents, patent)
	}
}

// readTrade pulls the dependency ratio and year-over-year change from a
// nested trade-insights structure.
func readTrade(payload map[string]interface{}, set *models.AssertionSet) {
	insights, ok := asMap(pick(payload, "trade_insights", "tradeInsights"))
	if !ok {
		return
	}

	if ratio, ok := asFloat(pick(insights, "import_dependency_ratio", "importDependencyRatio")); ok {
		set.Trade.ImportDependencyRatio = &ratio
	}
	if yoy, ok := asFloat(pick(insights, "yoy_change", "yoyChange")); ok {
		set.Trade.YoYChange = &yoy
	}
	if total, ok := asFloat(pick(insights, "trade_total", "tradeTotal")); ok {
		set.Trade.TradeTotal = &total
	}
}

// readMarket carries market-size facts through unchanged.
func readMarket(payload map[string]interface{}, set *models.AssertionSet) {
	facts, ok := asMap(pick(payload, "market", "market_insights"))
	if !ok {
		return
	}
	for key, value := range facts {
		set.Market[key] = value
	}
}

// readNews scans short free-text titles from a news/web-intelligence list
// against the regulatory keyword vocabulary.
func readNews(payload map[string]interface{}, set *models.AssertionSet) {
	items, ok := asSlice(pick(payload, "articles", "news", "results"))
	if !ok {
		return
	}

	for _, item := range items {
		entry, ok := asMap(item)
		if !ok {
			continue
		}
		title, ok := asString(pick(entry, "title", "headline"))
		if !ok {
			continue
		}
		lower := strings.ToLower(title)
		for _, keyword := range regulatoryKeywords {
			if strings.Contains(lower, keyword) {
				set.Regulatory = append(set.Regulatory, models.RegulatoryMention{
					Keyword:       keyword,
					SourceSnippet: title,
				})
			}
		}
	}
}

// readSynthesis splits a strategic-synthesis description into sentences and
// keeps the assertion-bearing ones (patent/blocking vocabulary) as doc
// assertions. Precision over recall.
func readSynthesis(payload map[string]interface{}, set *models.AssertionSet) {
	text, ok := asString(pick(payload, "synthesis", "description", "summary"))
	if !ok || strings.TrimSpace(text) == "" {
		return
	}

	for _, sentence := range splitSentences(text) {
		if containsAny(strings.ToLower(sentence), patentVocabulary) {
			set.InternalDocAssertions = append(set.InternalDocAssertions, models.DocAssertion{
				Statement:     sentence,
				SourceSnippet: sentence,
			})
		}
	}
}

// readFlags collects unclassified string signals.
func readFlags(payload map[string]interface{}, set *models.AssertionSet) {
	items, ok := asSlice(pick(payload, "flags", "other_flags"))
	if !ok {
		return
	}
	for _, item := range items {
		if flag, ok := asString(item); ok && flag != "" {
			set.OtherFlags = append(set.OtherFlags, flag)
		}
	}
}

func normalizeClaimType(raw string) models.ClaimType {
	switch models.ClaimType(strings.ToLower(strings.TrimSpace(raw))) {
	case models.ClaimComposition:
		return models.ClaimComposition
	case models.ClaimMethodOfUse:
		return models.ClaimMethodOfUse
	case models.ClaimFormulation:
		return models.ClaimFormulation
	case models.ClaimProcess:
		return models.ClaimProcess
	default:
		return models.ClaimOther
	}
}

// pick returns the first present key from candidates.
func pick(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if value, ok := m[key]; ok {
			return value
		}
	}
	return nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asFloat accepts the numeric types JSON decoding can produce.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asTime accepts time.Time values and common date string layouts.
func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
