package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pharmintel/pharmawatch/internal/models"
)

// Extractor normalizes heterogeneous inputs (multi-agent payload bundles or
// raw document text) into a canonical AssertionSet. Extraction is total: it
// never fails, and malformed or absent input degrades to empty fields.
type Extractor struct{}

// NewExtractor creates a new assertion extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// patentNumberPattern recovers candidate patent numbers from unstructured
// text. Bare digit runs of patent-number length, deliberately permissive.
var patentNumberPattern = regexp.MustCompile(`\b\d{7,8}\b`)

// Empty returns an AssertionSet with every collection empty and every
// optional scalar unset. This is what absent input extracts to.
func Empty() models.AssertionSet {
	return models.AssertionSet{
		Patents:               []models.PatentAssertion{},
		Market:                map[string]interface{}{},
		Regulatory:            []models.RegulatoryMention{},
		InternalDocAssertions: []models.DocAssertion{},
		OtherFlags:            []string{},
	}
}

// Bundle extracts an AssertionSet from a structured multi-agent payload
// bundle keyed by upstream agent identifier. Each payload is probed by every
// shape reader (patent-bearing, trade-bearing, news-bearing,
// synthesis-bearing) and the resulting fragments are merged; agents are
// visited in identifier order so extraction is deterministic.
func (e *Extractor) Bundle(payloads map[string]interface{}) models.AssertionSet {
	set := Empty()
	if len(payloads) == 0 {
		return set
	}

	agentIDs := make([]string, 0, len(payloads))
	for id := range payloads {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)

	for _, id := range agentIDs {
		payload, ok := asMap(payloads[id])
		if !ok {
			continue
		}
		readPatents(payload, &set)
		readTrade(payload, &set)
		readMarket(payload, &set)
		readNews(payload, &set)
		readSynthesis(payload, &set)
		readFlags(payload, &set)
	}

	set.Patents = dedupePatents(set.Patents)
	return set
}

// Document extracts an AssertionSet from a raw text blob: a regulatory
// keyword scan, permissive patent-number recovery, and sentence-level doc
// assertions for sentences carrying patent vocabulary.
func (e *Extractor) Document(text string) models.AssertionSet {
	set := Empty()
	if strings.TrimSpace(text) == "" {
		return set
	}

	sentences := splitSentences(text)

	lower := strings.ToLower(text)
	for _, keyword := range regulatoryKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		set.Regulatory = append(set.Regulatory, models.RegulatoryMention{
			Keyword:       keyword,
			SourceSnippet: snippetFor(sentences, text, keyword),
		})
	}

	for _, raw := range patentNumberPattern.FindAllString(text, -1) {
		set.Patents = append(set.Patents, models.PatentAssertion{
			PatentNumber: NormalizePatentNumber(raw),
			ClaimType:    models.ClaimOther,
		})
	}

	for _, sentence := range sentences {
		if containsAny(strings.ToLower(sentence), patentVocabulary) {
			set.InternalDocAssertions = append(set.InternalDocAssertions, models.DocAssertion{
				Statement:     sentence,
				SourceSnippet: sentence,
			})
		}
	}

	set.Patents = dedupePatents(set.Patents)
	return set
}

// NormalizePatentNumber prefixes a bare numeric token with the US
// jurisdiction marker. Already-prefixed numbers pass through unchanged.
func NormalizePatentNumber(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "US") {
		return upper
	}
	return "US" + upper
}

// dedupePatents collapses duplicate patent numbers, keeping first-seen order.
// Later occurrences win for blocking and expiry, and fill in title/claim type
// when the earlier occurrence lacked them.
func dedupePatents(patents []models.PatentAssertion) []models.PatentAssertion {
	if len(patents) == 0 {
		return patents
	}

	index := make(map[string]int, len(patents))
	unique := make([]models.PatentAssertion, 0, len(patents))

	for _, p := range patents {
		at, seen := index[p.PatentNumber]
		if !seen {
			index[p.PatentNumber] = len(unique)
			unique = append(unique, p)
			continue
		}
		if p.Blocking != nil {
			unique[at].Blocking = p.Blocking
		}
		if p.Expiry != nil {
			unique[at].Expiry = p.Expiry
		}
		if unique[at].Title == "" {
			unique[at].Title = p.Title
		}
		if unique[at].ClaimType == "" || unique[at].ClaimType == models.ClaimOther {
			if p.ClaimType != "" {
				unique[at].ClaimType = p.ClaimType
			}
		}
	}

	return unique
}

// splitSentences breaks text on sentence terminators. Very short fragments
// are dropped since they cannot carry an assertion worth keeping.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 15 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\t' {
				flush()
			}
		}
	}
	flush()

	return sentences
}

// snippetFor returns the first sentence containing the keyword, falling back
// to a fixed-width window around the first occurrence in the raw text.
func snippetFor(sentences []string, text, keyword string) string {
	for _, sentence := range sentences {
		if strings.Contains(strings.ToLower(sentence), keyword) {
			return sentence
		}
	}

	at := strings.Index(strings.ToLower(text), keyword)
	if at < 0 {
		return ""
	}
	start := at - 60
	if start < 0 {
		start = 0
	}
	end := at + len(keyword) + 60
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func containsAny(lower string, vocabulary []string) bool {
	for _, word := range vocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
