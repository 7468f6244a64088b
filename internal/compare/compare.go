package compare

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/pharmintel/pharmawatch/internal/models"
)

// Thresholds are the tunable policy constants for trade-change severity.
// Band edges are inclusive on the lower bound: a ratio delta below Low is
// noise, [Low, Medium) is low, [Medium, High) is medium, >= High is high.
type Thresholds struct {
	TradeLowDelta    float64
	TradeMediumDelta float64
	TradeHighDelta   float64
	YoYFlipDelta     float64
}

// DefaultThresholds returns the production policy defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TradeLowDelta:    0.02,
		TradeMediumDelta: 0.05,
		TradeHighDelta:   0.10,
		YoYFlipDelta:     0.20,
	}
}

// Comparator diffs two assertion sets and classifies the result. Compare is a
// pure function of its inputs: no side effects, deterministic, safe to call
// concurrently.
type Comparator struct {
	thresholds Thresholds
}

// NewComparator creates a comparator with the given severity thresholds.
func NewComparator(thresholds Thresholds) *Comparator {
	return &Comparator{thresholds: thresholds}
}

// reversalVocabulary signals reversal of a prior blocking determination.
var reversalVocabulary = []string{
	"invalidated",
	"no longer enforceable",
	"overturned",
	"revoked",
	"unenforceable",
	"struck down",
	"held invalid",
}

var digitRunPattern = regexp.MustCompile(`\d{7,8}`)

// categoryOrder fixes the order of ChangedFields for deterministic output.
var categoryOrder = []string{
	models.CategoryPatents,
	models.CategoryTrade,
	models.CategoryMarket,
	models.CategoryRegulatory,
	models.CategoryInternalDoc,
	models.CategoryOther,
}

// Compare diffs baseline against observation and produces the comparison
// result. Invoking it with observation == baseline yields secure/none, which
// is how a first-time notification is established without a false alarm.
func (c *Comparator) Compare(baseline, observation models.AssertionSet) models.ComparisonResult {
	acc := newAccumulator()

	c.comparePatents(baseline, observation, acc)
	c.compareTrade(baseline, observation, acc)
	c.compareMarket(baseline, observation, acc)
	c.compareRegulatory(baseline, observation, acc)
	c.compareInternalDocs(baseline, observation, acc)
	c.compareOtherFlags(baseline, observation, acc)

	return acc.result()
}

func (c *Comparator) comparePatents(baseline, observation models.AssertionSet, acc *accumulator) {
	base := patentsByNumber(baseline.Patents)
	obs := patentsByNumber(observation.Patents)

	var added, removed, horizonChanged []string

	for _, p := range observation.Patents {
		prior, known := base[p.PatentNumber]
		if !known {
			added = append(added, p.PatentNumber)
			if p.Blocking != nil && *p.Blocking {
				acc.flag(models.CategoryPatents, models.SeverityHigh, "new blocking patent detected")
			} else {
				acc.flag(models.CategoryPatents, models.SeverityLow, "new patent detected")
			}
			continue
		}
		switch {
		case prior.Expiry != nil && p.Expiry != nil && !prior.Expiry.Equal(*p.Expiry):
			horizonChanged = append(horizonChanged, p.PatentNumber)
			acc.flag(models.CategoryPatents, models.SeverityMedium, "patent expiry horizon changed")
		case (prior.Expiry == nil) != (p.Expiry == nil):
			// Expiry appearing or disappearing is new information, not a
			// confirmed horizon change. Kept conservative.
			horizonChanged = append(horizonChanged, p.PatentNumber)
			acc.flag(models.CategoryPatents, models.SeverityLow, "patent expiry data changed")
		}
	}

	for _, p := range baseline.Patents {
		if _, still := obs[p.PatentNumber]; !still {
			// Detection failure vs. true removal is undecidable here; never
			// escalated beyond low.
			removed = append(removed, p.PatentNumber)
			acc.flag(models.CategoryPatents, models.SeverityLow, "patent no longer detected")
		}
	}

	if acc.changed[models.CategoryPatents] {
		acc.diff(models.CategoryPatents,
			summarizePatents(baseline.Patents),
			summarizePatents(observation.Patents)+patentDelta(added, removed, horizonChanged))
	}
}

func (c *Comparator) compareTrade(baseline, observation models.AssertionSet, acc *accumulator) {
	oldRatio := baseline.Trade.ImportDependencyRatio
	newRatio := observation.Trade.ImportDependencyRatio

	switch {
	case oldRatio != nil && newRatio != nil:
		delta := math.Abs(*newRatio - *oldRatio)
		if delta == 0 {
			break
		}
		switch {
		case delta >= c.thresholds.TradeHighDelta:
			acc.flag(models.CategoryTrade, models.SeverityHigh, "import dependency shifted materially")
		case delta >= c.thresholds.TradeMediumDelta:
			acc.flag(models.CategoryTrade, models.SeverityMedium, "import dependency shifted")
		case delta >= c.thresholds.TradeLowDelta:
			acc.flag(models.CategoryTrade, models.SeverityLow, "import dependency drifted")
		}
	case oldRatio != nil || newRatio != nil:
		acc.flag(models.CategoryTrade, models.SeverityLow, "import dependency data availability changed")
	}

	oldYoY := baseline.Trade.YoYChange
	newYoY := observation.Trade.YoYChange
	if oldYoY != nil && newYoY != nil && *oldYoY**newYoY < 0 &&
		math.Abs(*newYoY-*oldYoY) > c.thresholds.YoYFlipDelta {
		acc.flag(models.CategoryTrade, models.SeverityMedium, "trade trend reversed")
	}

	if acc.changed[models.CategoryTrade] {
		acc.diff(models.CategoryTrade,
			summarizeTrade(baseline.Trade),
			summarizeTrade(observation.Trade))
	}
}

func (c *Comparator) compareMarket(baseline, observation models.AssertionSet, acc *accumulator) {
	if marketEqual(baseline.Market, observation.Market) {
		return
	}
	acc.flag(models.CategoryMarket, models.SeverityLow, "market facts changed")
	acc.diff(models.CategoryMarket,
		summarizeMarket(baseline.Market),
		summarizeMarket(observation.Market))
}

func (c *Comparator) compareRegulatory(baseline, observation models.AssertionSet, acc *accumulator) {
	known := make(map[string]bool, len(baseline.Regulatory))
	for _, mention := range baseline.Regulatory {
		known[mention.Keyword] = true
	}

	patentLinked := hasPatentReferencingAssertion(observation)

	var fresh []string
	for _, mention := range observation.Regulatory {
		if known[mention.Keyword] {
			continue
		}
		known[mention.Keyword] = true
		fresh = append(fresh, mention.Keyword)
		if patentLinked {
			// A regulatory action co-occurring with a patent reference is
			// materially riskier.
			acc.flag(models.CategoryRegulatory, models.SeverityHigh, "regulatory signal coincides with patent reference")
		} else {
			acc.flag(models.CategoryRegulatory, models.SeverityMedium, fmt.Sprintf("new regulatory signal: %s", mention.Keyword))
		}
	}

	if len(fresh) > 0 {
		acc.diff(models.CategoryRegulatory,
			joinKeywords(baseline.Regulatory),
			joinKeywords(observation.Regulatory))
	}
}

func (c *Comparator) compareInternalDocs(baseline, observation models.AssertionSet, acc *accumulator) {
	known := make(map[string]bool, len(baseline.InternalDocAssertions))
	for _, assertion := range baseline.InternalDocAssertions {
		known[normalizeStatement(assertion.Statement)] = true
	}

	baselineBlocking := hasBlockingPatent(baseline.Patents)
	baselineNumbers := patentDigits(baseline.Patents)

	var fresh int
	for _, assertion := range observation.InternalDocAssertions {
		if known[normalizeStatement(assertion.Statement)] {
			continue
		}
		fresh++
		acc.flag(models.CategoryInternalDoc, models.SeverityLow, "new internal document assertion")

		lower := strings.ToLower(assertion.Statement)
		if !containsAny(lower, reversalVocabulary) {
			continue
		}
		strict := quotesKnownPatent(assertion.Statement, baselineNumbers)
		if baselineBlocking {
			acc.flag(models.CategoryInternalDoc, models.SeverityHigh, "prior blocking determination contradicted")
			acc.manualReview = true
		}
		if !strict {
			// Contradiction language without a strict quote of a known patent
			// number: not trusted to auto-resolve.
			acc.manualReview = true
		}
	}

	if fresh > 0 {
		acc.diff(models.CategoryInternalDoc,
			fmt.Sprintf("%d assertions", len(baseline.InternalDocAssertions)),
			fmt.Sprintf("%d assertions (%d new)", len(observation.InternalDocAssertions), fresh))
	}
}

func (c *Comparator) compareOtherFlags(baseline, observation models.AssertionSet, acc *accumulator) {
	known := make(map[string]bool, len(baseline.OtherFlags))
	for _, flag := range baseline.OtherFlags {
		known[flag] = true
	}

	var fresh []string
	for _, flag := range observation.OtherFlags {
		if !known[flag] {
			known[flag] = true
			fresh = append(fresh, flag)
		}
	}
	if len(fresh) == 0 {
		return
	}
	acc.flag(models.CategoryOther, models.SeverityLow, "new unclassified signal")
	acc.diff(models.CategoryOther,
		strings.Join(baseline.OtherFlags, ", "),
		strings.Join(observation.OtherFlags, ", "))
}

// accumulator gathers per-category contributions and combines them into the
// final result. The decision reason tracks the first reason observed at the
// highest severity seen so far.
type accumulator struct {
	changed      map[string]bool
	diffs        map[string]models.CategoryDiff
	severity     models.Severity
	reason       string
	reasonRank   int
	manualReview bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		changed:  make(map[string]bool),
		diffs:    make(map[string]models.CategoryDiff),
		severity: models.SeverityNone,
	}
}

func (a *accumulator) flag(category string, severity models.Severity, reason string) {
	a.changed[category] = true
	a.severity = models.MaxSeverity(a.severity, severity)
	if severity.Rank() > a.reasonRank || a.reason == "" {
		a.reason = reason
		a.reasonRank = severity.Rank()
	}
}

func (a *accumulator) diff(category, oldValue, newValue string) {
	a.diffs[category] = models.CategoryDiff{OldValue: oldValue, NewValue: newValue}
}

func (a *accumulator) result() models.ComparisonResult {
	changedFields := make([]string, 0, len(a.changed))
	for _, category := range categoryOrder {
		if a.changed[category] {
			changedFields = append(changedFields, category)
		}
	}

	if len(changedFields) == 0 {
		return models.ComparisonResult{
			Status:         models.StatusSecure,
			ChangedFields:  []string{},
			Severity:       models.SeverityNone,
			DiffDetails:    map[string]models.CategoryDiff{},
			DecisionReason: "no material change detected",
		}
	}

	return models.ComparisonResult{
		Status:               models.StatusChanged,
		ChangedFields:        changedFields,
		Severity:             a.severity,
		DiffDetails:          a.diffs,
		RequiresManualReview: a.manualReview || a.severity == models.SeverityHigh,
		DecisionReason:       a.reason,
	}
}

func patentsByNumber(patents []models.PatentAssertion) map[string]models.PatentAssertion {
	byNumber := make(map[string]models.PatentAssertion, len(patents))
	for _, p := range patents {
		byNumber[p.PatentNumber] = p
	}
	return byNumber
}

func hasBlockingPatent(patents []models.PatentAssertion) bool {
	for _, p := range patents {
		if p.Blocking != nil && *p.Blocking {
			return true
		}
	}
	return false
}

// hasPatentReferencingAssertion reports whether the observation carries a doc
// assertion naming a patent, either by vocabulary or by number.
func hasPatentReferencingAssertion(set models.AssertionSet) bool {
	for _, assertion := range set.InternalDocAssertions {
		lower := strings.ToLower(assertion.Statement)
		if strings.Contains(lower, "patent") || digitRunPattern.MatchString(assertion.Statement) {
			return true
		}
	}
	return false
}

// patentDigits returns the bare digit runs of the known patent numbers so a
// quoted number matches with or without its jurisdiction prefix.
func patentDigits(patents []models.PatentAssertion) []string {
	var digits []string
	for _, p := range patents {
		if run := digitRunPattern.FindString(p.PatentNumber); run != "" {
			digits = append(digits, run)
		}
	}
	return digits
}

func quotesKnownPatent(statement string, digits []string) bool {
	for _, run := range digits {
		if strings.Contains(statement, run) {
			return true
		}
	}
	return false
}

func summarizePatents(patents []models.PatentAssertion) string {
	blocking := 0
	for _, p := range patents {
		if p.Blocking != nil && *p.Blocking {
			blocking++
		}
	}
	return fmt.Sprintf("%d patents (%d blocking)", len(patents), blocking)
}

func patentDelta(added, removed, horizonChanged []string) string {
	var parts []string
	if len(added) > 0 {
		parts = append(parts, "added "+strings.Join(added, ", "))
	}
	if len(removed) > 0 {
		parts = append(parts, "removed "+strings.Join(removed, ", "))
	}
	if len(horizonChanged) > 0 {
		parts = append(parts, "expiry changed "+strings.Join(horizonChanged, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return "; " + strings.Join(parts, "; ")
}

func summarizeTrade(trade models.TradePosture) string {
	return fmt.Sprintf("importDependencyRatio=%s yoyChange=%s",
		formatOptional(trade.ImportDependencyRatio),
		formatOptional(trade.YoYChange))
}

func formatOptional(value *float64) string {
	if value == nil {
		return "unset"
	}
	return fmt.Sprintf("%.3f", *value)
}

func summarizeMarket(market map[string]interface{}) string {
	if len(market) == 0 {
		return "no market facts"
	}
	keys := make([]string, 0, len(market))
	for key := range market {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, market[key]))
	}
	return strings.Join(parts, " ")
}

func marketEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		other, ok := b[key]
		if !ok || fmt.Sprintf("%v", value) != fmt.Sprintf("%v", other) {
			return false
		}
	}
	return true
}

func joinKeywords(mentions []models.RegulatoryMention) string {
	if len(mentions) == 0 {
		return "none"
	}
	keywords := make([]string, 0, len(mentions))
	seen := make(map[string]bool, len(mentions))
	for _, mention := range mentions {
		if !seen[mention.Keyword] {
			seen[mention.Keyword] = true
			keywords = append(keywords, mention.Keyword)
		}
	}
	return strings.Join(keywords, ", ")
}

func normalizeStatement(statement string) string {
	return strings.ToLower(strings.TrimSpace(statement))
}

func containsAny(lower string, vocabulary []string) bool {
	for _, word := range vocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
