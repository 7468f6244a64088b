package extract

import (
	"testing"
	"time"

	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Bundle(t *testing.T) {
	extractor := NewExtractor()

	bundle := map[string]interface{}{
		"patent_agent": map[string]interface{}{
			"patents": []interface{}{
				map[string]interface{}{
					"patent_number": "11223344",
					"title":         "Crystalline forms",
					"claim_type":    "composition",
					"expiry":        "2032-06-15",
					"blocking":      true,
				},
				map[string]interface{}{
					"patent_number": "10987654",
					"title":         "Delayed release formulation",
					"claim_type":    "formulation",
					"blocking":      false,
				},
			},
		},
		"trade_agent": map[string]interface{}{
			"trade_insights": map[string]interface{}{
				"import_dependency_ratio": 0.42,
				"yoy_change":              0.15,
			},
		},
		"web_intel_agent": map[string]interface{}{
			"articles": []interface{}{
				map[string]interface{}{"title": "FDA issues WARNING letter over manufacturing site"},
				map[string]interface{}{"title": "Quarterly revenue beats expectations"},
			},
		},
		"internal_knowledge_agent": map[string]interface{}{
			"synthesis": "The composition patent remains blocking until 2032. Sales teams expanded into two new regions last quarter.",
		},
	}

	set := extractor.Bundle(bundle)

	require.Len(t, set.Patents, 2)
	assert.Equal(t, "US11223344", set.Patents[0].PatentNumber)
	assert.Equal(t, models.ClaimComposition, set.Patents[0].ClaimType)
	require.NotNil(t, set.Patents[0].Blocking)
	assert.True(t, *set.Patents[0].Blocking)
	require.NotNil(t, set.Patents[0].Expiry)
	assert.Equal(t, time.Date(2032, 6, 15, 0, 0, 0, 0, time.UTC), set.Patents[0].Expiry.UTC())

	require.NotNil(t, set.Patents[1].Blocking)
	assert.False(t, *set.Patents[1].Blocking)
	assert.Nil(t, set.Patents[1].Expiry, "absent expiry must stay unset")

	require.NotNil(t, set.Trade.ImportDependencyRatio)
	assert.InDelta(t, 0.42, *set.Trade.ImportDependencyRatio, 1e-9)
	require.NotNil(t, set.Trade.YoYChange)
	assert.InDelta(t, 0.15, *set.Trade.YoYChange, 1e-9)
	assert.Nil(t, set.Trade.TradeTotal, "absent trade total must stay unset")

	require.Len(t, set.Regulatory, 1)
	assert.Equal(t, "warning", set.Regulatory[0].Keyword)
	assert.Contains(t, set.Regulatory[0].SourceSnippet, "WARNING letter")

	require.Len(t, set.InternalDocAssertions, 1)
	assert.Contains(t, set.InternalDocAssertions[0].Statement, "blocking until 2032")
}

func TestExtractor_BundleMalformedInput(t *testing.T) {
	extractor := NewExtractor()

	tests := []struct {
		name   string
		bundle map[string]interface{}
	}{
		{name: "nil bundle", bundle: nil},
		{name: "empty bundle", bundle: map[string]interface{}{}},
		{
			name: "payloads of wrong types",
			bundle: map[string]interface{}{
				"patent_agent": "not a map",
				"trade_agent":  42,
				"news_agent":   []interface{}{"loose string"},
			},
		},
		{
			name: "patent list with junk entries",
			bundle: map[string]interface{}{
				"patent_agent": map[string]interface{}{
					"patents": []interface{}{
						"not a map",
						map[string]interface{}{"title": "no number"},
						map[string]interface{}{"patent_number": "  "},
					},
				},
			},
		},
		{
			name: "trade insights of wrong shape",
			bundle: map[string]interface{}{
				"trade_agent": map[string]interface{}{
					"trade_insights": []interface{}{0.42},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var set models.AssertionSet
			assert.NotPanics(t, func() { set = extractor.Bundle(tt.bundle) })
			assert.Empty(t, set.Patents)
			assert.Empty(t, set.Regulatory)
			assert.Empty(t, set.InternalDocAssertions)
			assert.Nil(t, set.Trade.ImportDependencyRatio)
			assert.Nil(t, set.Trade.YoYChange)
		})
	}
}

func TestExtractor_BundleDeduplicatesPatents(t *testing.T) {
	extractor := NewExtractor()

	bundle := map[string]interface{}{
		"agent_a": map[string]interface{}{
			"patents": []interface{}{
				map[string]interface{}{
					"patent_number": "11223344",
					"title":         "Crystalline forms",
					"blocking":      false,
				},
			},
		},
		"agent_b": map[string]interface{}{
			"patents": []interface{}{
				map[string]interface{}{
					"patent_number": "US11223344",
					"expiry":        "2033-01-01",
					"blocking":      true,
				},
			},
		},
	}

	set := extractor.Bundle(bundle)

	require.Len(t, set.Patents, 1)
	patent := set.Patents[0]
	assert.Equal(t, "US11223344", patent.PatentNumber)
	assert.Equal(t, "Crystalline forms", patent.Title)
	// Last seen wins for blocking and expiry.
	require.NotNil(t, patent.Blocking)
	assert.True(t, *patent.Blocking)
	require.NotNil(t, patent.Expiry)
	assert.Equal(t, 2033, patent.Expiry.Year())
}

func TestExtractor_Document(t *testing.T) {
	extractor := NewExtractor()

	text := `Internal counsel review. Patent 11223344 has been invalidated and is no longer enforceable.
The ministry announced an EMBARGO on raw intermediates effective next month. Revenue is unaffected so far.`

	set := extractor.Document(text)

	require.NotEmpty(t, set.Patents)
	assert.Equal(t, "US11223344", set.Patents[0].PatentNumber)
	assert.Nil(t, set.Patents[0].Blocking, "document extraction cannot determine blocking status")

	require.Len(t, set.Regulatory, 1)
	assert.Equal(t, "embargo", set.Regulatory[0].Keyword)
	assert.Contains(t, set.Regulatory[0].SourceSnippet, "EMBARGO")

	require.NotEmpty(t, set.InternalDocAssertions)
	assert.Contains(t, set.InternalDocAssertions[0].Statement, "invalidated")
	assert.Equal(t, set.InternalDocAssertions[0].Statement, set.InternalDocAssertions[0].SourceSnippet)
}

func TestExtractor_DocumentAbsentInput(t *testing.T) {
	extractor := NewExtractor()

	for _, text := range []string{"", "   ", "\n\t"} {
		set := extractor.Document(text)
		assert.Empty(t, set.Patents)
		assert.Empty(t, set.Regulatory)
		assert.Empty(t, set.InternalDocAssertions)
		assert.Empty(t, set.OtherFlags)
		assert.Nil(t, set.Trade.ImportDependencyRatio)
	}
}

func TestNormalizePatentNumber(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"11223344", "US11223344"},
		{"US11223344", "US11223344"},
		{"us11223344", "US11223344"},
		{" 9876543 ", "US9876543"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizePatentNumber(tt.raw), "raw=%q", tt.raw)
	}
}
