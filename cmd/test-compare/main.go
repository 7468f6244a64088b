// Command test-compare exercises the extraction and comparison pipeline
// locally, without MongoDB or any live collaborator.
//
// Usage:
//
//	test-compare                          # run the built-in demo scenario
//	test-compare baseline.json obs.json   # compare two agent bundles
//	test-compare baseline.json obs.txt    # compare a bundle against a document
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pharmintel/pharmawatch/internal/compare"
	"github.com/pharmintel/pharmawatch/internal/extract"
	"github.com/pharmintel/pharmawatch/internal/models"
)

func main() {
	extractor := extract.NewExtractor()
	comparator := compare.NewComparator(compare.DefaultThresholds())

	var baseline, observation models.AssertionSet

	switch len(os.Args) {
	case 1:
		baseline = extractor.Bundle(demoBundle())
		observation = extractor.Document(demoDocument)
		fmt.Println("Running built-in demo scenario (bundle baseline vs. document observation)")
	case 3:
		baseline = loadBundle(extractor, os.Args[1])
		observation = loadObservation(extractor, os.Args[2])
	default:
		log.Fatalf("usage: %s [baseline.json observation.(json|txt)]", os.Args[0])
	}

	printSet("Baseline", baseline)
	printSet("Observation", observation)

	result := comparator.Compare(baseline, observation)
	fmt.Println("\n=== Comparison Result ===")
	printJSON(result)

	// Self-comparison sanity check: a baseline against itself must be secure.
	self := comparator.Compare(baseline, baseline)
	fmt.Printf("\nSelf-comparison: status=%s severity=%s\n", self.Status, self.Severity)
}

func loadBundle(extractor *extract.Extractor, path string) models.AssertionSet {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read %s: %v", path, err)
	}
	var payloads map[string]interface{}
	if err := json.Unmarshal(data, &payloads); err != nil {
		log.Fatalf("failed to parse %s as an agent bundle: %v", path, err)
	}
	return extractor.Bundle(payloads)
}

func loadObservation(extractor *extract.Extractor, path string) models.AssertionSet {
	if strings.HasSuffix(path, ".json") {
		return loadBundle(extractor, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read %s: %v", path, err)
	}
	return extractor.Document(string(data))
}

func printSet(label string, set models.AssertionSet) {
	fmt.Printf("\n=== %s ===\n", label)
	fmt.Printf("patents=%d regulatory=%d docAssertions=%d flags=%d\n",
		len(set.Patents), len(set.Regulatory), len(set.InternalDocAssertions), len(set.OtherFlags))
	printJSON(set)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal: %v", err)
	}
	fmt.Println(string(data))
}

func demoBundle() map[string]interface{} {
	return map[string]interface{}{
		"patent_agent": map[string]interface{}{
			"patents": []interface{}{
				map[string]interface{}{
					"patent_number": "11223344",
					"title":         "Crystalline forms of the active compound",
					"claim_type":    "composition",
					"expiry":        "2032-06-15",
					"blocking":      true,
				},
				map[string]interface{}{
					"patent_number": "10987654",
					"title":         "Oral formulation with delayed release",
					"claim_type":    "formulation",
					"expiry":        "2029-01-10",
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
				map[string]interface{}{"title": "Generic entrants eye the market ahead of 2032"},
			},
		},
	}
}

const demoDocument = `Internal counsel review, August 2026.
Patent 11223344 has been invalidated by the appeals board and is no longer enforceable.
Separately, the trade desk reports an embargo on raw intermediates from the primary supplier region.
Market access remains stable in current territories.`
