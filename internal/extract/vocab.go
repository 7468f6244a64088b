package extract

// Bounded keyword vocabularies for classification. These are deliberately kept
// as auditable rulesets rather than an opaque NLP model so severity behavior
// stays testable. Matching is case-insensitive substring.

// regulatoryKeywords flag regulatory-risk language in news titles and
// documents.
var regulatoryKeywords = []string{
	"warning",
	"recall",
	"ban",
	"embargo",
	"withdrawal",
	"shortage",
	"suspension",
	"seizure",
	"import alert",
	"injunction",
}

// patentVocabulary marks a sentence as assertion-bearing. Precision over
// recall: a sentence without any of these words is dropped.
var patentVocabulary = []string{
	"patent",
	"blocking",
	"exclusivity",
	"infringement",
	"claim",
	"expiry",
	"expiration",
	"enforceable",
	"invalidated",
}
