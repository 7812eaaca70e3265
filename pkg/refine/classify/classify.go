package classify

import (
	"regexp"
	"strings"
)

// Kind is the coarse conversational class of a turn.
type Kind string

const (
	KindGreeting  Kind = "GREETING"
	KindFAQ       Kind = "FAQ"
	KindAnalytics Kind = "ANALYTICS"
)

// Turn is everything the classifier could read off the raw utterance
// without touching the catalog: which slots the user explicitly named,
// and which conversational signals are present. The refiner and the
// rule validator both consume it; "explicit" here is what licenses a
// slot to change during validation.
type Turn struct {
	Raw  string
	Kind Kind

	IsCorrection  bool // "no, I meant ...", "actually ..."
	IsNewQuestion bool // explicit reset language: new question, forget that
	HasProjection bool // "also list names", "give details"

	Metric         string // canonical metric name, "" when none mentioned
	MetricExplicit bool

	Attributes []string // explicitly requested output attributes

	HasRanking       bool // most/least/top/bottom/highest/lowest/best/worst
	HasExplicitScope bool // among/within/from those/out of those
	HasGlobalWords   bool // across all/overall/globally — explicit escalation
	HasFollowupCue   bool // which one/those/them/missing months/...
	RemovalLanguage  bool // "for all time", "remove the filter", "ignore the region"
}

var (
	// The whole utterance must be the greeting; "hi, what was the total
	// expense" is an analytical turn.
	greetingPattern   = regexp.MustCompile(`^(hi|hello|hey)[\s.!?]*$`)
	correctionPattern = regexp.MustCompile(`^no\b|\bi meant\b|\bactually\b|\bnot that\b|\bi said\b`)
)

var rankingWords = []string{
	"most", "least", "highest", "lowest", "best", "worst", "top", "bottom",
}

var explicitScopeWords = []string{
	"among", "within", "from these", "from those", "out of those", "out of these",
}

var globalWords = []string{
	"across all", "overall", "globally", "all vendors", "all accounts",
	"all warehouses", "every vendor", "every account",
}

var followupCues = []string{
	"which one", "which vendor", "which account", "which warehouse",
	"from those", "from these", "from that list", "from the list",
	"among them", "among these", "out of those",
	"the one", "same", "in which months", "which months",
	"when did", "missing months", "for them", "they", "them", "those", "these",
}

var newQuestionCues = []string{
	"new question", "forget that", "forget it", "start over",
	"different question", "unrelated question",
}

var projectionCues = []string{
	"also list", "also show", "list names", "list the names", "show names",
	"give details", "show details", "list details", "include",
}

var removalCues = []string{
	"for all time", "remove the filter", "without the filter",
	"ignore the region", "ignore the city", "any time", "all time",
	"drop the filter",
}

// metricRegistry maps trigger phrases to canonical metric names. Order
// matters: more specific phrases come first so "pending approval" is
// never read as plain approval time.
var metricRegistry = []struct {
	Phrase string
	Metric string
}{
	{"pending approval", MetricPendingApprovalDuration},
	{"pending for", MetricPendingApprovalDuration},
	{"approval time", MetricApprovalTime},
	{"time to approve", MetricApprovalTime},
	{"time taken for approval", MetricApprovalTime},
	{"rejected invoice", MetricRejectedInvoices},
	{"rejected", MetricRejectedInvoices},
	{"missing months", MetricMissingMonths},
	{"not uploaded", MetricMissingMonths},
	{"haven t uploaded", MetricMissingMonths},
	{"haven't uploaded", MetricMissingMonths},
	{"inconsistent", MetricMissingMonths},
	{"how many invoices", MetricInvoiceCount},
	{"invoice count", MetricInvoiceCount},
	{"number of invoices", MetricInvoiceCount},
	{"how many vendors", MetricVendorCount},
	{"vendor count", MetricVendorCount},
	{"number of vendors", MetricVendorCount},
	{"total expense", MetricTotalExpense},
	{"total spend", MetricTotalExpense},
	{"expense", MetricTotalExpense},
	{"expenses", MetricTotalExpense},
	{"spend", MetricTotalExpense},
	{"cost", MetricTotalExpense},
}

// Canonical metric names. ApprovalTime is a completed submission-to-
// approval duration; PendingApprovalDuration is the only metric
// measured against the current instant and excludes terminal invoices.
const (
	MetricTotalExpense            = "TotalExpense"
	MetricInvoiceCount            = "InvoiceCount"
	MetricVendorCount             = "VendorCount"
	MetricRejectedInvoices        = "RejectedInvoices"
	MetricApprovalTime            = "ApprovalTime"
	MetricPendingApprovalDuration = "PendingApprovalDuration"
	MetricMissingMonths           = "MissingMonths"
)

// attributeRegistry maps user wording to canonical attribute names.
var attributeRegistry = []struct {
	Phrase    string
	Attribute string
}{
	{"remarks", "remarks"},
	{"remark", "remarks"},
	{"approval status", "approvalStatus"},
	{"status", "approvalStatus"},
	{"invoice number", "invoiceNumber"},
	{"invoice numbers", "invoiceNumber"},
	{"dates", "dates"},
	{"date", "dates"},
	{"names", "names"},
	{"name", "names"},
	{"amount", "amount"},
	{"amounts", "amount"},
}

// Classify reads the raw turn text into a Turn. It is deliberately
// catalog-free: entity mentions are the binder's job.
func Classify(text string) Turn {
	lower := strings.ToLower(strings.TrimSpace(text))
	t := Turn{Raw: text, Kind: KindAnalytics}

	if greetingPattern.MatchString(lower) {
		t.Kind = KindGreeting
		return t
	}
	if strings.Contains(lower, "how do i") {
		t.Kind = KindFAQ
		return t
	}

	t.IsCorrection = correctionPattern.MatchString(lower)
	t.IsNewQuestion = containsAny(lower, newQuestionCues)
	t.HasProjection = containsAny(lower, projectionCues)
	t.HasRanking = containsAnyWord(lower, rankingWords)
	t.HasExplicitScope = containsAny(lower, explicitScopeWords)
	t.HasGlobalWords = containsAny(lower, globalWords)
	t.HasFollowupCue = containsAny(lower, followupCues)
	t.RemovalLanguage = containsAny(lower, removalCues)

	for _, entry := range metricRegistry {
		if strings.Contains(lower, entry.Phrase) {
			t.Metric = entry.Metric
			t.MetricExplicit = true
			break
		}
	}

	seen := map[string]bool{}
	for _, entry := range attributeRegistry {
		if seen[entry.Attribute] {
			continue
		}
		if containsWordPhrase(lower, entry.Phrase) {
			t.Attributes = append(t.Attributes, entry.Attribute)
			seen[entry.Attribute] = true
		}
	}

	return t
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func containsAnyWord(text string, words []string) bool {
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, ".,!?\"'")
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

// containsWordPhrase matches a phrase on word boundaries so "status"
// does not fire inside "statistics".
func containsWordPhrase(text, phrase string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
	return re.MatchString(text)
}
