package privacy

import (
	"regexp"
	"sort"
)

// Category labels reported in SanitizedContent.RemovedFields.
const (
	CategoryEmail         = "email"
	CategoryPhone         = "phone"
	CategorySSN           = "ssn"
	CategoryCreditCard    = "credit_card"
	CategoryDateOfBirth   = "date_of_birth"
	CategoryStreetAddress = "street_address"
	CategoryZipCode       = "zip_code"
	CategoryName          = "name"
	CategorySchoolID      = "school_id"
)

// Pattern pairs a category label with its matcher.
type Pattern struct {
	Category string
	Re       *regexp.Regexp
}

// builtinPatterns is ordered: when two equally long matches overlap, the
// earlier category wins.
var builtinPatterns = []Pattern{
	{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{CategoryPhone, regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)|\b\d{3})[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{CategorySSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`)},
	{CategoryCreditCard, regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{1,4}\b`)},
	{CategoryDateOfBirth, regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/.-](?:0?[1-9]|[12][0-9]|3[01])[/.-](?:19|20)\d{2}\b`)},
	{CategoryStreetAddress, regexp.MustCompile(`(?i)\b\d+\s+(?:[A-Za-z]+\s+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd|Court|Ct)\b\.?`)},
	{CategoryZipCode, regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)},
	{CategoryName, regexp.MustCompile(`\b(?i:Student|Pupil|Child)\s+[A-Z][a-z]+\s+[A-Z][a-z]+\b`)},
	{CategoryName, regexp.MustCompile(`\b(?:Mrs|Mr|Ms|Dr)\.?\s+[A-Z][a-z]+\b`)},
	{CategorySchoolID, regexp.MustCompile(`(?i)\b(?:Student|Teacher|School|District)\s+ID[:\s]+[\w-]+\b`)},
}

// piiFieldNames are lower-cased key fragments that mark a record field as
// PII regardless of its value.
var piiFieldNames = []string{
	"email",
	"phone",
	"ssn",
	"dateofbirth",
	"address",
	"zipcode",
	"studentid",
	"teacherid",
	"parentemail",
	"firstname",
	"lastname",
}

// BuiltinPatterns returns a copy of the built-in detector table.
func BuiltinPatterns() []Pattern {
	out := make([]Pattern, len(builtinPatterns))
	copy(out, builtinPatterns)
	return out
}

// patternTable assembles the detector table for one call. A custom pattern
// whose label matches a built-in category replaces every built-in detector
// of that category; other custom patterns are appended in label order.
func patternTable(custom map[string]*regexp.Regexp) []Pattern {
	if len(custom) == 0 {
		return builtinPatterns
	}

	table := make([]Pattern, 0, len(builtinPatterns)+len(custom))
	replaced := make(map[string]bool, len(custom))
	for _, p := range builtinPatterns {
		if re, ok := custom[p.Category]; ok {
			if !replaced[p.Category] && re != nil {
				table = append(table, Pattern{p.Category, re})
			}
			replaced[p.Category] = true
			continue
		}
		table = append(table, p)
	}

	labels := make([]string, 0, len(custom))
	for label := range custom {
		if !replaced[label] {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	for _, label := range labels {
		if re := custom[label]; re != nil {
			table = append(table, Pattern{label, re})
		}
	}
	return table
}
