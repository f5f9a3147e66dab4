package metadata

import (
	"regexp"
	"strings"

	"horse.fit/dupscan/internal/langdetect"
)

// publisherSuffixPatterns strip the site name decorations German educational
// publishers append to page titles, so that "Photosynthese – Klexikon" and
// "Photosynthese" compare as the same title.
var publisherSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*wikipedia\s*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*klexikon[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*wikibooks[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*wikiversity[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*planet[\s-]schule[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*lehrer-online[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*lernhelfer[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*sofatutor[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*learningapps[^|]*$`),
	regexp.MustCompile(`(?i)\s*[-–—|:]\s*serlo[^|]*$`),
	regexp.MustCompile(`(?i)\s*\([^)]*\.(de|com|org|net|edu)\)\s*$`),
	regexp.MustCompile(`\s*\|\s*[^|]+\s*$`),
}

var doubleSpacePattern = regexp.MustCompile(`\s{2,}`)

// umlautReplacer folds German umlauts to their ASCII digraph spellings.
var umlautReplacer = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
)

// NormalizeTitle strips publisher suffixes and ampersands from a title.
// It returns "" when the input is blank or when normalization changes
// nothing, so callers only search the extra variant when it differs.
func NormalizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if title == "" {
		return ""
	}

	normalized := title
	for _, pattern := range publisherSuffixPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.ReplaceAll(normalized, "&", "")
	normalized = doubleSpacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	if normalized == "" || normalized == title {
		return ""
	}
	return normalized
}

// TitleSearchVariants lists the title spellings worth searching: the
// literal title, the suffix-stripped form when it differs, and for German
// titles the umlaut-folded spellings ("Gewässer" vs "Gewaesser") that
// older records sometimes carry.
func TitleSearchVariants(raw string) []string {
	title := strings.TrimSpace(raw)
	if title == "" {
		return nil
	}

	variants := []string{title}
	if normalized := NormalizeTitle(title); normalized != "" {
		variants = append(variants, normalized)
	}

	if langdetect.DetectISO6391(title) == "de" {
		for _, variant := range variants {
			if folded := umlautReplacer.Replace(variant); folded != variant {
				variants = append(variants, folded)
			}
		}
	}

	return dedupeStrings(variants)
}
