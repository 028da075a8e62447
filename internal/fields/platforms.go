package fields

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlatformPattern describes how one marketplace formats its order identifiers.
type PlatformPattern struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Pattern string   `yaml:"pattern"`
	Bonus   int      `yaml:"bonus"`
	// Groups is the canonical dashed layout (digits per group), used to repair
	// runs OCR split with spaces. Empty for non-numeric ids.
	Groups []int `yaml:"groups"`
	// RequireMention limits the pattern to texts that name the platform; used
	// for bare numeric formats that would match any long number.
	RequireMention bool `yaml:"require_mention"`

	re *regexp.Regexp
}

const maxPlatformBonus = 10

// DigitCount is the number of digits in the canonical layout.
func (p PlatformPattern) DigitCount() int {
	n := 0
	for _, g := range p.Groups {
		n += g
	}
	return n
}

// Format renders digits in the canonical dashed layout. ok is false when the
// digit count does not match exactly.
func (p PlatformPattern) Format(digits string) (string, bool) {
	if len(p.Groups) == 0 || len(digits) != p.DigitCount() {
		return "", false
	}
	parts := make([]string, 0, len(p.Groups))
	at := 0
	for _, g := range p.Groups {
		parts = append(parts, digits[at:at+g])
		at += g
	}
	return strings.Join(parts, "-"), true
}

func (p PlatformPattern) mentionedIn(lower string) int {
	n := strings.Count(lower, strings.ToLower(p.Name))
	for _, a := range p.Aliases {
		n += strings.Count(lower, strings.ToLower(a))
	}
	return n
}

func (p *PlatformPattern) compile() error {
	re, err := regexp.Compile(`(?i)` + p.Pattern)
	if err != nil {
		return fmt.Errorf("platform %s: %w", p.Name, err)
	}
	p.re = re
	if p.Bonus > maxPlatformBonus {
		p.Bonus = maxPlatformBonus
	}
	return nil
}

var defaultPlatforms = []PlatformPattern{
	{Name: "amazon", Pattern: `\b\d{3}-\d{7}-\d{7}\b`, Bonus: 10, Groups: []int{3, 7, 7}},
	{Name: "flipkart", Pattern: `\bOD\d{15,21}\b`, Bonus: 10},
	{Name: "shopsy", Pattern: `\bSP\d{15,21}\b`, Bonus: 8, RequireMention: true},
	{Name: "myntra", Pattern: `\b\d{7}-\d{7}-\d{7}\b`, Bonus: 8, Groups: []int{7, 7, 7}},
	{Name: "meesho", Pattern: `\b\d{12,20}_\d{1,2}\b`, Bonus: 8},
	{Name: "ajio", Pattern: `\bFN\d{9,12}\b`, Bonus: 8},
	{Name: "nykaa", Pattern: `\bNYK[A-Z0-9]{6,16}\b`, Bonus: 8},
	{Name: "tata cliq", Aliases: []string{"tatacliq", "cliq"}, Pattern: `\b(?:TCL|TPL)\d{8,14}\b`, Bonus: 7},
	{Name: "jiomart", Pattern: `\b\d{14,16}[A-Z]?\b`, Bonus: 6, RequireMention: true},
	{Name: "snapdeal", Pattern: `\b\d{10,12}\b`, Bonus: 5, RequireMention: true},
	{Name: "bigbasket", Aliases: []string{"bbnow"}, Pattern: `\bBB[A-Z0-9]{8,14}\b`, Bonus: 6},
	{Name: "blinkit", Pattern: `\b\d{9,12}\b`, Bonus: 5, RequireMention: true},
	{Name: "zepto", Pattern: `\b[A-Z]{2,4}\d{8,14}\b`, Bonus: 5, RequireMention: true},
	{Name: "swiggy", Aliases: []string{"instamart"}, Pattern: `\b\d{12,16}\b`, Bonus: 5, RequireMention: true},
	{Name: "firstcry", Pattern: `\b\d{7,9}[A-Z]{1,2}\b`, Bonus: 5, RequireMention: true},
	{Name: "purplle", Pattern: `\bPUR\d{7,12}\b`, Bonus: 6},
	{Name: "ebay", Pattern: `\b\d{2}-\d{5}-\d{5}\b`, Bonus: 8, Groups: []int{2, 5, 5}},
	{Name: "walmart", Pattern: `\b\d{7}-\d{8}\b`, Bonus: 6, Groups: []int{7, 8}, RequireMention: true},
}

// DefaultPlatforms returns a compiled copy of the built-in table.
func DefaultPlatforms() []PlatformPattern {
	out := make([]PlatformPattern, len(defaultPlatforms))
	copy(out, defaultPlatforms)
	for i := range out {
		if err := out[i].compile(); err != nil {
			panic(err)
		}
	}
	return out
}

// LoadPlatforms reads extra patterns from YAML:
//
//	platforms:
//	  - name: lenskart
//	    pattern: '\bLK\d{9}\b'
//	    bonus: 6
func LoadPlatforms(r io.Reader) ([]PlatformPattern, error) {
	var doc struct {
		Platforms []PlatformPattern `yaml:"platforms"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode platform patterns: %w", err)
	}
	for i := range doc.Platforms {
		if strings.TrimSpace(doc.Platforms[i].Name) == "" {
			return nil, fmt.Errorf("platform pattern %d: name is required", i)
		}
		if err := doc.Platforms[i].compile(); err != nil {
			return nil, err
		}
	}
	return doc.Platforms, nil
}

// MergePlatforms overlays extra onto base; an entry with an existing name replaces it.
func MergePlatforms(base, extra []PlatformPattern) []PlatformPattern {
	out := make([]PlatformPattern, 0, len(base)+len(extra))
	index := map[string]int{}
	for _, p := range base {
		index[strings.ToLower(p.Name)] = len(out)
		out = append(out, p)
	}
	for _, p := range extra {
		if i, ok := index[strings.ToLower(p.Name)]; ok {
			out[i] = p
			continue
		}
		index[strings.ToLower(p.Name)] = len(out)
		out = append(out, p)
	}
	return out
}
