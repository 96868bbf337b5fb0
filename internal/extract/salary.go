package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

var amountPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// SalaryRule maps the numbers in a salary tag onto a Compensation.
type SalaryRule struct {
	Multiplier float64
	Currency   string
	Interval   scraper.CompensationInterval
}

// ParseCompensation reads the first two numbers of text (commas ignored) as min and
// max. Fewer than two numbers yields nil.
func ParseCompensation(text string, rule SalaryRule) *scraper.Compensation {
	if text == "" {
		return nil
	}
	matches := amountPattern.FindAllString(strings.ReplaceAll(text, ",", ""), 2)
	if len(matches) < 2 {
		return nil
	}
	lo, err := strconv.ParseFloat(matches[0], 64)
	if err != nil {
		return nil
	}
	hi, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return nil
	}
	multiplier := rule.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	return &scraper.Compensation{
		Interval:  rule.Interval,
		MinAmount: lo * multiplier,
		MaxAmount: hi * multiplier,
		Currency:  rule.Currency,
	}
}
