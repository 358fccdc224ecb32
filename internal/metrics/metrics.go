// Package metrics applies oracle-declared deltas to a world's five health
// counters. Counters have no game bounds; they only have to fit the 32-bit
// column they are stored in.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"eraforge/internal/extract"
)

const (
	KeyEconomy          = "economy_metric"
	KeySocialStability  = "social_stability_metric"
	KeyEcology          = "ecology_metric"
	KeySecurity         = "security_metric"
	KeyPoliticalSupport = "political_support_metric"
)

var ErrParse = errors.New("unparseable metric delta")

// ParseError names the metric whose delta token could not be applied.
type ParseError struct {
	Key   string
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("metric %s: unparseable delta %q", e.Key, e.Token)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

type Snapshot struct {
	Economy          int `json:"economy_metric"`
	SocialStability  int `json:"social_stability_metric"`
	Ecology          int `json:"ecology_metric"`
	Security         int `json:"security_metric"`
	PoliticalSupport int `json:"political_support_metric"`
}

// Keys lists the metric names in their canonical order.
func Keys() []string {
	return []string{KeyEconomy, KeySocialStability, KeyEcology, KeySecurity, KeyPoliticalSupport}
}

func (s Snapshot) Get(key string) (int, bool) {
	switch key {
	case KeyEconomy:
		return s.Economy, true
	case KeySocialStability:
		return s.SocialStability, true
	case KeyEcology:
		return s.Ecology, true
	case KeySecurity:
		return s.Security, true
	case KeyPoliticalSupport:
		return s.PoliticalSupport, true
	}
	return 0, false
}

func (s *Snapshot) set(key string, value int) {
	switch key {
	case KeyEconomy:
		s.Economy = value
	case KeySocialStability:
		s.SocialStability = value
	case KeyEcology:
		s.Ecology = value
	case KeySecurity:
		s.Security = value
	case KeyPoliticalSupport:
		s.PoliticalSupport = value
	}
}

// Apply returns a new full snapshot with every delta applied. Keys missing
// from deltas (or set to null) leave their counter unchanged. Nothing is
// returned on error, so a partial snapshot can never escape.
func Apply(current Snapshot, deltas map[string]extract.Value) (Snapshot, error) {
	next := current
	for _, key := range Keys() {
		token, ok := deltas[key]
		if !ok {
			continue
		}
		delta, err := parseDelta(key, token)
		if err != nil {
			return Snapshot{}, err
		}
		value, _ := current.Get(key)
		if !inRange(value + delta) {
			return Snapshot{}, &ParseError{Key: key, Token: token.Text()}
		}
		next.set(key, value+delta)
	}
	return next, nil
}

func parseDelta(key string, token extract.Value) (int, error) {
	switch token.Kind() {
	case extract.KindNull:
		return 0, nil
	case extract.KindString:
		text := strings.TrimSpace(token.Text())
		switch text {
		case "+":
			return 1, nil
		case "-":
			return -1, nil
		case "0":
			return 0, nil
		}
		n, ok := plainInt(text)
		if !ok {
			return 0, &ParseError{Key: key, Token: token.Text()}
		}
		return n, nil
	case extract.KindNumber:
		n, ok := integral(token.Text())
		if !ok {
			return 0, &ParseError{Key: key, Token: token.Text()}
		}
		return n, nil
	default:
		return 0, &ParseError{Key: key, Token: token.Text()}
	}
}

// Counters are stored as 32-bit integers.
var (
	minCounter = decimal.NewFromInt(math.MinInt32)
	maxCounter = decimal.NewFromInt(math.MaxInt32)
)

func plainInt(text string) (int, bool) {
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func integral(literal string) (int, bool) {
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return 0, false
	}
	if d.IsZero() {
		return 0, true
	}
	if exp := d.Exponent(); exp > 10 || exp < -30 || !d.IsInteger() {
		return 0, false
	}
	if d.LessThan(minCounter) || d.GreaterThan(maxCounter) {
		return 0, false
	}
	return int(d.IntPart()), true
}

func inRange(n int) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}

// Collect gathers the five metric keys present at the top level of doc.
func Collect(doc *extract.Document) map[string]extract.Value {
	deltas := make(map[string]extract.Value)
	if doc == nil {
		return deltas
	}
	for _, key := range Keys() {
		value, err := doc.Lookup(key)
		if err != nil {
			continue
		}
		deltas[key] = value
	}
	return deltas
}

// Initial reads a starting snapshot from a genesis document. Missing or
// unreadable counters start at zero; their keys are returned for logging.
func Initial(doc *extract.Document) (Snapshot, []string) {
	var snapshot Snapshot
	var defaulted []string
	values := Collect(doc)
	for _, key := range Keys() {
		value, ok := values[key]
		if !ok {
			defaulted = append(defaulted, key)
			continue
		}
		n, ok := startingValue(value)
		if !ok {
			defaulted = append(defaulted, key)
			continue
		}
		snapshot.set(key, n)
	}
	return snapshot, defaulted
}

// startingValue accepts plain integers only; sign tokens are deltas, not
// levels.
func startingValue(v extract.Value) (int, bool) {
	switch v.Kind() {
	case extract.KindString:
		return plainInt(strings.TrimSpace(v.Text()))
	case extract.KindNumber:
		return integral(v.Text())
	default:
		return 0, false
	}
}
