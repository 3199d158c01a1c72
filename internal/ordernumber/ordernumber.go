// Package ordernumber derives and validates human-readable order identifiers
// of the form <yyyymmdd>-<D|T><NNN>.
//
// Numbers are never reserved here. Two callers may pick the same next number;
// the orders primary key rejects the second insert and the caller re-queries.
package ordernumber

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linzen78111/pos2/internal/entity"
)

const (
	MinSequence = 1
	MaxSequence = 999

	dateLayout = "20060102"
)

var (
	// ErrInvalid reports an identifier that does not follow the format.
	ErrInvalid = errors.New("invalid order identifier")
	// ErrExhausted reports that every sequence number of a day is taken.
	ErrExhausted = errors.New("order numbers exhausted")
)

var (
	fullPattern   = regexp.MustCompile(`^(\d{8})-([DT])(\d{3})$`)
	suffixPattern = regexp.MustCompile(`-([DT])(\d{3})$`)
	prefixPattern = regexp.MustCompile(`^\d{1,8}$`)
)

// ID is a parsed order identifier.
type ID struct {
	Date     string
	DineType entity.DineType
	Sequence int
}

// String formats the identifier.
func (id ID) String() string {
	return Format(id.Date, id.DineType, id.Sequence)
}

// Format builds an identifier from its parts.
func Format(date string, dineType entity.DineType, sequence int) string {
	return fmt.Sprintf("%s-%c%03d", date, dineType.Code(), sequence)
}

// DateOf renders a date in the identifier date layout.
func DateOf(t time.Time) string {
	return t.Format(dateLayout)
}

// Parse strictly validates an identifier submitted for a new order.
func Parse(s string) (ID, error) {
	m := fullPattern.FindStringSubmatch(s)
	if m == nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	seq, _ := strconv.Atoi(m[3])
	if seq < MinSequence || seq > MaxSequence {
		return ID{}, fmt.Errorf("%w: sequence out of range in %q", ErrInvalid, s)
	}
	dineType := entity.Takeout
	if m[2] == "D" {
		dineType = entity.DineIn
	}
	return ID{Date: m[1], DineType: dineType, Sequence: seq}, nil
}

// ValidDatePrefix reports whether prefix can be used to filter identifiers.
// Only digits are accepted, so the prefix never carries LIKE wildcards.
func ValidDatePrefix(prefix string) bool {
	return prefixPattern.MatchString(prefix)
}

// LikePattern is the coarse SQL LIKE filter for identifiers of a date prefix
// and dine type. UsedSequences performs the exact match afterwards.
func LikePattern(datePrefix string, dineType entity.DineType) string {
	return datePrefix + "%-" + string(dineType.Code()) + "%"
}

// UsedSequences extracts the sequence numbers of identifiers that start with
// datePrefix and end in the dine type's code plus three digits. Identifiers
// that do not match are skipped. The result is ascending and duplicate free.
func UsedSequences(ids []string, datePrefix string, dineType entity.DineType) []int {
	code := string(dineType.Code())
	seen := make(map[int]struct{}, len(ids))
	used := make([]int, 0, len(ids))
	for _, id := range ids {
		if !strings.HasPrefix(id, datePrefix) {
			continue
		}
		m := suffixPattern.FindStringSubmatch(id)
		if m == nil || m[1] != code {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		used = append(used, n)
	}
	sort.Ints(used)
	return used
}

// NextFree returns the lowest sequence in [MinSequence, MaxSequence] absent
// from used.
func NextFree(used []int) (int, error) {
	taken := make(map[int]struct{}, len(used))
	for _, n := range used {
		taken[n] = struct{}{}
	}
	for n := MinSequence; n <= MaxSequence; n++ {
		if _, ok := taken[n]; !ok {
			return n, nil
		}
	}
	return 0, ErrExhausted
}
