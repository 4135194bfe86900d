package core

import "strings"

// NormalizeDescription reduces a description to its comparison form:
// trimmed, lowercased, inner whitespace collapsed to single spaces.
func NormalizeDescription(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// IsDuplicate reports whether two expenses look like the same purchase:
// identical cents, same calendar date and the same normalized description.
// A one-cent difference is not a duplicate.
func IsDuplicate(a, b Expense) bool {
	if a.Amount.Cents != b.Amount.Cents {
		return false
	}
	if a.Date.ISO() != b.Date.ISO() {
		return false
	}
	return NormalizeDescription(a.Description) == NormalizeDescription(b.Description)
}

// FindDuplicate scans already-loaded expenses for a duplicate of candidate.
// This is an advisory pre-save heuristic, not a uniqueness constraint:
// concurrent sessions can still both save.
func FindDuplicate(candidate Expense, existing []Expense) (Expense, bool) {
	for _, e := range existing {
		if IsDuplicate(candidate, e) {
			return e, true
		}
	}
	return Expense{}, false
}
