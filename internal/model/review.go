package model

import (
	"crypto/md5" //nolint:gosec // dedupe key, not a security boundary
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReviewRecord holds one review's extracted content.
type ReviewRecord struct {
	PublishedAt time.Time
	Author      string
	Text        string
	Rating      float64
}

// DedupeKey identifies a review across fetches. The same author posting the
// same text is treated as one review regardless of source ordering.
func (r *ReviewRecord) DedupeKey() string {
	hash := md5.Sum([]byte(r.Text + r.Author)) //nolint:gosec
	return fmt.Sprintf("%x", hash)
}

// Reviews is a slice of ReviewRecord with ordering and extraction helpers.
type Reviews []ReviewRecord

// SortByDateDesc orders reviews newest-first. Ties are broken by author so
// repeated sorts of the same set are stable.
func (r Reviews) SortByDateDesc() {
	sort.SliceStable(r, func(i, j int) bool {
		if !r[i].PublishedAt.Equal(r[j].PublishedAt) {
			return r[i].PublishedAt.After(r[j].PublishedAt)
		}
		return r[i].Author < r[j].Author
	})
}

// Truncate returns at most n reviews from the front of the slice.
func (r Reviews) Truncate(n int) Reviews {
	if n <= 0 || n >= len(r) {
		return r
	}
	return r[:n]
}

// Dedupe removes duplicate reviews, keeping first occurrence.
func (r Reviews) Dedupe() Reviews {
	seen := make(map[string]bool, len(r))
	out := make(Reviews, 0, len(r))
	for _, review := range r {
		key := review.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, review)
	}
	return out
}

// Texts returns the review bodies, skipping empty ones.
func (r Reviews) Texts() []string {
	texts := make([]string, 0, len(r))
	for _, review := range r {
		if strings.TrimSpace(review.Text) == "" {
			continue
		}
		texts = append(texts, review.Text)
	}
	return texts
}
