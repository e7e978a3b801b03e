package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shopradar/shopradar/internal/model"
)

// RenderResults formats ranked shops for terminal display, best first.
func RenderResults(shops []model.EnrichedShop) string {
	if len(shops) == 0 {
		return FormatWarning("No shops found.")
	}

	var b strings.Builder
	for i, shop := range shops {
		b.WriteString(renderShop(i+1, shop))
		b.WriteString("\n")
	}
	return b.String()
}

// renderShop formats one ranked shop as a bordered card.
func renderShop(rank int, shop model.EnrichedShop) string {
	title := fmt.Sprintf("%d. %s", rank, shop.Candidate.Name)

	var lines []string
	lines = append(lines, RatingStyle.Render(fmt.Sprintf("%s %.2f", Stars(shop.PredictedRating), shop.PredictedRating)))

	if shop.Candidate.Address != "" {
		lines = append(lines, SubtleStyle.Render(PinIcon+" "+shop.Candidate.Address))
	}

	detail := fmt.Sprintf("%d reviews analyzed", shop.ReviewCount)
	if shop.FromCache {
		detail += "  " + CacheIcon + " cached"
	}
	lines = append(lines, SubtleStyle.Render(detail))

	if shop.Summary != "" {
		lines = append(lines, "", shop.Summary)
	}
	if shop.Explanation != "" {
		lines = append(lines, "", SubtleStyle.Render(shop.Explanation))
	}

	return RenderBox(title, lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Stars renders a rating as a five-character star bar.
func Stars(rating float64) string {
	full := int(rating + 0.5)
	if full < 0 {
		full = 0
	}
	if full > 5 {
		full = 5
	}
	return strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
}
