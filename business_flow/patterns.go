package businessflow

import (
	"fmt"
	"math"
	"strings"

	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/utils"
)

const bestSlotsCount = 3

var englishIndicators = []string{"the", "and", "for", "with", "our", "your", "this", "that", "are", "was", "were", "have", "has", "been"}

// DefaultPatterns is the fallback used when no post qualifies for analysis
func DefaultPatterns(locale models.Locale) models.Patterns {
	locale = locale.Concrete()
	return models.Patterns{
		TextLength:        models.TextLengthPattern{Min: 150, Max: 300, Avg: 200},
		BestHours:         []int{9, 12, 18},
		BestDays:          []string{locale.DayName(0), locale.DayName(2), locale.DayName(4)},
		UseImages:         true,
		OptimalImageCount: 1,
		UseLinks:          false,
	}
}

// DetectLocale returns English when an English function word appears in the opening of the first
// three posts, Ukrainian otherwise
func DetectLocale(posts []models.TopPost) models.Locale {
	n := min(len(posts), 3)
	samples := make([]string, 0, n)
	for _, p := range posts[:n] {
		samples = append(samples, utils.Truncate(p.Content, 100))
	}
	words := strings.Fields(strings.ToLower(strings.Join(samples, " ")))

	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}
	for _, ind := range englishIndicators {
		if seen[ind] {
			return models.LocaleEnglish
		}
	}
	return models.LocaleUkrainian
}

// AnalyzePatterns derives posting patterns from top posts
func AnalyzePatterns(posts []models.TopPost, locale models.Locale) models.Patterns {
	locale = locale.Concrete()
	if len(posts) == 0 {
		return DefaultPatterns(locale)
	}

	// text length over posts that report one
	minLen, maxLen, sumLen, nLen := 0, 0, 0, 0
	for _, p := range posts {
		if p.TextLength <= 0 {
			continue
		}
		if nLen == 0 || p.TextLength < minLen {
			minLen = p.TextLength
		}
		if p.TextLength > maxLen {
			maxLen = p.TextLength
		}
		sumLen += p.TextLength
		nLen++
	}
	avgLen := 200
	if nLen == 0 {
		minLen, maxLen = 100, 300
	} else {
		avgLen = sumLen / nLen
	}

	hours := make([]int, 0, len(posts))
	days := make([]int, 0, len(posts))
	withImages, withLinks := 0, 0
	imageSum, imageN := 0.0, 0
	engagementSum := 0.0
	for _, p := range posts {
		if p.HourOfDay != nil {
			hours = append(hours, *p.HourOfDay)
		}
		if p.DayOfWeek != nil {
			days = append(days, *p.DayOfWeek)
		}
		if p.HasImages {
			withImages++
		}
		if p.HasLink {
			withLinks++
		}
		if p.ImageCount > 0 {
			imageSum += p.ImageCount
			imageN++
		}
		engagementSum += p.AvgEngagementRate
	}

	bestDays := make([]string, 0, bestSlotsCount)
	for _, d := range topByFrequency(days, bestSlotsCount) {
		bestDays = append(bestDays, locale.DayName(d))
	}

	optimalImages := 1
	if imageN > 0 {
		optimalImages = int(math.Round(imageSum / float64(imageN)))
	}

	total := float64(len(posts))
	imagesPct := float64(withImages) / total * 100
	linksPct := float64(withLinks) / total * 100

	return models.Patterns{
		TextLength: models.TextLengthPattern{
			Min: 9 * minLen / 10,
			Max: (11*maxLen + 9) / 10,
			Avg: avgLen,
		},
		BestHours:          topByFrequency(hours, bestSlotsCount),
		BestDays:           bestDays,
		UseImages:          imagesPct > 50,
		OptimalImageCount:  optimalImages,
		UseLinks:           linksPct > 50,
		AvgEngagement:      utils.RoundTo(engagementSum/total, 4),
		AnalyzedPostsCount: len(posts),
		ImagesPercentage:   utils.RoundTo(imagesPct, 1),
		LinksPercentage:    utils.RoundTo(linksPct, 1),
	}
}

// topByFrequency returns up to n values ordered by descending count; ties keep first-seen order
func topByFrequency(values []int, n int) []int {
	counts := make(map[int]int, len(values))
	order := make([]int, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	// insertion sort keeps the first-seen order among equal counts
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && counts[order[j]] > counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// GenerateRecommendations renders localized guidance from patterns
func GenerateRecommendations(p models.Patterns, locale models.Locale) models.Recommendations {
	en := locale.Concrete() == models.LocaleEnglish
	hours := joinInts(p.BestHours)

	rec := models.Recommendations{
		TextLength: models.TextLengthAdvice{
			Ideal: p.TextLength.Avg,
			Min:   p.TextLength.Min,
			Max:   p.TextLength.Max,
		},
		PostingTime: models.PostingTimeAdvice{
			Hours: p.BestHours,
			Days:  p.BestDays,
		},
		Images: models.ImagesAdvice{
			Use:          p.UseImages,
			OptimalCount: p.OptimalImageCount,
		},
		Links: models.LinksAdvice{
			Use:        p.UseLinks,
			Percentage: p.LinksPercentage,
		},
		Engagement: models.EngagementAdvice{Target: p.AvgEngagement},
	}

	if en {
		rec.TextLength.Recommendation = fmt.Sprintf("Optimal text length: %d-%d characters", p.TextLength.Min, p.TextLength.Max)
		rec.PostingTime.Recommendation = "Best posting hours: " + hours
		if p.UseImages {
			rec.Images.Recommendation = "Use images"
		} else {
			rec.Images.Recommendation = "Not necessary to use images"
		}
		rec.Images.Detail = fmt.Sprintf("Optimal: %d %s", p.OptimalImageCount, imageWord(p.OptimalImageCount, true))
		if p.UseLinks {
			rec.Links.Recommendation = fmt.Sprintf("Add links (%.1f%%)", p.LinksPercentage)
		} else {
			rec.Links.Recommendation = fmt.Sprintf("Not necessary to add links (%.1f%%)", p.LinksPercentage)
		}
		rec.Engagement.Detail = fmt.Sprintf("Target engagement rate: %.2f%%", p.AvgEngagement*100)
	} else {
		rec.TextLength.Recommendation = fmt.Sprintf("Оптимальна довжина тексту: %d-%d символів", p.TextLength.Min, p.TextLength.Max)
		rec.PostingTime.Recommendation = "Найкращі години для публікації: " + hours
		if p.UseImages {
			rec.Images.Recommendation = "Використовуйте зображення"
		} else {
			rec.Images.Recommendation = "Не обов'язково використовувати зображення"
		}
		rec.Images.Detail = fmt.Sprintf("Оптимально: %d %s", p.OptimalImageCount, imageWord(p.OptimalImageCount, false))
		if p.UseLinks {
			rec.Links.Recommendation = "Додавайте посилання"
		} else {
			rec.Links.Recommendation = "Не обов'язково додавати посилання"
		}
		rec.Engagement.Detail = fmt.Sprintf("Цільовий engagement rate: %.2f%%", p.AvgEngagement*100)
	}

	rec.Summary = summarize(p, en)
	return rec
}

func summarize(p models.Patterns, en bool) string {
	parts := make([]string, 0, 4)
	hours := joinInts(p.BestHours)
	days := strings.Join(p.BestDays, ", ")

	if en {
		parts = append(parts,
			fmt.Sprintf("Write posts %d-%d characters long", p.TextLength.Min, p.TextLength.Max),
			fmt.Sprintf("Post at %s o'clock", hours),
			"Best days: "+days,
		)
		if p.UseImages {
			parts = append(parts, fmt.Sprintf("Add %d %s", p.OptimalImageCount, imageWord(p.OptimalImageCount, true)))
		}
	} else {
		parts = append(parts,
			fmt.Sprintf("Пишіть пости довжиною %d-%d символів", p.TextLength.Min, p.TextLength.Max),
			fmt.Sprintf("Публікуйте о %s годині", hours),
			"Найкращі дні: "+days,
		)
		if p.UseImages {
			parts = append(parts, fmt.Sprintf("Додавайте %d %s", p.OptimalImageCount, imageWord(p.OptimalImageCount, false)))
		}
	}
	return strings.Join(parts, ". ") + "."
}

func imageWord(n int, en bool) string {
	switch {
	case en && n == 1:
		return "image"
	case en:
		return "images"
	case n == 1:
		return "зображення"
	default:
		return "зображень"
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
