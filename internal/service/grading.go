package service

import (
	"sort"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

// sortBandsDesc returns active bands ordered by min_mark, highest first.
func sortBandsDesc(bands []models.GradingBand) []models.GradingBand {
	out := make([]models.GradingBand, 0, len(bands))
	for _, b := range bands {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinMark > out[j].MinMark })
	return out
}

// lookupBand picks the first band whose min_mark is at or below pct. Bands must be sorted descending.
// A failed mark always lands on the lowest band.
func lookupBand(sorted []models.GradingBand, pct float64, passed bool) models.GradingBand {
	lowest := sorted[len(sorted)-1]
	if !passed {
		return lowest
	}
	for _, b := range sorted {
		if b.MinMark <= pct {
			return b
		}
	}
	return lowest
}

// ResolveGrade grades marks against a subject's bounds and the grading scale.
func ResolveGrade(marks, fullMark, passMark float64, bands []models.GradingBand) (models.GradeOutcome, error) {
	if fullMark <= 0 {
		return models.GradeOutcome{}, appErrors.Clone(appErrors.ErrValidation, "subject full mark must be positive")
	}
	if marks < 0 || marks > fullMark {
		return models.GradeOutcome{}, appErrors.Clone(appErrors.ErrValidation, "marks must be between 0 and the full mark")
	}
	sorted := sortBandsDesc(bands)
	if len(sorted) == 0 {
		return models.GradeOutcome{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "grading scale is not configured")
	}
	pct := marks / fullMark * 100
	passed := marks >= passMark
	band := lookupBand(sorted, pct, passed)
	return models.GradeOutcome{
		Percentage: models.Round2(pct),
		Grade:      band.Grade,
		GPAPoint:   band.GPAPoint,
		IsPassed:   passed,
	}, nil
}

// findOverlap returns the first active band (other than candidate itself) whose range clashes with candidate.
func findOverlap(candidate models.GradingBand, existing []models.GradingBand) *models.GradingBand {
	for i := range existing {
		e := existing[i]
		if !e.Active || (candidate.ID != "" && e.ID == candidate.ID) {
			continue
		}
		minInside := e.Contains(candidate.MinMark)
		maxInside := e.Contains(candidate.MaxMark)
		swallows := candidate.MinMark <= e.MinMark && candidate.MaxMark >= e.MaxMark
		if minInside || maxInside || swallows {
			return &e
		}
	}
	return nil
}

// rankTotals orders students by aggregate percentage and applies competition ranking.
// A student failing any subject gets the lowest band as the overall grade.
func rankTotals(totals []models.StudentTotal, bands []models.GradingBand) []models.RankEntry {
	sorted := sortBandsDesc(bands)
	entries := make([]models.RankEntry, 0, len(totals))
	for _, t := range totals {
		entry := models.RankEntry{StudentTotal: t, Percentage: models.Percent(t.TotalMarks, t.TotalFullMark)}
		if len(sorted) > 0 {
			band := lookupBand(sorted, entry.Percentage, t.FailedCount == 0)
			entry.Grade = band.Grade
			entry.GPAPoint = band.GPAPoint
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		if entries[i].StudentName != entries[j].StudentName {
			return entries[i].StudentName < entries[j].StudentName
		}
		return entries[i].StudentID < entries[j].StudentID
	})
	for i := range entries {
		if i > 0 && entries[i].Percentage == entries[i-1].Percentage {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}
