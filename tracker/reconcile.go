/*
reconcile.go - Approval reconciliation

PURPOSE:
  Normalizes the two heterogeneous pending-approval payloads (manual time
  grouped by submitting user, overtime grouped by request) into one flat
  ordered sequence of ApprovalItem with stable identities.

ORDERING:
  Manual items first, then overtime — a display convention carried through
  so downstream diffs and renderings stay deterministic.

DEGRADATION:
  One malformed record never drops the rest of the batch. Missing nested
  fields degrade to empty strings and zeros; only records that cannot be
  identified at all (no timecard ids / no request id) are skipped, because
  an item without an identity cannot participate in change detection.
*/
package tracker

import "strings"

// Reconcile merges both categories in display order.
func Reconcile(manual []ManualGroup, overtime []OvertimeEntry, weekStart string) []ApprovalItem {
	items := ReconcileManual(manual, weekStart)
	return append(items, ReconcileOvertime(overtime)...)
}

// ReconcileManual flattens the per-user manual groups into items, keeping
// only PENDING entries. weekStart is the Sunday-based week the query
// covered; the payload itself does not repeat it.
func ReconcileManual(groups []ManualGroup, weekStart string) []ApprovalItem {
	var items []ApprovalItem
	for _, g := range groups {
		if len(g.ManualTimes) == 0 {
			continue
		}
		for _, mt := range g.ManualTimes {
			if mt.Status != "PENDING" || len(mt.TimecardIDs) == 0 {
				continue
			}
			items = append(items, ApprovalItem{
				Kind:            KindManual,
				UserID:          g.UserID,
				FullName:        g.FullName,
				JobTitle:        cleanTitle(g.JobTitle),
				DurationMinutes: mt.DurationMinutes,
				Hours:           RoundHours(mt.DurationMinutes),
				Description:     defaultStr(mt.Description, "No description"),
				StartedAt:       mt.StartDateTime,
				WeekStart:       weekStart,
				Source:          SourceType(mt.Type),
				TimecardIDs:     mt.TimecardIDs,
			})
		}
	}
	return items
}

// ReconcileOvertime flattens overtime entries into items, keeping only
// PENDING requests and resolving the nested candidate identity.
func ReconcileOvertime(entries []OvertimeEntry) []ApprovalItem {
	var items []ApprovalItem
	for _, e := range entries {
		ot := e.OvertimeRequest
		if ot == nil || ot.Status != "PENDING" || ot.ID == 0 {
			continue
		}

		var userID int64
		fullName := "Unknown"
		if c := e.Assignment.candidate(); c != nil {
			userID = c.UserID
			if c.PrintableName != "" {
				fullName = c.PrintableName
			}
		}
		jobTitle := ""
		if e.Assignment != nil {
			jobTitle = cleanTitle(e.Assignment.JobTitle)
		}

		items = append(items, ApprovalItem{
			Kind:             KindOvertime,
			UserID:           userID,
			FullName:         fullName,
			JobTitle:         jobTitle,
			DurationMinutes:  ot.OvertimePeriod,
			Hours:            RoundHours(ot.OvertimePeriod),
			Description:      defaultStr(ot.Memo, "No memo"),
			StartedAt:        ot.CreatedOn,
			WeekStart:        ot.WeekStartDate,
			OvertimeID:       ot.ID,
			Cost:             ot.OvertimeCost,
			TotalHoursWorked: e.TotalHoursWorked,
		})
	}
	return items
}

// cleanTitle strips embedded quote characters; upstream job titles
// sometimes arrive wrapped in stray quotes.
func cleanTitle(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
