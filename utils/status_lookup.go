package utils

import (
	"strings"

	"admissions-api/models"
)

var (
	// statusSynonyms maps each canonical application status to the spellings accepted from clients.
	statusSynonyms = map[string][]string{
		models.StatusPending: {
			"pending",
			"draft",
		},
		models.StatusPaymentPending: {
			"payment_pending",
			"awaiting_payment",
		},
		models.StatusSubmitted: {
			"submitted",
			"applied",
		},
		models.StatusReviewing: {
			"reviewing",
			"under_review",
			"in_review",
			"review",
		},
		models.StatusAccepted: {
			"accepted",
			"approved",
			"admitted",
		},
		models.StatusRejected: {
			"rejected",
			"declined",
			"not_accepted",
		},
	}
	statusAliasToCanonical = buildStatusAliasMap()

	// adminAssignableStatuses is the allow-list for the admin status update.
	adminAssignableStatuses = map[string]struct{}{
		models.StatusSubmitted: {},
		models.StatusReviewing: {},
		models.StatusAccepted:  {},
		models.StatusRejected:  {},
	}
)

func buildStatusAliasMap() map[string]string {
	aliasMap := make(map[string]string)
	for canonical, synonyms := range statusSynonyms {
		aliasMap[normalizeStatusCode(canonical)] = canonical
		for _, alias := range synonyms {
			if normalized := normalizeStatusCode(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

func normalizeStatusCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "_")
	return strings.ReplaceAll(code, " ", "_")
}

// CanonicalStatus resolves a client-supplied status spelling. ok is false for unknown values.
func CanonicalStatus(raw string) (status string, ok bool) {
	status, ok = statusAliasToCanonical[normalizeStatusCode(raw)]
	return status, ok
}

// AdminAssignableStatus resolves raw and reports whether admins may set it directly.
func AdminAssignableStatus(raw string) (string, bool) {
	status, ok := CanonicalStatus(raw)
	if !ok {
		return "", false
	}
	_, allowed := adminAssignableStatuses[status]
	return status, allowed
}

// StatusIn reports whether status matches any of the provided codes or their synonyms.
func StatusIn(status string, codes ...string) bool {
	canonical, ok := CanonicalStatus(status)
	if !ok {
		canonical = normalizeStatusCode(status)
	}
	for _, code := range codes {
		c, ok := CanonicalStatus(code)
		if !ok {
			c = normalizeStatusCode(code)
		}
		if c == canonical {
			return true
		}
	}
	return false
}
