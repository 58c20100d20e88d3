package sync

import (
	"strings"

	"github.com/stitchflow-website/dirsync/internal/sync/writer"
)

const googleScopePrefix = "https://www.googleapis.com/auth/"

// Scopes are matched by the part after the Google prefix. First match wins,
// so read-only variants are listed before their full-access counterparts.
var scopeRiskRules = []struct {
	prefix string
	risk   string
}{
	{"drive.readonly", writer.RiskMedium},
	{"drive.metadata.readonly", writer.RiskMedium},
	{"drive.file", writer.RiskMedium},
	{"drive", writer.RiskHigh},
	{"gmail.readonly", writer.RiskHigh},
	{"gmail.metadata", writer.RiskMedium},
	{"gmail", writer.RiskHigh},
	{"admin.", writer.RiskHigh},
	{"cloud-platform", writer.RiskHigh},
	{"apps.", writer.RiskHigh},
	{"script", writer.RiskHigh},
	{"calendar.readonly", writer.RiskMedium},
	{"calendar", writer.RiskMedium},
	{"contacts", writer.RiskMedium},
	{"directory.readonly", writer.RiskMedium},
	{"spreadsheets", writer.RiskMedium},
	{"documents", writer.RiskMedium},
	{"presentations", writer.RiskMedium},
	{"tasks", writer.RiskMedium},
}

// ClassifyScope rates the access an OAuth scope grants
func ClassifyScope(scope string) string {
	switch scope {
	case "https://mail.google.com/", "https://mail.google.com":
		return writer.RiskHigh
	case "openid", "email", "profile":
		return writer.RiskLow
	}

	name := strings.TrimPrefix(scope, googleScopePrefix)
	if name == scope {
		// Scopes of other APIs are not rated beyond identity basics.
		return writer.RiskLow
	}
	if strings.HasPrefix(name, "userinfo.") {
		return writer.RiskLow
	}
	for _, rule := range scopeRiskRules {
		if strings.HasPrefix(name, rule.prefix) {
			return rule.risk
		}
	}
	return writer.RiskLow
}
