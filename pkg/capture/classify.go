package capture

import "strings"

var spreadsheetApps = []string{"excel", "microsoft excel", "numbers", "libreoffice calc", "soffice"}

var viewerApps = []string{"preview", "acrord32", "acrobat", "foxit", "foxit pdf reader", "sumatrapdf", "okular", "evince", "skim"}

func appKey(app string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(app)), ".exe")
}

func isSpreadsheet(app string) bool { return matchApp(app, spreadsheetApps) }

// isViewer also accepts every "Adobe Acrobat ..." variant.
func isViewer(app string) bool {
	return strings.HasPrefix(appKey(app), "adobe acrobat") || matchApp(app, viewerApps)
}

func matchApp(app string, names []string) bool {
	key := appKey(app)
	for _, n := range names {
		if key == n {
			return true
		}
	}
	return false
}
