package session

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown device"

// DeviceLabel turns a User-Agent into a short "Browser on OS" label.
// The raw header is never stored.
func DeviceLabel(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "Bot"
	}
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return unknownDevice
	}
}
