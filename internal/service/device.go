package service

import (
	"regexp"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
)

// MobileBreakpoint is the widest viewport still served the mobile bundle.
const MobileBreakpoint = 768

var mobileAgent = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini`)

// Routing reasons, used as metric labels.
const (
	ReasonOverride  = "override"
	ReasonUserAgent = "user_agent"
	ReasonViewport  = "viewport"
	ReasonDefault   = "default"
)

// ChooseInterface picks the bundle for the landing page. An explicit
// override ("desktop" or "mobile") always wins; otherwise a mobile user
// agent or a known viewport no wider than breakpoint selects mobile.
// width 0 means unknown.
func ChooseInterface(userAgent string, width, breakpoint int, override string) (domain.Variant, string) {
	if v, ok := domain.ParseVariant(strings.ToLower(strings.TrimSpace(override))); ok {
		return v, ReasonOverride
	}
	if breakpoint <= 0 {
		breakpoint = MobileBreakpoint
	}
	if mobileAgent.MatchString(userAgent) {
		return domain.VariantMobile, ReasonUserAgent
	}
	if width > 0 && width <= breakpoint {
		return domain.VariantMobile, ReasonViewport
	}
	return domain.VariantDesktop, ReasonDefault
}
