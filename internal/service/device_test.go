package service_test

import (
	"testing"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"github.com/stretchr/testify/assert"
)

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
)

func TestChooseInterface(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		width      int
		override   string
		want       domain.Variant
		wantReason string
	}{
		{"desktop agent wide screen", desktopUA, 1440, "", domain.VariantDesktop, service.ReasonDefault},
		{"desktop agent narrow viewport", desktopUA, 700, "", domain.VariantMobile, service.ReasonViewport},
		{"breakpoint is inclusive", desktopUA, 768, "", domain.VariantMobile, service.ReasonViewport},
		{"just above breakpoint", desktopUA, 769, "", domain.VariantDesktop, service.ReasonDefault},
		{"unknown width", desktopUA, 0, "", domain.VariantDesktop, service.ReasonDefault},
		{"mobile agent", iphoneUA, 1200, "", domain.VariantMobile, service.ReasonUserAgent},
		{"agent match is case-insensitive", "OPERA MINI/4.2", 0, "", domain.VariantMobile, service.ReasonUserAgent},
		{"desktop override beats narrow mobile", iphoneUA, 320, "desktop", domain.VariantDesktop, service.ReasonOverride},
		{"mobile override on desktop", desktopUA, 1920, "mobile", domain.VariantMobile, service.ReasonOverride},
		{"unknown override ignored", desktopUA, 1920, "tablet", domain.VariantDesktop, service.ReasonDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := service.ChooseInterface(tt.ua, tt.width, service.MobileBreakpoint, tt.override)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestChooseInterface_DefaultBreakpoint(t *testing.T) {
	got, _ := service.ChooseInterface(desktopUA, 700, 0, "")
	assert.Equal(t, domain.VariantMobile, got)
}
