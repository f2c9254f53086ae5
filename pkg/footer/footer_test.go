package footer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testFooterElementID     = "site-footer"
	testFooterInnerID       = "site-footer-inner"
	testFooterBaseClass     = "footer-base"
	testFooterInnerClass    = "footer-inner"
	testFooterBrandClass    = "footer-brand"
	testFooterBrandText     = "RuralAssist"
	testFooterTaglineClass  = "footer-tagline"
	testFooterTaglineText   = "Helping rural citizens"
	testFooterMenuClass     = "footer-menu"
	testFooterMenuItemClass = "footer-menu-item"
	testFooterNoticeClass   = "footer-notice"
	testFooterNoticeText    = "Helpline 1930"
	testFooterInternalLabel = "About"
	testFooterInternalURL   = "/about"
	testFooterExternalLabel = "Cyber Crime Portal"
	testFooterExternalURL   = "https://cybercrime.gov.in"
)

func baseFooterConfig() Config {
	return Config{
		ElementID:      testFooterElementID,
		InnerElementID: testFooterInnerID,
		BaseClass:      testFooterBaseClass,
		InnerClass:     testFooterInnerClass,
		BrandClass:     testFooterBrandClass,
		BrandText:      testFooterBrandText,
		TaglineClass:   testFooterTaglineClass,
		TaglineText:    testFooterTaglineText,
		MenuClass:      testFooterMenuClass,
		MenuItemClass:  testFooterMenuItemClass,
		NoticeClass:    testFooterNoticeClass,
		NoticeText:     testFooterNoticeText,
		Links: []Link{
			{Label: testFooterInternalLabel, URL: testFooterInternalURL},
			{Label: testFooterExternalLabel, URL: testFooterExternalURL, External: true},
		},
	}
}

func TestRenderIncludesBrandLinksAndNotice(t *testing.T) {
	rendered, renderErr := Render(baseFooterConfig())
	require.NoError(t, renderErr)

	markup := string(rendered)
	require.Contains(t, markup, `id="`+testFooterElementID+`"`)
	require.Contains(t, markup, `class="`+testFooterBrandClass+`">`+testFooterBrandText+`</div>`)
	require.Contains(t, markup, testFooterTaglineText)
	require.Contains(t, markup, `href="`+testFooterInternalURL+`">`+testFooterInternalLabel+`</a>`)
	require.Contains(t, markup, `href="`+testFooterExternalURL+`" target="_blank" rel="noopener noreferrer"`)
	require.Contains(t, markup, testFooterNoticeText)
}

func TestRenderOmitsEmptySections(t *testing.T) {
	config := baseFooterConfig()
	config.TaglineText = ""
	config.NoticeText = ""
	config.Links = nil

	rendered, renderErr := Render(config)
	require.NoError(t, renderErr)

	markup := string(rendered)
	require.NotContains(t, markup, testFooterTaglineClass)
	require.NotContains(t, markup, testFooterNoticeClass)
	require.NotContains(t, markup, "<ul")
}

func TestRenderEscapesText(t *testing.T) {
	config := baseFooterConfig()
	config.BrandText = "<script>alert(1)</script>"

	rendered, renderErr := Render(config)
	require.NoError(t, renderErr)
	require.False(t, strings.Contains(string(rendered), "<script>"))
}
