package ui

import (
	"image/color"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
)

// Palette. Pass, warn and fail drive every verdict in the reports.
var (
	ColorPass   = lipgloss.Color("#22C55E")
	ColorWarn   = lipgloss.Color("#EAB308")
	ColorFail   = lipgloss.Color("#DC2626")
	ColorAccent = lipgloss.Color("#0EA5E9")
	ColorBrand  = lipgloss.Color("#8B5CF6")
	ColorMuted  = lipgloss.Color("#64748B")
	ColorInk    = lipgloss.Color("#F8FAFC")
	ColorSoft   = lipgloss.Color("#94A3B8")
)

// Style is a text style shared by the renderers.
type Style struct {
	s lipgloss.Style
}

// Render applies the style to str.
func (st Style) Render(str string) string { return st.s.Render(str) }

// Bold returns a bold copy of st.
func (st Style) Bold() Style { return Style{st.s.Bold(true)} }

func fg(c color.Color) Style { return Style{lipgloss.NewStyle().Foreground(c)} }

var (
	Dim      = fg(ColorSoft)
	Muted    = fg(ColorMuted)
	Pass     = fg(ColorPass)
	Warn     = fg(ColorWarn)
	Fail     = fg(ColorFail)
	Accent   = fg(ColorAccent)
	Emphasis = fg(ColorBrand).Bold()

	// Heading titles a report; Section titles a table inside it.
	Heading = fg(ColorBrand).Bold()
	Section = fg(ColorAccent).Bold()
)

var (
	CheckMark = Pass.Render("✓")
	CrossMark = Fail.Render("✗")
	WarnMark  = Warn.Render("⚠")
	InfoMark  = Accent.Render("ℹ")
)

// Verdict renders a bold PASS or FAIL.
func Verdict(ok bool) string {
	if ok {
		return Pass.Bold().Render("PASS")
	}
	return Fail.Bold().Render("FAIL")
}

// ScoreColor maps a 0..1 coverage score onto the verdict colours.
func ScoreColor(score float64) color.Color {
	switch {
	case score >= 0.8:
		return ColorPass
	case score >= 0.5:
		return ColorWarn
	default:
		return ColorFail
	}
}

func panel(border color.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// Panel frames a finished report in the pass or fail colour.
func Panel(ok bool) lipgloss.Style {
	if ok {
		return panel(ColorPass)
	}
	return panel(ColorFail)
}

// NoticePanel frames a report that is usable but incomplete.
var NoticePanel = panel(ColorBrand)

// KeyValue renders "key: value" with a dimmed key.
func KeyValue(key, value string) string {
	return Dim.Render(key+": ") + value
}

// FangColorScheme maps the palette onto fang's help and error output.
func FangColorScheme(c lipgloss.LightDarkFunc) fang.ColorScheme {
	return fang.ColorScheme{
		Base:           ColorInk,
		Title:          ColorBrand,
		Description:    ColorSoft,
		Codeblock:      c(lipgloss.Color("#E2E8F0"), lipgloss.Color("#1E293B")),
		Program:        ColorAccent,
		DimmedArgument: ColorMuted,
		Comment:        ColorMuted,
		Flag:           ColorPass,
		FlagDefault:    ColorSoft,
		Command:        ColorBrand,
		QuotedString:   ColorAccent,
		Argument:       ColorInk,
		Help:           ColorSoft,
		Dash:           ColorMuted,
		ErrorHeader:    [2]color.Color{ColorInk, ColorFail},
		ErrorDetails:   ColorFail,
	}
}

// BannerASCII is the application banner.
const BannerASCII = `
  ___ _   _ _ ____   _______   __   ___   ___
 / __| | | | '_ \ \ / / _ \ \ / /  / _ \ / __|
 \__ \ |_| | | | \ V /  __/\ V /  | (_) | (__
 |___/\__,_|_|    \_/ \___| |_|    \__\_\\___|
`

// RenderBanner renders the banner in the accent colour.
func RenderBanner(banner string) string {
	return Accent.Render(banner)
}
