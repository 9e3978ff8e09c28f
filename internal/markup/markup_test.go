package markup

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	out, err := ToHTML("**Ação** imediata\n\n- treinar líderes\n- revisar metas")
	require.NoError(t, err)
	require.Contains(t, string(out), "<strong>Ação</strong>")
	require.Contains(t, string(out), "<li>treinar líderes</li>")
}

func TestToHTML_DropsRawHTML(t *testing.T) {
	out, err := ToHTML("<script>alert(1)</script>")
	require.NoError(t, err)
	require.NotContains(t, string(out), "<script>")
}

func TestToHTML_Empty(t *testing.T) {
	out, err := ToHTML("   ")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestEscapeText(t *testing.T) {
	out, err := ToHTML("Olá " + EscapeText("*Ana* [x](http://evil)"))
	require.NoError(t, err)
	require.NotContains(t, string(out), "<em>")
	require.NotContains(t, string(out), "<a ")
	require.True(t, strings.Contains(string(out), "*Ana*"))
}

func TestBRL(t *testing.T) {
	require.Equal(t, "R$ 1.234,56", BRL(decimal.RequireFromString("1234.56")))
	require.Equal(t, "R$ 7.700,00", BRL(decimal.NewFromInt(7700)))
	require.Equal(t, "R$ 0,50", BRL(decimal.RequireFromString("0.5")))
}

func TestPercent(t *testing.T) {
	require.Equal(t, "66,7%", Percent(66.666))
}
