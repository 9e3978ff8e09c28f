package catalog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseID(t *testing.T) {
	require.Equal(t, "srv-001", FormatID(1))
	require.Equal(t, "srv-042", FormatID(42))
	require.Equal(t, "srv-1234", FormatID(1234))

	n, ok := ParseID("srv-007")
	require.True(t, ok)
	require.Equal(t, int64(7), n)

	for _, bad := range []string{"", "srv-", "svc-001", "srv-1a", "007"} {
		_, ok := ParseID(bad)
		require.False(t, ok, bad)
	}
}

func TestInputValidate(t *testing.T) {
	in := Input{Name: "  Palestra NR-01 ", Price: decimal.RequireFromString("1500.456"), Hours: decimal.NewFromInt(4)}
	in.Normalize()
	require.Nil(t, in.Validate())
	require.Equal(t, "Palestra NR-01", in.Name)
	require.Equal(t, "1500.46", in.Price.StringFixed(2))

	bad := Input{Price: decimal.NewFromInt(-1), Hours: decimal.NewFromInt(-2)}
	errs := bad.Validate()
	require.Len(t, errs, 3)
	require.Contains(t, errs, "name")
	require.Contains(t, errs, "price")
	require.Contains(t, errs, "hours")
	require.Contains(t, errs.Error(), "hours: hours must not be negative; name:")
}

func TestPatchApply(t *testing.T) {
	svc := &Service{ID: "srv-001", Name: "Diagnóstico", Price: decimal.NewFromInt(100), Hours: decimal.NewFromInt(2), Category: "Consultoria"}
	price := decimal.NewFromInt(250)
	name := "Diagnóstico Psicossocial"

	in := Patch{Name: &name, Price: &price}.Apply(svc)
	require.Equal(t, "Diagnóstico Psicossocial", in.Name)
	require.True(t, in.Price.Equal(price))
	require.True(t, in.Hours.Equal(decimal.NewFromInt(2)))
	require.Equal(t, "Consultoria", in.Category)
}

func TestWriteCSV(t *testing.T) {
	services := []Service{
		{ID: "srv-001", Name: "Treinamento", Price: decimal.RequireFromString("1200"), Hours: decimal.RequireFromString("8"), Category: "Treinamentos"},
		{ID: "srv-002", Name: "Laudo, completo", Price: decimal.RequireFromString("350.5"), Hours: decimal.RequireFromString("2.5"), Category: "Laudos"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, services))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{
		"ID,Nome,Preço,Horas,Categoria",
		"srv-001,Treinamento,R$ 1200.00,8,Treinamentos",
		`srv-002,"Laudo, completo",R$ 350.50,2.5,Laudos`,
	}, lines)
}

func TestReadCSVRoundTrip(t *testing.T) {
	services := []Service{
		{ID: "srv-003", Name: "Mapeamento", Price: decimal.RequireFromString("4800.00"), Hours: decimal.RequireFromString("40"), Category: "Consultoria"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, services))

	records, err := ReadCSV(&buf, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "srv-003", records[0].ID)
	require.Equal(t, 2, records[0].Line)
	require.Equal(t, "Mapeamento", records[0].Input.Name)
	require.True(t, records[0].Input.Price.Equal(decimal.RequireFromString("4800")))
	require.True(t, records[0].Input.Hours.Equal(decimal.NewFromInt(40)))
}

func TestReadCSVMoneyFormats(t *testing.T) {
	data := "ID,Nome,Preço,Horas,Categoria\n" +
		`,Workshop,"R$ 1.234,56",6,Treinamentos` + "\n" +
		"srv-010,Palestra,\"900,5\",2,Eventos\n" +
		"\n" +
		"srv-011,Visita,R$ 300.00,1.5,Campo\n"

	records, err := ReadCSV(strings.NewReader(data), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, "", records[0].ID)
	require.Equal(t, "1234.56", records[0].Input.Price.StringFixed(2))
	require.Equal(t, "900.50", records[1].Input.Price.StringFixed(2))
	require.Equal(t, "300.00", records[2].Input.Price.StringFixed(2))
	require.Equal(t, "1.5", records[2].Input.Hours.String())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("ID,Nome,Preço,Horas,Categoria\nsrv-001,Curto,10\n"), 0)
	require.ErrorIs(t, err, ErrBadCSV)
	require.Contains(t, err.Error(), "line 2")

	_, err = ReadCSV(strings.NewReader("ID,Nome,Preço,Horas,Categoria\nsrv-001,X,abc,1,Y\n"), 0)
	require.ErrorIs(t, err, ErrBadCSV)

	_, err = ReadCSV(strings.NewReader("ID,Nome,Preço,Horas,Categoria\nsrv-001,,10,1,Y\n"), 0)
	require.ErrorIs(t, err, ErrBadCSV)

	_, err = ReadCSV(strings.NewReader("ID,Nome,Preço,Horas,Categoria\na,X,1,1,Y\nb,X,1,1,Y\n"), 1)
	require.ErrorIs(t, err, ErrBadCSV)

	records, err := ReadCSV(strings.NewReader(""), 0)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestServiceJSONUsesNumbers(t *testing.T) {
	svc := Service{ID: "srv-001", Name: "X", Price: decimal.RequireFromString("10.50"), Hours: decimal.NewFromInt(1)}
	b, err := json.Marshal(svc)
	require.NoError(t, err)
	require.Contains(t, string(b), `"price":10.5`)

	var back Service
	require.NoError(t, json.Unmarshal(b, &back))
	require.True(t, back.Price.Equal(svc.Price))
}
