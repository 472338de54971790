package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"LandScout/internal/domain"
)

const alertHTML = `
<html>
  <head><style>.card { color: #333; }</style></head>
  <body>
    <p>Hello Ana,</p>
    <table>
      <tr>
        <td><a href="https://www.idealista.com/en/inmueble/105123456/?xts=1"><strong>Terreno urbano en Llanes con vistas al mar</strong></a></td>
      </tr>
      <tr><td>Land in Llanes, Asturias 59.000 &euro;</td></tr>
      <tr><td>1.373 m&sup2; &middot; Suelo urbano</td></tr>
    </table>
    <p>Does this listing interest you? Contact the advertiser.</p>
    <a href="https://www.idealista.com/static/logo.png">idealista</a>
  </body>
</html>`

func TestIdealistaParser_HTMLAlert(t *testing.T) {
	t.Parallel()

	p := NewIdealistaParser()
	got, err := p.Parse(context.Background(), domain.MessageContent{
		Subject: "New plot in your search on idealista",
		Body:    alertHTML,
		HTML:    true,
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if got.Title != "Terreno urbano en Llanes con vistas al mar" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.URL != "https://www.idealista.com/en/inmueble/105123456/?xts=1" {
		t.Fatalf("unexpected url: %q", got.URL)
	}
	if got.Price == nil || *got.Price != 59000 {
		t.Fatalf("unexpected price: %v", got.Price)
	}
	if got.Area == nil || *got.Area != 1373 {
		t.Fatalf("unexpected area: %v", got.Area)
	}
	if got.Municipality != "Llanes, Asturias" {
		t.Fatalf("unexpected municipality: %q", got.Municipality)
	}
	if got.LandType != "developed" {
		t.Fatalf("expected developed land type, got %q", got.LandType)
	}
	if got.LegalStatus != "developed" {
		t.Fatalf("expected developed legal status, got %q", got.LegalStatus)
	}
	if !strings.HasPrefix(got.Description, "Hello Ana") {
		t.Fatalf("description should start at the greeting: %q", got.Description)
	}
	if strings.Contains(got.Description, "Does this listing") || strings.Contains(got.Description, "color") {
		t.Fatalf("description kept footer or styles: %q", got.Description)
	}
}

func TestIdealistaParser_PlainText(t *testing.T) {
	t.Parallel()

	body := "Finca en Cangas de Onís\nPrecio: 35.000 €\nSuperficie 2500 m2, suelo rústico\nVer anuncio: https://www.idealista.com/inmueble/98765/\n"
	got, err := NewIdealistaParser().Parse(context.Background(), domain.MessageContent{
		Subject: "idealista: nueva finca",
		Body:    body,
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if got.Title != "Finca en Cangas de Onís" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.Municipality != "Cangas de Onís" {
		t.Fatalf("unexpected municipality: %q", got.Municipality)
	}
	if got.URL != "https://www.idealista.com/inmueble/98765/" {
		t.Fatalf("unexpected url: %q", got.URL)
	}
	if got.Price == nil || *got.Price != 35000 {
		t.Fatalf("unexpected price: %v", got.Price)
	}
	if got.Area == nil || *got.Area != 2500 {
		t.Fatalf("unexpected area: %v", got.Area)
	}
	if got.LandType != "buildable" || got.LegalStatus != "rustic" {
		t.Fatalf("unexpected classification: type=%q legal=%q", got.LandType, got.LegalStatus)
	}
}

func TestIdealistaParser_RejectsForeignSender(t *testing.T) {
	t.Parallel()

	_, err := NewIdealistaParser().Parse(context.Background(), domain.MessageContent{
		Subject: "Your invoice",
		Body:    "Terreno en Llanes 59.000 €",
	})
	if !errors.Is(err, domain.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestIdealistaParser_AcceptsSenderHint(t *testing.T) {
	t.Parallel()

	got, err := NewIdealistaParser().Parse(context.Background(), domain.MessageContent{
		Subject:    "Nuevo anuncio",
		Body:       "Precio 12.500 €",
		SourceHint: "alertas@idealista.com",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got.Price == nil || *got.Price != 12500 {
		t.Fatalf("unexpected price: %v", got.Price)
	}
	if got.LandType != defaultLandType {
		t.Fatalf("expected default land type, got %q", got.LandType)
	}
}

func TestIdealistaParser_MissingEssentials(t *testing.T) {
	t.Parallel()

	_, err := NewIdealistaParser().Parse(context.Background(), domain.MessageContent{
		Subject: "Tu resumen semanal de idealista",
		Body:    "Hola, esta semana no hay novedades.",
	})
	if !errors.Is(err, domain.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestExtractNumber_IgnoresTinyAreas(t *testing.T) {
	t.Parallel()

	got := extractNumber(areaExpr, "Trastero 12 m2, parcela 1,250 m²", minPlotArea)
	if got == nil || *got != 1250 {
		t.Fatalf("expected first plausible area, got %v", got)
	}
}
