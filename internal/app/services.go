package app

import (
	"fmt"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/config"
	"github.com/aliuyar1234/nr01desk/internal/dashboard"
	"github.com/aliuyar1234/nr01desk/internal/export"
	"github.com/aliuyar1234/nr01desk/internal/legacy"
	"github.com/aliuyar1234/nr01desk/internal/mailer"
	"github.com/aliuyar1234/nr01desk/internal/pricing"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/sealed"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Services bundles the stores and services shared by the router and the CLI.
type Services struct {
	Auditor     *audit.Writer
	AuditReader *audit.Reader
	Admins      *auth.Service

	Survey     *survey.Service
	Flow       *survey.Flow
	Dispatcher *survey.Dispatcher
	Dashboard  *dashboard.Service

	Catalog   *catalog.Catalog
	Pricing   *pricing.Store
	Proposals *proposals.Service
	Risk      *risk.Service

	Exporter *export.Exporter
}

// NewServices wires every service against pool.
func NewServices(pool *pgxpool.Pool, cfg *config.Config) (*Services, error) {
	var opts []survey.Option
	if cfg.SealsResponses() {
		box, err := sealed.NewBox(cfg.ResponsesAgeRecipient, cfg.ResponsesAgeIdentity)
		if err != nil {
			return nil, fmt.Errorf("failed to load response keys: %w", err)
		}
		opts = append(opts, survey.WithSealer(box))
		log.Info().Bool("can_open", box.CanOpen()).Msg("Response answers are sealed at rest")
	}

	svc := survey.NewService(survey.NewPGStore(pool), opts...)
	sender := mailer.NewSMTPSender(cfg.SMTP)
	if !sender.Configured() {
		log.Warn().Msg("SMTP is not configured; invite emails will fail until it is")
	}

	s := &Services{
		Auditor:     audit.NewWriter(pool),
		AuditReader: audit.NewReader(pool),
		Admins:      auth.NewService(pool),
		Survey:      svc,
		Flow:        survey.NewFlow(svc),
		Dispatcher:  survey.NewDispatcher(svc, sender, cfg.BaseURL, cfg.SMTP.SenderName),
		Dashboard:   dashboard.NewService(svc, svc.Instrument()),
		Catalog:     catalog.NewCatalog(pool),
		Pricing:     pricing.NewStore(pool),
		Proposals:   proposals.NewService(pool),
		Risk:        risk.NewService(pool),
	}
	s.Exporter = export.NewExporter(s.Catalog, s.Proposals, s.Risk, s.Survey)
	return s, nil
}

// Importer returns a legacy importer writing through these services. Naive
// timestamps in the source are read in loc.
func (s *Services) Importer(loc *time.Location) *legacy.Importer {
	return legacy.NewImporter(s.Catalog, s.Proposals, s.Risk, s.Survey, loc)
}
