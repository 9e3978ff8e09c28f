package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ServiceLister interface {
	List(ctx context.Context) ([]catalog.Service, error)
}

type ProposalLister interface {
	List(ctx context.Context, filter proposals.ListFilter) ([]proposals.Proposal, error)
}

type AssessmentLister interface {
	List(ctx context.Context, filter risk.ListFilter) ([]risk.Assessment, error)
}

type SurveyLister interface {
	ListInvites(ctx context.Context, filter survey.InviteFilter) ([]survey.Invite, error)
	ListResponses(ctx context.Context, filter survey.ResponseFilter) ([]survey.Response, error)
}

// Bundle is a full snapshot of every collection.
type Bundle struct {
	Services    []catalog.Service
	Proposals   []proposals.Proposal
	Assessments []risk.Assessment
	Invites     []survey.Invite
	Responses   []survey.Response

	// AnswersOmitted is set when responses are sealed and could not be
	// opened; they are exported with scores only.
	AnswersOmitted bool
}

func (b *Bundle) records(c Collection) any {
	switch c {
	case Services:
		return b.Services
	case Proposals:
		return b.Proposals
	case Assessments:
		return b.Assessments
	case Invites:
		return b.Invites
	case Responses:
		return b.Responses
	}
	return nil
}

// Exporter snapshots the stores.
type Exporter struct {
	services    ServiceLister
	proposals   ProposalLister
	assessments AssessmentLister
	survey      SurveyLister
}

func NewExporter(services ServiceLister, props ProposalLister, assessments AssessmentLister, surveys SurveyLister) *Exporter {
	return &Exporter{
		services:    services,
		proposals:   props,
		assessments: assessments,
		survey:      surveys,
	}
}

// Snapshot loads every collection concurrently.
func (e *Exporter) Snapshot(ctx context.Context) (*Bundle, error) {
	var b Bundle
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		b.Services, err = e.services.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.Proposals, err = e.proposals.List(ctx, proposals.ListFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		b.Assessments, err = e.assessments.List(ctx, risk.ListFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		b.Invites, err = e.survey.ListInvites(ctx, survey.InviteFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		b.Responses, err = e.survey.ListResponses(ctx, survey.ResponseFilter{WithAnswers: true})
		if errors.Is(err, survey.ErrAnswersSealed) {
			b.AnswersOmitted = true
			b.Responses, err = e.survey.ListResponses(ctx, survey.ResponseFilter{})
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load export snapshot: %w", err)
	}
	return &b, nil
}

// WriteDir writes every collection document into dir, creating it when
// needed, and returns the written paths.
func (e *Exporter) WriteDir(ctx context.Context, dir string, compress bool) ([]string, error) {
	b, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if b.AnswersOmitted {
		log.Warn().Msg("Responses are sealed and no identity is configured; exporting scores only")
	}
	return WriteBundle(dir, b, compress)
}

// WriteBundle writes the documents of b into dir.
func WriteBundle(dir string, b *Bundle, compress bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	var paths []string
	for _, c := range Collections() {
		path := filepath.Join(dir, c.File)
		if compress {
			path += CompressedExt
		}

		f, err := CreateFile(path, compress)
		if err != nil {
			return paths, fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := WriteDocument(f, c, b.records(c)); err != nil {
			f.Close()
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return paths, fmt.Errorf("failed to close %s: %w", path, err)
		}

		paths = append(paths, path)
		log.Info().Str("collection", c.Key).Str("path", path).Msg("Collection exported")
	}
	return paths, nil
}
