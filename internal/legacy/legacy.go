// Package legacy imports data written by the previous deployment: its JSON
// collection documents and its SQLite invites database.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/export"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/rs/zerolog/log"
)

type ServiceImporter interface {
	ImportServices(ctx context.Context, services []catalog.Service) error
}

type ProposalImporter interface {
	Import(ctx context.Context, proposals []proposals.Proposal) error
}

type AssessmentImporter interface {
	Import(ctx context.Context, assessments []risk.Assessment) error
}

type SurveyImporter interface {
	ImportInvite(ctx context.Context, inv *survey.Invite) error
	ImportResponse(ctx context.Context, resp *survey.Response) error
}

// Report counts imported records per source.
type Report struct {
	Services      int `json:"services"`
	Proposals     int `json:"proposals"`
	Assessments   int `json:"assessments"`
	Invites       int `json:"invites"`
	Responses     int `json:"responses"`
	SQLiteInvites int `json:"sqlite_invites"`
}

// Meta flattens the report for the audit log.
func (r Report) Meta() map[string]interface{} {
	return map[string]interface{}{
		"services":       r.Services,
		"proposals":      r.Proposals,
		"assessments":    r.Assessments,
		"invites":        r.Invites,
		"responses":      r.Responses,
		"sqlite_invites": r.SQLiteInvites,
	}
}

// Importer writes legacy records through the regular import paths, so ids
// and tokens are kept and derived values are recomputed.
type Importer struct {
	services    ServiceImporter
	proposals   ProposalImporter
	assessments AssessmentImporter
	survey      SurveyImporter
	loc         *time.Location
}

// NewImporter builds an importer. Zone-less timestamps are read in loc,
// UTC when loc is nil.
func NewImporter(services ServiceImporter, props ProposalImporter, assessments AssessmentImporter, surveys SurveyImporter, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{
		services:    services,
		proposals:   props,
		assessments: assessments,
		survey:      surveys,
		loc:         loc,
	}
}

// ErrNoDocuments is returned when a directory holds none of the documents.
var ErrNoDocuments = errors.New("no legacy documents found")

// readCollection loads the records of c from dir into dst. It reports false
// when the document is absent.
func (im *Importer) readCollection(dir string, c export.Collection, dst any) (bool, error) {
	path, ok := export.Locate(dir, c)
	if !ok {
		return false, nil
	}

	f, err := export.OpenFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var raws []json.RawMessage
	if err := export.ReadDocument(f, c, &raws); err != nil {
		return false, err
	}

	out := make([]json.RawMessage, 0, len(raws))
	for i, raw := range raws {
		norm, err := normalizeRecord(raw, im.loc)
		if err != nil {
			return false, fmt.Errorf("%w %s: record %d: %v", export.ErrCorruptDocument, c.File, i, err)
		}
		out = append(out, norm)
	}

	joined, err := json.Marshal(out)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(joined, dst); err != nil {
		return false, fmt.Errorf("%w %s: %v", export.ErrCorruptDocument, c.File, err)
	}
	return true, nil
}

// ImportDir imports every collection document found in dir. Documents are
// processed in dependency order and a missing one is skipped.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Report, error) {
	var (
		report Report
		found  int
	)

	var services []catalog.Service
	ok, err := im.readCollection(dir, export.Services, &services)
	if err != nil {
		return report, err
	}
	if ok {
		found++
		if err := im.services.ImportServices(ctx, services); err != nil {
			return report, fmt.Errorf("failed to import services: %w", err)
		}
		report.Services = len(services)
	}

	var props []proposals.Proposal
	ok, err = im.readCollection(dir, export.Proposals, &props)
	if err != nil {
		return report, err
	}
	if ok {
		found++
		if err := im.proposals.Import(ctx, props); err != nil {
			return report, fmt.Errorf("failed to import proposals: %w", err)
		}
		report.Proposals = len(props)
	}

	var assessments []risk.Assessment
	ok, err = im.readCollection(dir, export.Assessments, &assessments)
	if err != nil {
		return report, err
	}
	if ok {
		found++
		if err := im.assessments.Import(ctx, assessments); err != nil {
			return report, fmt.Errorf("failed to import risk assessments: %w", err)
		}
		report.Assessments = len(assessments)
	}

	byToken := map[string]survey.Invite{}
	var invites []survey.Invite
	ok, err = im.readCollection(dir, export.Invites, &invites)
	if err != nil {
		return report, err
	}
	if ok {
		found++
		for i := range invites {
			inv := &invites[i]
			if err := im.survey.ImportInvite(ctx, inv); err != nil {
				return report, fmt.Errorf("failed to import invite %s: %w", inv.ID, err)
			}
			byToken[inv.Token] = *inv
			report.Invites++
		}
	}

	var responses []survey.Response
	ok, err = im.readCollection(dir, export.Responses, &responses)
	if err != nil {
		return report, err
	}
	if ok {
		found++
		for i := range responses {
			resp := &responses[i]
			linkInvite(resp, byToken)
			if err := im.survey.ImportResponse(ctx, resp); err != nil {
				return report, fmt.Errorf("failed to import response %s: %w", resp.ID, err)
			}
			report.Responses++
		}
	}

	if found == 0 {
		return report, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	log.Info().
		Str("dir", dir).
		Int("services", report.Services).
		Int("proposals", report.Proposals).
		Int("assessments", report.Assessments).
		Int("invites", report.Invites).
		Int("responses", report.Responses).
		Msg("Legacy documents imported")
	return report, nil
}

// linkInvite fills the invite back-reference of a stored response from the
// token it was submitted with.
func linkInvite(resp *survey.Response, byToken map[string]survey.Invite) {
	inv, ok := byToken[resp.Token]
	if !ok || resp.Token == "" {
		return
	}
	if resp.InviteID == nil {
		id := inv.ID
		resp.InviteID = &id
	}
	if resp.AssessmentID == "" {
		resp.AssessmentID = inv.AssessmentID
	}
}
