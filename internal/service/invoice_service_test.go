package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invoicepost/internal/invoice"
	"invoicepost/internal/pumapi"
)

const testInvoiceRef = "FAC-2026-INVOICE-20260801"

type fakeSource struct {
	roster      []pumapi.RosterEntry
	rosterErr   error
	details     map[string]string
	detailErr   map[string]error
	groups      map[string]string
	detailCalls []string
}

func (f *fakeSource) GetInvoice(ctx context.Context, invoiceRef string) ([]pumapi.RosterEntry, error) {
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.roster, nil
}

func (f *fakeSource) GetInvoiceDetails(ctx context.Context, invoiceRef, code string) (string, error) {
	f.detailCalls = append(f.detailCalls, code)
	if err := f.detailErr[code]; err != nil {
		return "", err
	}
	details, ok := f.details[code]
	if !ok {
		return "", &pumapi.ExternalCallError{Action: "getinvoicedetails", Status: 404}
	}
	return details, nil
}

func (f *fakeSource) GetGroup(ctx context.Context, groupRef string) (string, error) {
	record, ok := f.groups[groupRef]
	if !ok {
		return "", &pumapi.ExternalCallError{Action: "getgroup", Status: 404}
	}
	return record, nil
}

// detailsFixture builds a detail response with two autonomous sessions
// (30.00, 20.00) and one training session (50.00), owned by groupID.
func detailsFixture(groupID string) string {
	return fmt.Sprintf(`Invoice %s
Example Facility
Autonomous and Training sessions
Session Type,Reference,User,System Type,System,Date,Start time,Duration (booked),Duration (used),Notes,Fee,Subsidy,Final Amount,Group
autonomous,S-1,alice,Confocal,SP8,01/07/2026,09:00,2:00,2:00,,0,0,30.00,%s
autonomous,S-2,bob,Confocal,SP8,02/07/2026,10:00,1:00,1:00,,0,0,20.00,%s
Training sessions
Session Type,Reference,User,System Type,System,Date,Start time,Duration,Final Amount
training,T-1,carol,Confocal,SP8,03/07/2026,14:00,1:00,50.00
`, testInvoiceRef, groupID, groupID)
}

func groupRecord(id, head, admin string) string {
	return fmt.Sprintf(`unitlogin,unitname,headname,heademail,unitbcode,department,institution,address,affiliation,ext,active,admname,admemail,creationdate
"%s","%s lab","Head of %s","%s","","Biophysics","Example University","1 Road|City","","false","true","Admin","%s",""`,
		id, id, id, head, admin)
}

func newTestService(source *fakeSource) *InvoiceService {
	return NewInvoiceService(source, "out", zap.NewNop())
}

func TestRunEndToEnd(t *testing.T) {
	source := &fakeSource{
		roster:  []pumapi.RosterEntry{{Code: "GRP1", Total: 100.00}},
		details: map[string]string{"GRP1": detailsFixture("smithlab")},
		groups:  map[string]string{"smithlab": groupRecord("smithlab", "head@uni.example", "admin@uni.example")},
	}

	report, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Empty(t, report.Skipped)

	recipient := report.Results[0].Recipient
	assert.Equal(t, "smithlab", recipient.GroupID)
	assert.Equal(t, "GRP1", recipient.ChargedGrantCode)
	assert.Equal(t, "50.00", recipient.Charges.Autonomous)
	assert.Equal(t, "0.00", recipient.Charges.Assisted)
	assert.Equal(t, "50.00", recipient.Charges.Training)
	assert.Equal(t, "100.00", recipient.Charges.GrandTotal)
	assert.False(t, recipient.Charges.FeeAdjusted)
	assert.False(t, recipient.Charges.SubsidyAdjusted)
	assert.False(t, recipient.SendOnlyToAdmin)
	assert.True(t, recipient.AdminIsCC)

	wantPath := filepath.Join("out", "2026", "August", "invoice_"+testInvoiceRef+"-GRP1.html")
	assert.Equal(t, wantPath, recipient.DocumentPath)

	require.Len(t, report.Results[0].Autonomous, 2)
	assert.Empty(t, report.Results[0].Assisted)
	require.Len(t, report.Results[0].Training, 1)
}

func TestRunIncludeExcludeMutuallyExclusive(t *testing.T) {
	source := &fakeSource{}
	_, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{
		Include: []string{"GRP1"},
		Exclude: []string{"GRP2"},
	})
	require.ErrorIs(t, err, invoice.ErrConfiguration)
	assert.Empty(t, source.detailCalls)
}

func TestRunBadInvoiceReference(t *testing.T) {
	_, err := newTestService(&fakeSource{}).Run(context.Background(), "bad-ref", RunOptions{})
	require.ErrorIs(t, err, invoice.ErrConfiguration)
}

func TestRunRosterFetchFailureAborts(t *testing.T) {
	source := &fakeSource{rosterErr: &pumapi.ExternalCallError{Action: "getinvoice", Status: 503}}
	_, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{})
	var callErr *pumapi.ExternalCallError
	require.ErrorAs(t, err, &callErr)
}

func TestRunSplitCodeRedistribution(t *testing.T) {
	splitCode := "SPLIT|50|AAA|50|BBB"
	source := &fakeSource{
		roster: []pumapi.RosterEntry{
			{Code: "AAA", Total: 40.00},
			{Code: "CCC", Total: 60.00},
		},
		details: map[string]string{
			"CCC":     detailsFixture("joneslab"),
			splitCode: detailsFixture("smithlab"),
		},
		groups: map[string]string{
			"smithlab": groupRecord("smithlab", "head@uni.example", "admin@uni.example"),
			"joneslab": groupRecord("joneslab", "jones@uni.example", ""),
		},
	}

	report, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{
		SplitCodes: []string{splitCode},
	})
	require.NoError(t, err)

	// AAA folds into the compound key: it must never be fetched alone, and
	// the split pass runs after the roster pass.
	assert.Equal(t, []string{"CCC", splitCode}, source.detailCalls)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "CCC", report.Results[0].Recipient.ChargedGrantCode)
	assert.Equal(t, splitCode, report.Results[1].Recipient.ChargedGrantCode)

	// The document name for the compound key is path-safe.
	assert.NotContains(t, report.Results[1].Recipient.DocumentPath, "|")
}

func TestRunSkipsFailingGroup(t *testing.T) {
	source := &fakeSource{
		roster: []pumapi.RosterEntry{
			{Code: "GRP1", Total: 100.00},
			{Code: "GRP2", Total: 50.00},
		},
		details: map[string]string{"GRP1": detailsFixture("smithlab")},
		detailErr: map[string]error{
			"GRP2": &pumapi.ExternalCallError{Action: "getinvoicedetails", Status: 503},
		},
		groups: map[string]string{"smithlab": groupRecord("smithlab", "head@uni.example", "")},
	}

	report, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "GRP2", report.Skipped[0].Code)
}

func TestRunSkipsUnparseableGroup(t *testing.T) {
	source := &fakeSource{
		roster: []pumapi.RosterEntry{
			{Code: "GRP1", Total: 100.00},
			{Code: "GRP2", Total: 50.00},
		},
		details: map[string]string{
			"GRP1": detailsFixture("smithlab"),
			"GRP2": "too short",
		},
		groups: map[string]string{"smithlab": groupRecord("smithlab", "head@uni.example", "")},
	}

	report, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "GRP2", report.Skipped[0].Code)
}

func TestRunOnlyAdminOverride(t *testing.T) {
	source := &fakeSource{
		roster:  []pumapi.RosterEntry{{Code: "GRP1", Total: 100.00}},
		details: map[string]string{"GRP1": detailsFixture("smithlab")},
		groups:  map[string]string{"smithlab": groupRecord("smithlab", "head@uni.example", "admin@uni.example")},
	}

	report, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{
		OnlyAdmin: []string{"smithlab"},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Recipient.SendOnlyToAdmin)
}

func TestRunIncludeCodesNarrowRoster(t *testing.T) {
	source := &fakeSource{
		roster: []pumapi.RosterEntry{
			{Code: "GRP1", Total: 100.00},
			{Code: "GRP2", Total: 50.00},
		},
		details: map[string]string{"GRP1": detailsFixture("smithlab")},
		groups:  map[string]string{"smithlab": groupRecord("smithlab", "head@uni.example", "")},
	}

	report, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{
		Include: []string{"GRP1"},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, []string{"GRP1"}, source.detailCalls)
}

func TestRunExcludeEmailsFilterRecipients(t *testing.T) {
	source := &fakeSource{
		roster: []pumapi.RosterEntry{
			{Code: "GRP1", Total: 100.00},
			{Code: "GRP2", Total: 50.00},
		},
		details: map[string]string{
			"GRP1": detailsFixture("smithlab"),
			"GRP2": detailsFixture("joneslab"),
		},
		groups: map[string]string{
			"smithlab": groupRecord("smithlab", "head@uni.example", ""),
			"joneslab": groupRecord("joneslab", "jones@uni.example", ""),
		},
	}

	report, err := newTestService(source).Run(context.Background(), testInvoiceRef, RunOptions{
		Exclude: []string{"jones@uni.example"},
	})
	require.NoError(t, err)

	// Email filtering happens at the recipient stage: both groups are still
	// computed, only delivery is narrowed.
	assert.Len(t, source.detailCalls, 2)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "smithlab", report.Results[0].Recipient.GroupID)
}
