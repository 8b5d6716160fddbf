package dedup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camphubhq/pipeline/internal/dedup"
	"github.com/camphubhq/pipeline/internal/models"
	"github.com/camphubhq/pipeline/internal/testhelpers"
)

// fakeStore is an in-memory Store that applies merges by removing donors,
// so idempotence can be asserted across passes. Its candidate scans mirror
// the repository: members of up to limit duplicate groups, singletons
// excluded, creation order preserved.
type fakeStore struct {
	orgs      []models.Organization
	locations []models.Location
	bad       []models.Location

	orgMerges  [][2]string // survivor, donor
	locMerges  [][2]string
	deleted    []string
	failMerges map[string]error // donor ID -> error
}

func dupOrgKey(o models.Organization) string {
	if o.Website != "" {
		if domain := models.NormalizeDomain(o.Website); domain != "unknown" {
			return "domain:" + domain
		}
	}
	return "name:" + models.NormalizeName(o.Name)
}

func dupLocationKey(l models.Location) string {
	orgID := ""
	if l.OrganizationID != nil {
		orgID = *l.OrganizationID
	}
	return orgID + "|" + models.NormalizeName(l.Name)
}

func (f *fakeStore) ListOrganizationCandidates(_ context.Context, limit int) ([]models.Organization, error) {
	counts := make(map[string]int)
	for _, o := range f.orgs {
		counts[dupOrgKey(o)]++
	}
	picked := make(map[string]bool)
	out := make([]models.Organization, 0)
	for _, o := range f.orgs {
		key := dupOrgKey(o)
		if counts[key] < 2 {
			continue
		}
		if !picked[key] {
			if len(picked) == limit {
				continue
			}
			picked[key] = true
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) ListLocationCandidates(_ context.Context, limit int) ([]models.Location, error) {
	counts := make(map[string]int)
	for _, l := range f.locations {
		counts[dupLocationKey(l)]++
	}
	picked := make(map[string]bool)
	out := make([]models.Location, 0)
	for _, l := range f.locations {
		key := dupLocationKey(l)
		if counts[key] < 2 {
			continue
		}
		if !picked[key] {
			if len(picked) == limit {
				continue
			}
			picked[key] = true
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeStore) MergeOrganizations(_ context.Context, survivorID, donorID string) error {
	if err := f.failMerges[donorID]; err != nil {
		return err
	}
	f.orgMerges = append(f.orgMerges, [2]string{survivorID, donorID})
	kept := f.orgs[:0]
	for _, o := range f.orgs {
		if o.ID != donorID {
			kept = append(kept, o)
		}
	}
	f.orgs = kept
	return nil
}

func (f *fakeStore) MergeLocations(_ context.Context, survivorID, donorID string) error {
	if err := f.failMerges[donorID]; err != nil {
		return err
	}
	f.locMerges = append(f.locMerges, [2]string{survivorID, donorID})
	kept := f.locations[:0]
	for _, l := range f.locations {
		if l.ID != donorID {
			kept = append(kept, l)
		}
	}
	f.locations = kept
	return nil
}

func (f *fakeStore) ListBadLocations(_ context.Context, _, _ float64, limit int) ([]models.Location, error) {
	if len(f.bad) > limit {
		return f.bad[:limit], nil
	}
	return f.bad, nil
}

func (f *fakeStore) DeleteLocation(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	kept := f.bad[:0]
	for _, l := range f.bad {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	f.bad = kept
	return nil
}

func org(id, name, website string) models.Organization {
	return models.Organization{ID: id, Name: name, Website: website}
}

func TestRunBatch_MergesOrganizationsByDomain(t *testing.T) {
	// Three organizations share a website domain; the first in creation
	// order survives and absorbs the other two.
	store := &fakeStore{orgs: []models.Organization{
		org("org-1", "Evergreen Rec", "https://evergreenrec.example.org"),
		org("org-2", "Evergreen Recreation", "https://www.evergreenrec.example.org/about"),
		org("org-3", "EVERGREEN REC", "http://evergreenrec.example.org"),
		org("org-4", "Lakeside Arts", "https://lakesidearts.example.com"),
	}}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 100)

	result, err := engine.RunBatch(context.Background(), dedup.KindOrganizations, 0)

	require.NoError(t, err)
	// Only the duplicate group's members are examined; the singleton never
	// leaves the database.
	assert.Equal(t, 3, result.Examined)
	assert.Equal(t, 2, result.Merged)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Continue)
	assert.Equal(t, [][2]string{{"org-1", "org-2"}, {"org-1", "org-3"}}, store.orgMerges)
}

func TestRunBatch_FallsBackToNameWithoutWebsite(t *testing.T) {
	store := &fakeStore{orgs: []models.Organization{
		org("org-1", "Maple   Day Camp", ""),
		org("org-2", "maple day camp", ""),
		org("org-3", "Birch Day Camp", ""),
	}}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 100)

	result, err := engine.RunBatch(context.Background(), dedup.KindOrganizations, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, [][2]string{{"org-1", "org-2"}}, store.orgMerges)
}

func TestRunBatch_IsIdempotent(t *testing.T) {
	store := &fakeStore{orgs: []models.Organization{
		org("org-1", "Evergreen Rec", "https://evergreenrec.example.org"),
		org("org-2", "Evergreen Recreation", "https://evergreenrec.example.org"),
	}}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 100)
	ctx := context.Background()

	first, err := engine.RunBatch(ctx, dedup.KindOrganizations, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Merged)

	second, err := engine.RunBatch(ctx, dedup.KindOrganizations, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Merged)
	assert.Len(t, store.orgMerges, 1)
}

func TestRunBatch_FailedMergeDoesNotAbortBatch(t *testing.T) {
	store := &fakeStore{
		orgs: []models.Organization{
			org("org-1", "Evergreen Rec", "https://evergreenrec.example.org"),
			org("org-2", "Evergreen Recreation", "https://evergreenrec.example.org"),
			org("org-3", "Lakeside Arts", "https://lakesidearts.example.com"),
			org("org-4", "Lakeside Arts Inc", "https://lakesidearts.example.com"),
		},
		failMerges: map[string]error{"org-2": errors.New("deadlock detected")},
	}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 100)

	result, err := engine.RunBatch(context.Background(), dedup.KindOrganizations, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, [][2]string{{"org-3", "org-4"}}, store.orgMerges)
}

func TestRunBatch_GroupLimitSignalsContinue(t *testing.T) {
	store := &fakeStore{orgs: []models.Organization{
		org("org-1", "A", ""), org("org-2", "a", ""),
		org("org-3", "B", ""), org("org-4", "b", ""),
		org("org-5", "C", ""), org("org-6", "c", ""),
	}}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 2)
	ctx := context.Background()

	first, err := engine.RunBatch(ctx, dedup.KindOrganizations, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Merged)
	assert.True(t, first.Continue)

	second, err := engine.RunBatch(ctx, dedup.KindOrganizations, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Merged)
	assert.False(t, second.Continue)
	assert.Len(t, store.orgs, 3)
}

func TestRunBatch_FindsDuplicatesCreatedLate(t *testing.T) {
	// The duplicate pair sits well past the batch bound in creation order;
	// grouping in the scan still surfaces it on the first pass.
	store := &fakeStore{orgs: []models.Organization{
		org("org-1", "Alder Camp", ""),
		org("org-2", "Birch Camp", ""),
		org("org-3", "Cedar Camp", ""),
		org("org-4", "Willow Camp", ""),
		org("org-5", "willow  camp", ""),
	}}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 2)

	result, err := engine.RunBatch(context.Background(), dedup.KindOrganizations, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, 1, result.Merged)
	assert.False(t, result.Continue)
	assert.Equal(t, [][2]string{{"org-4", "org-5"}}, store.orgMerges)
}

func TestRunBatch_AllMergesFailingClearsContinue(t *testing.T) {
	// A full pass that merges nothing would re-scan the same groups
	// forever, so it must not report more work.
	store := &fakeStore{
		orgs: []models.Organization{
			org("org-1", "A", ""), org("org-2", "a", ""),
			org("org-3", "B", ""), org("org-4", "b", ""),
		},
		failMerges: map[string]error{
			"org-2": errors.New("deadlock detected"),
			"org-4": errors.New("deadlock detected"),
		},
	}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 2)

	result, err := engine.RunBatch(context.Background(), dedup.KindOrganizations, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Merged)
	assert.False(t, result.Continue)
}

func TestRunBatch_LocationsGroupWithinOrganization(t *testing.T) {
	orgA, orgB := "org-a", "org-b"
	store := &fakeStore{locations: []models.Location{
		{ID: "loc-1", OrganizationID: &orgA, Name: "Main Gym"},
		{ID: "loc-2", OrganizationID: &orgA, Name: "main  gym"},
		{ID: "loc-3", OrganizationID: &orgB, Name: "Main Gym"},
	}}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 100)

	result, err := engine.RunBatch(context.Background(), dedup.KindLocations, 0)

	require.NoError(t, err)
	// Same venue name under a different organization never merges.
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, [][2]string{{"loc-1", "loc-2"}}, store.locMerges)
}

func TestRunBatch_UnknownKind(t *testing.T) {
	engine := dedup.NewEngine(&fakeStore{}, testhelpers.NewTestLogger(), 100)

	_, err := engine.RunBatch(context.Background(), dedup.Kind("sessions"), 0)

	require.Error(t, err)
}

func TestCleanupBadLocations(t *testing.T) {
	store := &fakeStore{bad: []models.Location{
		{ID: "loc-1", Address: "TBD"},
		{ID: "loc-2", Address: ""},
	}}
	engine := dedup.NewEngine(store, testhelpers.NewTestLogger(), 100)

	result, err := engine.CleanupBadLocations(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Continue)
	assert.Equal(t, []string{"loc-1", "loc-2"}, store.deleted)
}
