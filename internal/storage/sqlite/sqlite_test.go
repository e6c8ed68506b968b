package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhours/internal/domain/audit"
	"workhours/internal/domain/auth"
	"workhours/internal/domain/employee"
	"workhours/internal/domain/ledger"
	"workhours/internal/platform/clock"
	"workhours/internal/platform/idempotency"
	"workhours/internal/platform/jobs"
	"workhours/internal/platform/retention"
	"workhours/internal/requestctx"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DSNPrefix + filepath.Join(t.TempDir(), "workhours.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func seedEmployee(t *testing.T, db *DB, id, fullName string) {
	t.Helper()
	require.NoError(t, db.Employees().Ensure(context.Background(), employee.Employee{ID: id, Name: id, FullName: fullName}))
}

func TestIsDSN(t *testing.T) {
	assert.True(t, IsDSN("sqlite:data/workhours.db"))
	assert.False(t, IsDSN("postgres://localhost/workhours"))
}

func TestLedgerStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedEmployee(t, db, "alice", "Alice Smith")
	store := db.Ledger()

	rec := ledger.Record{EmployeeID: "alice", Date: day(3), Signature: "signatures/alice.png"}
	rec.ApplyProjects([]ledger.ProjectEntry{{Name: "Framing", Location: "Lot 4", Hours: 6, Description: "walls"}})
	created, err := store.Create(ctx, rec)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, 1, created.Version)

	_, err = store.Create(ctx, rec)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	found, ok, err := store.FindByEmployeeDate(ctx, "alice", day(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice Smith", found.EmployeeName)
	assert.Equal(t, day(3), found.Date)
	assert.Equal(t, created.Projects, found.Projects)
	assert.Equal(t, "signatures/alice.png", found.Signature)

	found.ApplyProjects(ledger.Merge(found.Projects, []ledger.ProjectEntry{{Name: "Cleanup", Hours: 2}}))
	updated, err := store.Update(ctx, found)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.InDelta(t, 8, updated.HoursWorked, 1e-9)

	// A writer still holding version 1 loses.
	_, err = store.Update(ctx, created)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	total, err := store.CountByEmployee(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// Deleting against a stale version leaves the row alone.
	assert.ErrorIs(t, store.DeleteVersion(ctx, created.ID, created.Version), ledger.ErrConflict)
	_, ok, err = store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := store.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, ok, err = store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := store.Create(ctx, ledger.Record{EmployeeID: "alice", Date: day(4), Projects: []ledger.ProjectEntry{{Name: "Roof"}}})
	require.NoError(t, err)
	require.NoError(t, store.DeleteVersion(ctx, other.ID, other.Version))
	_, ok, err = store.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerStoreListBetween(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedEmployee(t, db, "bob", "")
	seedEmployee(t, db, "alice", "Alice Smith")
	store := db.Ledger()

	for _, c := range []struct {
		emp string
		d   int
	}{{"bob", 4}, {"alice", 7}, {"alice", 3}, {"alice", 10}, {"bob", 2}} {
		rec := ledger.Record{EmployeeID: c.emp, Date: day(c.d)}
		rec.ApplyProjects([]ledger.ProjectEntry{{Name: "Site", Hours: 1}})
		_, err := store.Create(ctx, rec)
		require.NoError(t, err)
	}

	records, err := store.ListBetween(ctx, day(3), day(7))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "alice", records[0].EmployeeID)
	assert.Equal(t, day(3), records[0].Date)
	assert.Equal(t, day(7), records[1].Date)
	assert.Equal(t, "bob", records[2].EmployeeName)

	page, err := store.ListByEmployee(ctx, "alice", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, day(10), page[0].Date)

	n, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestRepairLegacyProjects(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedEmployee(t, db, "alice", "")
	store := db.Ledger()

	inner := `[{"name":"Roofing","location":"Lot 2","hours":"3.5","description":"shingles"}]`
	doubled, err := json.Marshal(inner)
	require.NoError(t, err)
	legacyID, err := store.InsertRaw(ctx, "alice", day(3), string(doubled), 0, "")
	require.NoError(t, err)
	brokenID, err := store.InsertRaw(ctx, "alice", day(4), "{not json", 2, "kept")
	require.NoError(t, err)

	svc := ledger.NewService(store, db.Employees(), nil, nil, ledger.NewGuard(time.UTC, 48*time.Hour), clock.Fixed(day(5)))
	summary, err := svc.RepairProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Rewritten)
	assert.Equal(t, []int64{brokenID}, summary.Undecodable)

	raws, err := store.ListRaw(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, legacyID, raws[0].ID)
	assert.JSONEq(t, `[{"name":"Roofing","location":"Lot 2","hours":3.5,"description":"shingles"}]`, string(raws[0].Projects))
	assert.InDelta(t, 3.5, raws[0].HoursWorked, 1e-9)
	assert.Equal(t, "{not json", string(raws[1].Projects))
	assert.Equal(t, "kept", raws[1].Description)

	again, err := svc.RepairProjects(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Rewritten)
}

func TestLedgerServiceOverSQLite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedEmployee(t, db, "alice", "Alice Smith")

	now := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	svc := ledger.NewService(db.Ledger(), db.Employees(), nil, nil, ledger.NewGuard(time.UTC, 48*time.Hour), clock.Fixed(now))
	alice := ledger.Actor{EmployeeID: "alice", Role: auth.RoleUser}

	first, err := svc.Submit(ctx, alice, ledger.SubmitInput{Date: day(3), Entries: []ledger.EntryInput{{Name: "Framing", Hours: "4"}}})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := svc.Submit(ctx, alice, ledger.SubmitInput{Date: day(3), Entries: []ledger.EntryInput{{Name: "Cleanup", Hours: 2.5}}})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.InDelta(t, 6.5, second.Record.HoursWorked, 1e-9)

	emp, ok, err := db.Employees().Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, emp.LastLogged)
}

func TestEmployeeProfile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedEmployee(t, db, "alice", "")
	store := db.Employees()

	dob := time.Date(1990, 2, 14, 0, 0, 0, 0, time.UTC)
	ok, err := store.UpdateProfile(ctx, "alice", employee.Profile{FullName: "Alice Smith", DateOfBirth: &dob, TShirtSize: "M"})
	require.NoError(t, err)
	assert.True(t, ok)

	emp, found, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alice Smith", emp.DisplayName())
	require.NotNil(t, emp.DateOfBirth)
	assert.True(t, dob.Equal(*emp.DateOfBirth))

	ok, err = store.UpdateProfile(ctx, "nobody", employee.Profile{})
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := store.Exists(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedEmployee(t, db, "alice", "")
	users := db.Users()

	require.NoError(t, users.CreateUser(ctx, auth.User{Username: "alice", PasswordHash: "hash", Role: auth.RoleUser, EmployeeID: "alice"}))
	err := users.CreateUser(ctx, auth.User{Username: "alice", PasswordHash: "hash", Role: auth.RoleUser, EmployeeID: "alice"})
	assert.True(t, errors.Is(err, auth.ErrUserExists))

	user, ok, err := users.FindUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auth.RoleUser, user.Role)
	assert.False(t, user.MFAEnabled)
	assert.Empty(t, user.MFASecret)

	require.NoError(t, users.SetMFA(ctx, "alice", []byte("sealed"), true))
	user, _, err = users.FindUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, user.MFAEnabled)
	assert.Equal(t, []byte("sealed"), user.MFASecret)
	assert.ErrorIs(t, users.SetMFA(ctx, "bob", nil, false), auth.ErrMFANotSetUp)

	_, ok, err = users.FindUser(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobRunStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	runs := db.JobRuns()

	id, err := runs.Start(ctx, jobs.JobWeeklyReport)
	require.NoError(t, err)
	require.NoError(t, runs.Finish(ctx, id, jobs.StatusCompleted, []byte(`{"sent":true}`)))

	pending, err := runs.Start(ctx, jobs.JobRepairProjects)
	require.NoError(t, err)

	total, err := runs.CountRuns(ctx, jobs.RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	list, err := runs.ListRuns(ctx, jobs.RunFilter{JobType: jobs.JobWeeklyReport}, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, jobs.StatusCompleted, list[0].Status)
	assert.JSONEq(t, `{"sent":true}`, string(list[0].Details))
	require.NotNil(t, list[0].CompletedAt)

	running, err := runs.RunByID(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusRunning, running.Status)
	assert.Nil(t, running.CompletedAt)
	assert.JSONEq(t, `{}`, string(running.Details))

	future := time.Now().Add(time.Hour)
	total, err = runs.CountRuns(ctx, jobs.RunFilter{StartedFrom: &future})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = runs.RunByID(ctx, "999")
	assert.ErrorIs(t, err, jobs.ErrRunNotFound)
}

func TestIdempotencyStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := db.Idempotency()

	_, found, err := store.Claim(ctx, "alice", "/hours", "k1", "h1")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = store.Claim(ctx, "alice", "/hours", "k1", "h1")
	assert.ErrorIs(t, err, idempotency.ErrInProgress)

	require.NoError(t, store.Save(ctx, "alice", "/hours", "k1", "h1", idempotency.Response{Status: 201, Body: []byte(`{"ok":true}`)}))

	resp, found, err := store.Claim(ctx, "alice", "/hours", "k1", "h1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))

	_, _, err = store.Claim(ctx, "alice", "/hours", "k1", "other")
	assert.ErrorIs(t, err, idempotency.ErrConflict)
	assert.ErrorIs(t, store.Save(ctx, "alice", "/hours", "k1", "other", idempotency.Response{Status: 201, Body: []byte(`{}`)}), idempotency.ErrConflict)

	// Release only drops keys that never got a response.
	require.NoError(t, store.Release(ctx, "alice", "/hours", "k1"))
	_, found, err = store.Claim(ctx, "alice", "/hours", "k1", "h1")
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = store.Claim(ctx, "bob", "/hours", "k1", "other")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, store.Release(ctx, "bob", "/hours", "k1"))
	_, found, err = store.Claim(ctx, "bob", "/hours", "k1", "other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAuditStore(t *testing.T) {
	db := openTestDB(t)
	ctx := requestctx.WithRequestID(context.Background(), "req-1")
	store := db.Audit()

	require.NoError(t, store.Record(ctx, audit.Entry{ActorID: "root", Action: audit.ActionHoursDelete, EntityType: audit.EntityWorkHours, EntityID: "7", Before: map[string]int{"id": 7}}))
	require.NoError(t, store.Record(ctx, audit.Entry{ActorID: "alice", Action: audit.ActionProfileUpdate, EntityType: audit.EntityEmployee, EntityID: "alice"}))

	total, err := store.Count(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	events, err := store.List(ctx, audit.Filter{ActorID: "root"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.JSONEq(t, `{"id":7}`, string(events[0].Before))
	assert.Nil(t, events[0].After)
}

func TestRetentionPurge(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Idempotency().Save(ctx, "alice", "POST /hours", "k1", "h1", idempotency.Response{Status: 201, Body: json.RawMessage(`{}`)}))
	done, err := db.JobRuns().Start(ctx, jobs.JobWeeklyReport)
	require.NoError(t, err)
	require.NoError(t, db.JobRuns().Finish(ctx, done, jobs.StatusCompleted, []byte(`{}`)))
	_, err = db.JobRuns().Start(ctx, jobs.JobRepairProjects)
	require.NoError(t, err)

	res, err := retention.Apply(ctx, db.Retention(), retention.Policy{Idempotency: time.Nanosecond, JobRuns: time.Nanosecond}, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted[retention.CategoryIdempotency])
	assert.Equal(t, int64(1), res.Deleted[retention.CategoryJobRuns])

	_, found, err := db.Idempotency().Claim(ctx, "alice", "POST /hours", "k1", "h1")
	require.NoError(t, err)
	assert.False(t, found)

	remaining, err := db.JobRuns().ListRuns(ctx, jobs.RunFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, jobs.StatusRunning, remaining[0].Status)

	_, err = db.Retention().Purge(ctx, "payslips", time.Now())
	assert.Error(t, err)
}

func TestOpenAddsColumnsToExistingUsersTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		employee_id TEXT,
		created_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO users (username, password_hash, role, employee_id, created_at) VALUES ('old', 'h', 'user', 'old', '2024-01-01T00:00:00.000000000Z')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := Open(DSNPrefix + path)
	require.NoError(t, err)
	defer db.Close()

	user, ok, err := db.Users().FindUser(context.Background(), "old")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, user.MFAEnabled)
}
