package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
	"guild-warden/internal/notify"
	"guild-warden/internal/permission"
	"guild-warden/internal/platform"
	"guild-warden/internal/sequencer"
	"guild-warden/internal/storage"
)

type call struct {
	op     string
	userID string
	reason string
}

type fakePlatform struct {
	mu      sync.Mutex
	members map[string]*platform.Member
	banned  map[string]bool
	calls   []call
	failOp  string
	dmErr   error
	sent    []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members: make(map[string]*platform.Member),
		banned:  make(map[string]bool),
	}
}

func (f *fakePlatform) addMember(id string, rank int, owner bool) *platform.Member {
	m := &platform.Member{
		View:        permission.HierarchyView{UserID: id, HighestRank: rank, IsOwner: owner},
		Tag:         id + "#0001",
		Bannable:    true,
		Kickable:    true,
		Moderatable: true,
	}
	f.members[id] = m
	return m
}

func (f *fakePlatform) record(op, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOp == op {
		return errors.New(op + " failed")
	}
	f.calls = append(f.calls, call{op, userID, reason})
	return nil
}

func (f *fakePlatform) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	if f.failOp == "member" {
		return nil, errors.New("member lookup failed")
	}
	return f.members[userID], nil
}

func (f *fakePlatform) GuildName(ctx context.Context, guildID string) (string, error) {
	return "Test Guild", nil
}

func (f *fakePlatform) Ban(ctx context.Context, guildID, userID, reason string, days int) error {
	if err := f.record("ban", userID, reason); err != nil {
		return err
	}
	f.banned[userID] = true
	return nil
}

func (f *fakePlatform) Unban(ctx context.Context, guildID, userID, reason string) error {
	if err := f.record("unban", userID, reason); err != nil {
		return err
	}
	delete(f.banned, userID)
	return nil
}

func (f *fakePlatform) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	return f.banned[userID], nil
}

func (f *fakePlatform) Kick(ctx context.Context, guildID, userID, reason string) error {
	return f.record("kick", userID, reason)
}

func (f *fakePlatform) Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	return f.record("timeout", userID, reason)
}

func (f *fakePlatform) RemoveTimeout(ctx context.Context, guildID, userID, reason string) error {
	return f.record("unmute", userID, reason)
}

func (f *fakePlatform) SendChannel(ctx context.Context, channelID, text string) (string, error) {
	return "m", nil
}

func (f *fakePlatform) SendDirect(ctx context.Context, userID, text string) error {
	if f.dmErr != nil {
		return f.dmErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, userID)
	return nil
}

func (f *fakePlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

type staticPolicies struct {
	policy *models.GuildPolicy
	err    error
}

func (s staticPolicies) Get(ctx context.Context, guildID string) (*models.GuildPolicy, error) {
	return s.policy.Clone(), s.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (r *recordingNotifier) Dispatch(ctx context.Context, intents ...notify.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intents...)
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, i := range r.intents {
		out = append(out, i.Kind)
	}
	return out
}

type fixture struct {
	exec     *Executor
	platform *fakePlatform
	notifier *recordingNotifier
	cases    *storage.CaseRepository
	users    *storage.UserRepository
	policy   *models.GuildPolicy
}

const guild = "g1"

var (
	modActor   = permission.Actor{UserID: "mod", RoleIDs: []string{"r-mod"}}
	plainActor = permission.Actor{UserID: "nobody"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, storage.Migrate(db))

	logCh := "c-modlog"
	policy := &models.GuildPolicy{
		GuildID:        guild,
		ModeratorRoles: []string{"r-mod"},
		ModLogChannel:  &logCh,
	}

	p := newFakePlatform()
	p.addMember("mod", 5, false)
	p.addMember("member", 1, false)
	p.addMember("senior", 5, false)
	p.addMember("owner", 10, true)

	cases := storage.NewCaseRepository(db)
	users := storage.NewUserRepository(db)
	notifier := &recordingNotifier{}
	exec := NewExecutor(Deps{
		Platform:  p,
		Policies:  staticPolicies{policy: policy},
		Sequencer: sequencer.New(cases),
		Cases:     cases,
		Counters:  users,
		Notifier:  notifier,
	})
	return &fixture{exec: exec, platform: p, notifier: notifier, cases: cases, users: users, policy: policy}
}

func req(target, reason string) Request {
	return Request{
		GuildID:   guild,
		GuildName: "Test Guild",
		Actor:     modActor,
		ActorTag:  "mod#0001",
		TargetID:  target,
		Reason:    reason,
	}
}

func TestBanRecordsCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.exec.ExecuteBan(ctx, req("member", "rule 1"))
	require.NoError(t, err)
	require.NoError(t, res.Warning)
	require.NotNil(t, res.Case)
	assert.Equal(t, int64(1), res.Case.CaseID)
	assert.Equal(t, models.ActionBan, res.Case.Action)
	assert.True(t, res.Case.Active)
	assert.Equal(t, "member#0001", res.Case.UserTag)

	require.Len(t, f.platform.calls, 1)
	assert.Equal(t, "rule 1 | Moderator: mod#0001", f.platform.calls[0].reason)

	rec, err := f.users.GetUser(ctx, "member", guild)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Bans)

	// direct message goes out before the ban, mod-log after the case
	assert.Equal(t, []notify.Kind{notify.DirectMessage, notify.ModLog}, f.notifier.kinds())
	assert.Equal(t, "c-modlog", f.notifier.intents[1].ChannelID)
	assert.Contains(t, f.notifier.intents[1].Text, "**Case ID:** 1")
}

func TestBanNonMemberSkipsHierarchy(t *testing.T) {
	f := newFixture(t)

	res, err := f.exec.ExecuteBan(context.Background(), req("stranger", ""))
	require.NoError(t, err)
	assert.Equal(t, "No reason provided", res.Case.Reason)
	assert.Equal(t, "Unknown#0000", res.Case.UserTag)
	assert.Equal(t, []string{"ban"}, f.platform.ops())
}

func TestUnauthorizedActorFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := req("member", "x")
	r.Actor = plainActor
	for _, exec := range []func(context.Context, Request) (*Result, error){
		f.exec.ExecuteBan, f.exec.ExecuteKick, f.exec.ExecuteWarn, f.exec.ExecuteTimeout, f.exec.ExecuteUnban, f.exec.ExecuteUnmute,
	} {
		_, err := exec(ctx, r)
		assert.ErrorIs(t, err, moderr.ErrUnauthorized)
	}
	assert.Empty(t, f.platform.ops())

	max, err := f.cases.MaxCaseID(ctx, guild)
	require.NoError(t, err)
	assert.Zero(t, max)
}

func TestCapabilitiesGrantModeration(t *testing.T) {
	f := newFixture(t)
	r := req("member", "x")
	r.Actor = permission.Actor{UserID: "mod", Capabilities: permission.Capabilities{ModerateMembers: true}}

	_, err := f.exec.ExecuteKick(context.Background(), r)
	assert.NoError(t, err)
}

func TestHierarchyFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.exec.ExecuteKick(ctx, req("senior", "x"))
	assert.ErrorIs(t, err, moderr.ErrForbidden)

	_, err = f.exec.ExecuteBan(ctx, req("owner", "x"))
	assert.ErrorIs(t, err, moderr.ErrForbidden)

	_, err = f.exec.ExecuteWarn(ctx, req("mod", "x"))
	assert.ErrorIs(t, err, moderr.ErrForbidden)

	assert.Empty(t, f.platform.ops())
	assert.Empty(t, f.notifier.kinds())
}

func TestBotPermissionFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.platform.members["member"].Bannable = false
	f.platform.members["member"].Kickable = false
	f.platform.members["member"].Moderatable = false

	_, err := f.exec.ExecuteBan(ctx, req("member", "x"))
	assert.ErrorIs(t, err, moderr.ErrInsufficientBotPermission)
	_, err = f.exec.ExecuteKick(ctx, req("member", "x"))
	assert.ErrorIs(t, err, moderr.ErrInsufficientBotPermission)
	r := req("member", "x")
	r.Duration = time.Hour
	_, err = f.exec.ExecuteTimeout(ctx, r)
	assert.ErrorIs(t, err, moderr.ErrInsufficientBotPermission)

	// warnings need no platform capability
	_, err = f.exec.ExecuteWarn(ctx, req("member", "x"))
	assert.NoError(t, err)
	assert.Empty(t, f.platform.ops())
}

func TestMemberOnlyActionsNeedMember(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.ExecuteKick(context.Background(), req("stranger", "x"))
	assert.ErrorIs(t, err, moderr.ErrNotFound)
}

func TestWarnNeedsReason(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.ExecuteWarn(context.Background(), req("member", ""))
	assert.ErrorIs(t, err, moderr.ErrInvalidFormat)
}

func TestTimeoutValidatesDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []time.Duration{0, 500 * time.Millisecond, 29 * 24 * time.Hour} {
		r := req("member", "x")
		r.Duration = d
		_, err := f.exec.ExecuteTimeout(ctx, r)
		assert.ErrorIs(t, err, moderr.ErrOutOfRange, d)
	}
	assert.Empty(t, f.platform.ops())

	r := req("member", "x")
	r.Duration = 28 * 24 * time.Hour
	f.exec.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	res, err := f.exec.ExecuteTimeout(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 28*24*time.Hour, res.Case.DurationValue())
	require.NotNil(t, res.Case.ExpiresAt)
	assert.Equal(t, time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC), *res.Case.ExpiresAt)

	rec, err := f.users.GetUser(ctx, "member", guild)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Mutes)
}

type limitedPlatform struct {
	*fakePlatform
	min time.Duration
}

func (l *limitedPlatform) MinTimeout() time.Duration { return l.min }

func TestTimeoutHonoursPlatformMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exec.platform = &limitedPlatform{fakePlatform: f.platform, min: 30 * time.Second}
	assert.Equal(t, 30*time.Second, f.exec.MinTimeout())

	r := req("member", "x")
	r.Duration = 10 * time.Second
	_, err := f.exec.ExecuteTimeout(ctx, r)
	assert.ErrorIs(t, err, moderr.ErrOutOfRange)
	assert.Empty(t, f.platform.ops())

	r.Duration = 30 * time.Second
	res, err := f.exec.ExecuteTimeout(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, res.Case.DurationValue())
	assert.Equal(t, []string{"timeout"}, f.platform.ops())
}

func TestTimeoutDurationTextParsedAfterAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := req("member", "x")
	r.DurationText = "soon"
	r.Actor = plainActor
	_, err := f.exec.ExecuteTimeout(ctx, r)
	assert.ErrorIs(t, err, moderr.ErrUnauthorized)

	r.Actor = modActor
	_, err = f.exec.ExecuteTimeout(ctx, r)
	assert.ErrorIs(t, err, moderr.ErrInvalidFormat)

	r.DurationText = "1h"
	res, err := f.exec.ExecuteTimeout(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, res.Case.DurationValue())
}

func TestUnbanDeactivatesOnlyBanCasesOfUserInGuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.platform.addMember("other", 1, false)

	_, err := f.exec.ExecuteBan(ctx, req("member", "first"))
	require.NoError(t, err)
	_, err = f.exec.ExecuteBan(ctx, req("other", "second"))
	require.NoError(t, err)
	r := req("member", "loud")
	r.Duration = time.Hour
	_, err = f.exec.ExecuteTimeout(ctx, r)
	require.NoError(t, err)
	require.NoError(t, f.cases.InsertCase(ctx, &models.ModerationCase{
		GuildID: "g2", CaseID: 1, Action: models.ActionBan, UserID: "member", UserTag: "m", ModeratorID: "x", ModeratorTag: "x", Reason: "r", Active: true,
	}))

	res, err := f.exec.ExecuteUnban(ctx, req("member", "appeal"))
	require.NoError(t, err)
	require.NoError(t, res.Warning)
	assert.Equal(t, models.ActionUnban, res.Case.Action)
	assert.Equal(t, int64(4), res.Case.CaseID)

	first, _ := f.cases.GetCase(ctx, guild, 1)
	second, _ := f.cases.GetCase(ctx, guild, 2)
	timeout, _ := f.cases.GetCase(ctx, guild, 3)
	otherGuild, _ := f.cases.GetCase(ctx, "g2", 1)
	assert.False(t, first.Active)
	assert.True(t, second.Active)
	assert.True(t, timeout.Active)
	assert.True(t, otherGuild.Active)
	assert.True(t, res.Case.Active)
}

func TestUnbanRequiresExistingBan(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.ExecuteUnban(context.Background(), req("member", "x"))
	assert.ErrorIs(t, err, moderr.ErrNotFound)
	assert.Empty(t, f.platform.ops())
}

func TestUnmuteDeactivatesTimeouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := req("member", "loud")
	r.Duration = time.Minute
	_, err := f.exec.ExecuteTimeout(ctx, r)
	require.NoError(t, err)

	res, err := f.exec.ExecuteUnmute(ctx, req("member", "calm now"))
	require.NoError(t, err)
	assert.Equal(t, models.ActionUnmute, res.Case.Action)

	active, err := f.cases.GetActiveCasesByUser(ctx, guild, "member", models.ActionTimeout)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.platform.dmErr = errors.New("dms closed")
	f.exec.notifier = notify.NewDispatcher(f.platform, "fake", nil)

	res, err := f.exec.ExecuteWarn(context.Background(), req("member", "be nice"))
	require.NoError(t, err)
	require.NoError(t, res.Warning)
	assert.Equal(t, int64(1), res.Case.CaseID)
}

func TestPlatformFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.platform.failOp = "kick"

	_, err := f.exec.ExecuteKick(context.Background(), req("member", "x"))
	assert.ErrorIs(t, err, moderr.ErrTransientIO)

	max, err := f.cases.MaxCaseID(context.Background(), guild)
	require.NoError(t, err)
	assert.Zero(t, max)
}

type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, c *models.ModerationCase) (int64, error) {
	return 0, errors.New("database locked")
}

func TestPersistenceFailureIsPartialSuccess(t *testing.T) {
	f := newFixture(t)
	f.exec.sequencer = failingRecorder{}

	res, err := f.exec.ExecuteKick(context.Background(), req("member", "x"))
	require.NoError(t, err)
	assert.Nil(t, res.Case)
	assert.ErrorIs(t, res.Warning, moderr.ErrTransientIO)
	assert.Equal(t, []string{"kick"}, f.platform.ops())
}

type failingCounters struct{}

func (failingCounters) IncrementCounter(ctx context.Context, userID, guildID string, counter models.Counter) error {
	return errors.New("counter table missing")
}

func TestCounterFailureKeepsCase(t *testing.T) {
	f := newFixture(t)
	f.exec.counters = failingCounters{}

	res, err := f.exec.ExecuteWarn(context.Background(), req("member", "x"))
	require.NoError(t, err)
	require.NotNil(t, res.Case)
	assert.ErrorIs(t, res.Warning, moderr.ErrTransientIO)
}

func TestPolicyLoadFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.exec.policies = staticPolicies{err: errors.New("db down")}

	_, err := f.exec.ExecuteWarn(context.Background(), req("member", "x"))
	assert.ErrorIs(t, err, moderr.ErrTransientIO)
	assert.False(t, moderr.IsTerminal(err))
}

func TestConcurrentActionsGetDistinctIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 15
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.exec.ExecuteWarn(ctx, req("member", "spam"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	max, err := f.cases.MaxCaseID(ctx, guild)
	require.NoError(t, err)
	assert.Equal(t, int64(n), max)

	rec, err := f.users.GetUser(ctx, "member", guild)
	require.NoError(t, err)
	assert.Equal(t, n, rec.Warnings)
}

func TestCaseQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.exec.ExecuteWarn(ctx, req("member", "x"))
		require.NoError(t, err)
	}

	c, err := f.exec.Case(ctx, modActor, guild, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.CaseID)

	_, err = f.exec.Case(ctx, modActor, guild, 99)
	assert.ErrorIs(t, err, moderr.ErrNotFound)

	_, err = f.exec.Case(ctx, plainActor, guild, 3)
	assert.ErrorIs(t, err, moderr.ErrUnauthorized)

	recent, err := f.exec.RecentCases(ctx, modActor, guild)
	require.NoError(t, err)
	require.Len(t, recent, HistoryLimit)
	assert.Equal(t, int64(12), recent[0].CaseID)

	history, err := f.exec.UserHistory(ctx, modActor, guild, "member")
	require.NoError(t, err)
	assert.Len(t, history, HistoryLimit)

	history, err = f.exec.UserHistory(ctx, modActor, guild, "senior")
	require.NoError(t, err)
	assert.Empty(t, history)
}
