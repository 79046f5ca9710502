package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-warden/internal/moderr"
	"guild-warden/internal/permission"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"

// apiRecorder answers every bot API call with success and keeps the bodies.
type apiRecorder struct {
	mu    sync.Mutex
	calls map[string][]map[string]any
}

func newTestAdapter(t *testing.T) (*Adapter, *apiRecorder) {
	t.Helper()
	rec := &apiRecorder{calls: make(map[string][]map[string]any)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.mu.Lock()
		rec.calls[method] = append(rec.calls[method], body)
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)

	bot, err := telego.NewBot(testToken, telego.WithAPIServer(srv.URL), telego.WithDiscardLogger())
	require.NoError(t, err)
	return New(bot, 1), rec
}

func (r *apiRecorder) get(method string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func TestIDs(t *testing.T) {
	id, err := ParseID("-1001234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), id)
	assert.Equal(t, "-1001234567890", FormatID(id))

	_, err = ParseID("abc")
	assert.Error(t, err)
}

func TestRankAndPresence(t *testing.T) {
	owner := &telego.ChatMemberOwner{User: telego.User{ID: 1}}
	admin := &telego.ChatMemberAdministrator{User: telego.User{ID: 2}}
	member := &telego.ChatMemberMember{User: telego.User{ID: 3}}
	left := &telego.ChatMemberLeft{User: telego.User{ID: 4}}
	banned := &telego.ChatMemberBanned{User: telego.User{ID: 5}}

	assert.Equal(t, RankOwner, Rank(owner))
	assert.Equal(t, RankAdministrator, Rank(admin))
	assert.Equal(t, RankMember, Rank(member))

	assert.True(t, IsPresent(member))
	assert.False(t, IsPresent(left))
	assert.False(t, IsPresent(banned))
}

func TestHierarchyFollowsTiers(t *testing.T) {
	owner := View(&telego.ChatMemberOwner{User: telego.User{ID: 1}})
	admin := View(&telego.ChatMemberAdministrator{User: telego.User{ID: 2}})
	member := View(&telego.ChatMemberMember{User: telego.User{ID: 3}})

	assert.True(t, owner.IsOwner)
	assert.True(t, permission.CanModerate(owner, admin))
	assert.True(t, permission.CanModerate(admin, member))
	assert.False(t, permission.CanModerate(admin, owner))
	assert.False(t, permission.CanModerate(member, admin))
}

func TestActorFromMember(t *testing.T) {
	owner := ActorFromMember(&telego.ChatMemberOwner{User: telego.User{ID: 1}})
	assert.Equal(t, "1", owner.UserID)
	assert.True(t, owner.Capabilities.Administrator)

	restricter := ActorFromMember(&telego.ChatMemberAdministrator{User: telego.User{ID: 2}, CanRestrictMembers: true})
	assert.True(t, restricter.Capabilities.ModerateMembers)
	assert.Equal(t, []string{RoleAdministrator}, restricter.RoleIDs)

	plain := ActorFromMember(&telego.ChatMemberAdministrator{User: telego.User{ID: 3}, CustomTitle: "helper"})
	assert.False(t, plain.Capabilities.ModerateMembers)
	assert.Equal(t, []string{RoleAdministrator, "helper"}, plain.RoleIDs)
}

func TestSnapshotRequiresRestrictRight(t *testing.T) {
	target := &telego.ChatMemberMember{User: telego.User{ID: 3, FirstName: "Ann", LastName: "Lee"}}

	able := Snapshot(target, &telego.ChatMemberAdministrator{User: telego.User{ID: 9}, CanRestrictMembers: true})
	assert.Equal(t, "Ann Lee", able.Tag)
	assert.True(t, able.Bannable)
	assert.True(t, able.Moderatable)

	unable := Snapshot(target, &telego.ChatMemberAdministrator{User: telego.User{ID: 9}})
	assert.False(t, unable.Kickable)

	admin := &telego.ChatMemberAdministrator{User: telego.User{ID: 4, Username: "boss"}}
	other := Snapshot(admin, &telego.ChatMemberAdministrator{User: telego.User{ID: 9}, CanRestrictMembers: true})
	assert.Equal(t, "@boss", other.Tag)
	assert.False(t, other.Bannable)
}

func TestTimeoutRefusesRestrictionsTelegramMakesPermanent(t *testing.T) {
	a, rec := newTestAdapter(t)
	ctx := context.Background()

	assert.Equal(t, 30*time.Second, a.MinTimeout())

	err := a.Timeout(ctx, "-1001", "42", 10*time.Second, "spam")
	assert.ErrorIs(t, err, moderr.ErrOutOfRange)
	assert.Empty(t, rec.get("restrictChatMember"), "nothing may reach telegram")

	before := time.Now()
	require.NoError(t, a.Timeout(ctx, "-1001", "42", time.Minute, "spam"))
	calls := rec.get("restrictChatMember")
	require.Len(t, calls, 1)
	until, ok := calls[0]["until_date"].(float64)
	require.True(t, ok)
	assert.InDelta(t, before.Add(time.Minute).Unix(), int64(until), 2)
}
