package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
)

func TestReconcile_KeepsConversationValues(t *testing.T) {
	p := completeProfile("device-1")
	p.SetExcludedRoutes("1_75403", []string{"1_8"})

	sess := dialog.NewSession()
	sess.City.Assign("Tampa")
	Reconcile(sess, p)

	assert.Equal(t, "Tampa", sess.City.Value)
	assert.Equal(t, "1_75403", sess.StopID.Value)
	assert.False(t, sess.StopID.Set)
	assert.Equal(t, map[string][]string{"1_75403": {"1_8"}}, sess.RouteExclusions.Value)
}

func TestReconcile_Idempotent(t *testing.T) {
	p := completeProfile("device-1")
	sess := dialog.NewSession()
	sess.SpeakClockTime.Assign(true)

	Reconcile(sess, p)
	once := *sess
	Reconcile(sess, p)
	assert.Equal(t, once, *sess)
}

func TestReconcile_RefreshesFromNewerProfile(t *testing.T) {
	sess := dialog.NewSession()
	Reconcile(sess, completeProfile("device-1"))
	require.Equal(t, "75403", sess.StopCode.Value)

	updated := completeProfile("device-1")
	updated.StopCode = "1234"
	updated.StopID = "1_1234"
	Reconcile(sess, updated)
	assert.Equal(t, "1234", sess.StopCode.Value)

	Reconcile(sess, nil)
	assert.Equal(t, dialog.StageFresh, sess.Stage())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindUserInput, classify(&UserInputError{Slot: dialog.SlotCityName}))
	assert.Equal(t, KindExternalService, classify(external(serviceTransit, errUpstream)))
	assert.Equal(t, KindIdentityResolution, classify(&IdentityResolutionError{Err: errUpstream}))
	assert.Equal(t, KindPersistenceInvariant, classify(&PersistenceInvariantViolation{PrincipalID: "x", Missing: []string{"city"}}))
	assert.Equal(t, KindUnknown, classify(errUpstream))

	err := external(serviceStore, errUpstream)
	var svcErr *ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, serviceStore, svcErr.Service)
	assert.ErrorIs(t, err, errUpstream)
}
