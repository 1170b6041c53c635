package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, Entry) error { return errors.New("db down") }

func TestToLogMetadata(t *testing.T) {
	row, err := toLog(Entry{
		CompanyID: "c1",
		ActorID:   "u1",
		Action:    ActionCompanyPlan,
		Metadata:  map[string]interface{}{"plan": "starter"},
	})
	require.NoError(t, err)
	assert.Equal(t, "company.plan_changed", row.Action)
	assert.JSONEq(t, `{"plan":"starter"}`, row.Metadata)

	row, err = toLog(Entry{Action: ActionLogin})
	require.NoError(t, err)
	assert.Equal(t, "{}", row.Metadata)
}

func TestLogRecorder(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	require.NoError(t, LogRecorder{}.Record(context.Background(), Entry{
		Action:   ActionLogout,
		ActorID:  "u1",
		Metadata: map[string]interface{}{"jti": "abc"},
	}))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "user.logout", entry.Data["audit"])
	assert.Equal(t, "abc", entry.Data["meta_jti"])
}

func TestBestSwallowsErrors(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	Best(context.Background(), failingRecorder{}, Entry{Action: ActionLogin})
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// nil recorder is a no-op
	Best(context.Background(), nil, Entry{Action: ActionLogin})
}
