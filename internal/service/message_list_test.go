package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
)

func TestMessageListDeduplicates(t *testing.T) {
	list := NewMessageList()
	list.Warning("careful")
	list.Warning("careful")
	list.Error("broken")
	list.Debug("trace")
	list.Success("done")

	assert.Equal(t, 4, list.Len())
	assert.True(t, list.HasLevel(models.LevelDebug))
	assert.False(t, list.HasLevel(models.LevelInfo))

	out := list.Output(false)
	require.Len(t, out, 3)
	assert.Equal(t, models.Message{Level: models.LevelWarning, Text: "careful", Count: 2}, out[0])
	assert.Equal(t, models.LevelDanger, out[1].Level)
	assert.Equal(t, models.LevelSuccess, out[2].Level)

	out = list.Output(true)
	require.Len(t, out, 4)
	assert.Equal(t, models.Message{Level: models.LevelSecondary, Text: "DEBUG: trace", Count: 1}, out[2])
	assert.True(t, list.HasLevel(models.LevelError), "output must not mutate the list")
}

func TestSessionKeepsFirstFailure(t *testing.T) {
	s := NewSession(context.Background(), nil, nil, nil)
	require.NotNil(t, s.Request)
	assert.Equal(t, http.StatusOK, s.Status)

	s.Fail(http.StatusForbidden)
	s.Fail(http.StatusBadRequest)
	assert.Equal(t, http.StatusForbidden, s.Status)
}

func TestObjectHandleLedger(t *testing.T) {
	w := newWorld(t)
	schema := w.schema("tag")
	handle := NewObjectHandle(schema, nil)
	assert.True(t, handle.Record.IsNew())
	assert.False(t, handle.HasChanges())
	assert.Equal(t, "", handle.Summary("x"))

	handle.Record.Set("name", "go")
	handle.ReportChange(models.Change{Field: "name", OldValue: "", NewValue: "go"})
	handle.ReportChange(models.Change{Field: "tags", Description: "added 'a' to 'tags'"})
	assert.Equal(t, "tag 'go' updated: changed field 'name' from '' to 'go'; added 'a' to 'tags'", handle.Summary("go"))

	changes := handle.Changes()
	changes[0].Field = "mutated"
	assert.Equal(t, "name", handle.Changes()[0].Field)

	s := w.session(nil)
	require.NoError(t, handle.Commit(s))
	assert.False(t, handle.Record.IsNew())
	assert.NotNil(t, handle.Record.Get(models.FieldDateCreated))

	stored := w.reload(handle.Record)
	assert.Equal(t, "go", stored.String("name"))

	handle.Record.Set("name", "golang")
	require.NoError(t, handle.Commit(s))
	assert.Equal(t, "golang", w.reload(handle.Record).String("name"))
}
