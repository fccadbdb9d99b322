package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/recur/internal/event"
	"github.com/openvault/recur/internal/store"
)

// seedMirror writes a small mirrored state and returns the database path.
func seedMirror(t *testing.T) (string, event.ID, event.ID) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	subID := event.ID{0xa1}
	instID := event.ID{0xb1}
	ctx := context.Background()

	_, err = st.Apply(ctx, event.Event{Seq: 1, Payload: event.SubscriptionCreated{
		SubscriptionID:  subID,
		Owner:           event.Address{0x10},
		VaultAddress:    event.Address{0x20},
		TokenAddress:    event.Address{0x30},
		RecurringAmount: event.MustAmount("1000000000000000000"),
		InitialAmount:   event.MustAmount("0"),
		Period:          86401,
	}})
	require.NoError(t, err)

	_, err = st.Apply(ctx, event.Event{Seq: 2, Payload: event.InstanceCreated{
		InstanceID:     instID,
		SubscriptionID: subID,
		Owner:          event.Address{0x11},
		NextPaymentAt:  1700086401,
	}})
	require.NoError(t, err)

	return path, subID, instID
}

func runQuery(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"query"}, args...))
	return buf, cmd.Execute()
}

func TestQuerySubscription(t *testing.T) {
	path, subID, _ := seedMirror(t)

	buf, err := runQuery(t, "subscription", subID.String(), "--database", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			SubscriptionID  string `json:"subscriptionId"`
			Owner           string `json:"owner"`
			RecurringAmount string `json:"recurringAmount"`
			Period          int64  `json:"period"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, subID.String(), resp.Data.SubscriptionID)
	assert.Equal(t, "1000000000000000000", resp.Data.RecurringAmount)
	assert.Equal(t, int64(86401), resp.Data.Period)
}

func TestQuerySubscription_NotFound(t *testing.T) {
	path, _, _ := seedMirror(t)
	absent := event.ID{0xee}

	_, err := runQuery(t, "subscription", absent.String(), "--database", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestQuerySubscription_BadID(t *testing.T) {
	path, _, _ := seedMirror(t)

	_, err := runQuery(t, "subscription", "not-an-id", "--database", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQueryInstance(t *testing.T) {
	path, subID, instID := seedMirror(t)

	buf, err := runQuery(t, "instance", subID.String(), instID.String(), "--database", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			InstanceID  string `json:"instanceId"`
			NextPayment int64  `json:"nextPayment"`
			Active      bool   `json:"active"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, instID.String(), resp.Data.InstanceID)
	assert.Equal(t, int64(1700086401), resp.Data.NextPayment)
	assert.True(t, resp.Data.Active)
}

func TestQueryCursor(t *testing.T) {
	path, _, _ := seedMirror(t)

	buf, err := runQuery(t, "cursor", "--database", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Seq      int64 `json:"seq"`
			SubIndex int64 `json:"subIndex"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Seq)
}

func TestQueryDue(t *testing.T) {
	path, _, instID := seedMirror(t)

	buf, err := runQuery(t, "due", "--as-of", "1700086401", "--database", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []struct {
			InstanceID string `json:"instanceId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, instID.String(), resp.Data[0].InstanceID)

	// One second before the due date, nothing is due.
	buf, err = runQuery(t, "due", "--as-of", "1700086400", "--database", path, "--format", "json")
	require.NoError(t, err)
	var respEmpty struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &respEmpty))
	assert.Empty(t, respEmpty.Data)
}
