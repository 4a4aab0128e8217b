package push_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

func TestResult_MarshalJSON(t *testing.T) {
	t.Run("Single send has id and target only", func(t *testing.T) {
		res := push.Result{ID: "msg-1", Target: push.TokenTarget([]string{"T1"})}

		raw, err := json.Marshal(res)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "msg-1", body["id"])
		assert.Equal(t, map[string]any{"tokens": []any{"T1"}}, body["target"])
		assert.NotContains(t, body, "count")
		assert.NotContains(t, body, "responses")
	})

	t.Run("Topic target", func(t *testing.T) {
		raw, err := json.Marshal(push.Result{ID: "m", Target: push.TopicTarget("news")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true,"id":"m","target":{"topic":"news"}}`, string(raw))
	})

	t.Run("Multicast has counts and per-token responses", func(t *testing.T) {
		res := push.Result{
			Target:       push.TokenTarget([]string{"A", "B"}),
			Multicast:    true,
			SuccessCount: 1,
			FailureCount: 1,
			Outcomes: []push.TokenOutcome{
				{Success: true},
				{Success: false, Error: "not registered"},
			},
		}

		raw, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"success": true,
			"target": {"tokens": ["A","B"]},
			"count": {"success": 1, "failure": 1},
			"responses": [
				{"success": true, "error": null},
				{"success": false, "error": "not registered"}
			]
		}`, string(raw))
	})
}

func TestErrors(t *testing.T) {
	ve := &push.ValidationError{Err: push.ErrMissingTarget}
	assert.ErrorIs(t, ve, push.ErrMissingTarget)
	assert.Equal(t, "Provide token/tokens/topic or a userId with saved fcmToken", ve.Error())

	te := &push.TransportError{Op: "single send", Err: errors.New("boom")}
	assert.Equal(t, "boom", te.Error())
	assert.Equal(t, "single send: boom", te.Describe())
}
