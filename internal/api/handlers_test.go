// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/logging"
)

const morningShift = 1704099600.0

// movements returns n ordinary inbound movements with ids 1..n.
func movements(n int) []features.RawEvent {
	events := make([]features.RawEvent, n)
	for i := range events {
		qty := float64(5 + i%5)
		price := 10 + 0.5*float64(i%7)
		events[i] = features.RawEvent{
			TransactionID:   features.Int64(int64(i + 1)),
			ItemID:          features.Int64(int64(1 + i%3)),
			ItemCategory:    features.String("tools"),
			WarehouseID:     features.Int64(int64(1 + (i/4)%2)),
			TransactionType: features.String(features.TypeIn),
			Quantity:        features.Float64(qty),
			UnitPrice:       features.Float64(price),
			TotalAmount:     features.Float64(qty * price),
			CreatedAtTS:     features.Float64(morningShift + float64(i*60)),
		}
	}
	return events
}

func trainedPredictor(t *testing.T) *anomaly.Predictor {
	t.Helper()
	cfg := anomaly.DefaultTrainConfig()
	cfg.NComponents = 2
	cfg.NClusters = 3
	res, err := anomaly.TrainEvents(context.Background(), movements(120), cfg)
	require.NoError(t, err)
	p, err := anomaly.NewPredictor(res.Artifact)
	require.NoError(t, err)
	return p
}

type fakeEvents struct {
	byID map[int64]features.RawEvent
	err  error
}

func newFakeEvents(events []features.RawEvent) *fakeEvents {
	f := &fakeEvents{byID: make(map[int64]features.RawEvent, len(events))}
	for _, ev := range events {
		f.byID[*ev.TransactionID] = ev
	}
	return f
}

func (f *fakeEvents) EventsByIDs(_ context.Context, ids []int64) ([]features.RawEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]features.RawEvent, 0, len(ids))
	for _, id := range ids {
		if ev, ok := f.byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeLoader struct {
	p   *anomaly.Predictor
	err error
}

func (l fakeLoader) LoadPredictor(context.Context) (*anomaly.Predictor, anomaly.ModelInfo, error) {
	if l.err != nil {
		return nil, anomaly.ModelInfo{}, l.err
	}
	return l.p, anomaly.ModelInfo{Version: 7, Source: "test"}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// envelope mirrors APIResponse with the data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func newTestHandler(t *testing.T, opts HandlerOptions) *Handler {
	t.Helper()
	if opts.Holder == nil {
		opts.Holder = anomaly.NewHolder()
	}
	opts.Logger = logging.NewTestLogger(io.Discard)
	return NewHandler(opts)
}

func do(t *testing.T, handler http.HandlerFunc, method, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func scoreBody(t *testing.T, events []features.RawEvent) string {
	t.Helper()
	b, err := json.Marshal(ScoreRequest{Transactions: events})
	require.NoError(t, err)
	return string(b)
}

func TestScore_NoModel(t *testing.T) {
	h := newTestHandler(t, HandlerOptions{})

	rec, env := do(t, h.Score, http.MethodPost, scoreBody(t, movements(3)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeServiceUnavailable, env.Error.Code)
	assert.Equal(t, false, env.Error.Details["model_loaded"])
}

func TestScore_RequestShape(t *testing.T) {
	holder := anomaly.NewHolder()
	holder.Publish(trainedPredictor(t), anomaly.ModelInfo{Version: 1})
	h := newTestHandler(t, HandlerOptions{Holder: holder, MaxScoreBatch: 5})

	tests := []struct {
		name string
		body string
	}{
		{"neither field", `{}`},
		{"both fields", `{"transaction_ids":[1],"transactions":[]}`},
		{"malformed json", `{"transaction_ids":`},
		{"wrong type", `{"transaction_ids":"1,2"}`},
		{"over batch limit", `{"transaction_ids":[1,2,3,4,5,6]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h.Score, http.MethodPost, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, ErrCodeBadRequest, env.Error.Code)
		})
	}
}

func TestScore_Transactions(t *testing.T) {
	holder := anomaly.NewHolder()
	holder.Publish(trainedPredictor(t), anomaly.ModelInfo{Version: 3})
	h := newTestHandler(t, HandlerOptions{Holder: holder})

	batch := movements(4)
	rec, env := do(t, h.Score, http.MethodPost, scoreBody(t, batch))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var resp ScoreResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.ModelLoaded)
	assert.Equal(t, 3, resp.ModelVersion)
	require.Len(t, resp.Results, len(batch))
	for i, r := range resp.Results {
		assert.Equal(t, int64(i+1), r.TransactionID)
		assert.GreaterOrEqual(t, r.AnomalyScore, 0.0)
	}
}

func TestScore_EmptyBatch(t *testing.T) {
	holder := anomaly.NewHolder()
	holder.Publish(trainedPredictor(t), anomaly.ModelInfo{Version: 1})
	h := newTestHandler(t, HandlerOptions{Holder: holder, Events: newFakeEvents(nil)})

	for _, body := range []string{`{"transactions":[]}`, `{"transaction_ids":[]}`} {
		rec, env := do(t, h.Score, http.MethodPost, body)
		require.Equal(t, http.StatusOK, rec.Code, body)

		var resp ScoreResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Empty(t, resp.Results, body)
		assert.Zero(t, resp.Anomalies, body)
	}
}

func TestScore_TransactionIDs(t *testing.T) {
	holder := anomaly.NewHolder()
	holder.Publish(trainedPredictor(t), anomaly.ModelInfo{Version: 1})

	t.Run("unknown ids are omitted", func(t *testing.T) {
		h := newTestHandler(t, HandlerOptions{Holder: holder, Events: newFakeEvents(movements(10))})
		rec, env := do(t, h.Score, http.MethodPost, `{"transaction_ids":[2,999,5]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ScoreResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		ids := make([]int64, 0, len(resp.Results))
		for _, r := range resp.Results {
			ids = append(ids, r.TransactionID)
		}
		assert.Equal(t, []int64{2, 5}, ids)
	})

	t.Run("no event store", func(t *testing.T) {
		h := newTestHandler(t, HandlerOptions{Holder: holder})
		rec, _ := do(t, h.Score, http.MethodPost, `{"transaction_ids":[1]}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("lookup failure", func(t *testing.T) {
		h := newTestHandler(t, HandlerOptions{Holder: holder, Events: &fakeEvents{err: errors.New("disk gone")}})
		rec, env := do(t, h.Score, http.MethodPost, `{"transaction_ids":[1]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotNil(t, env.Error)
		assert.NotContains(t, env.Error.Message, "disk gone")
	})
}

func TestScore_MissingColumn(t *testing.T) {
	holder := anomaly.NewHolder()
	holder.Publish(trainedPredictor(t), anomaly.ModelInfo{Version: 1})
	h := newTestHandler(t, HandlerOptions{Holder: holder})

	batch := movements(3)
	for i := range batch {
		batch[i].WarehouseID = nil
	}

	rec, env := do(t, h.Score, http.MethodPost, scoreBody(t, batch))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeValidationFailed, env.Error.Code)
	assert.Equal(t, []interface{}{"warehouse_id"}, env.Error.Details["missing"])
}

func TestModelStatus(t *testing.T) {
	holder := anomaly.NewHolder()
	h := newTestHandler(t, HandlerOptions{Holder: holder})

	_, env := do(t, h.ModelStatus, http.MethodGet, "")
	var status ModelStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Loaded)
	assert.Nil(t, status.Threshold)

	holder.Publish(trainedPredictor(t), anomaly.ModelInfo{Version: 4, Source: "store"})
	_, env = do(t, h.ModelStatus, http.MethodGet, "")
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Loaded)
	assert.Equal(t, 4, status.Version)
	assert.Equal(t, "store", status.Source)
	assert.NotNil(t, status.Threshold)
	assert.Equal(t, features.FeatureColumns, status.FeatureColumns)
	assert.NotNil(t, status.LoadedAt)
}

func TestReloadModel(t *testing.T) {
	p := trainedPredictor(t)

	t.Run("no loader", func(t *testing.T) {
		h := newTestHandler(t, HandlerOptions{})
		rec, _ := do(t, h.ReloadModel, http.MethodPost, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		holder := anomaly.NewHolder()
		h := newTestHandler(t, HandlerOptions{Holder: holder, Loader: fakeLoader{p: p}})
		rec, env := do(t, h.ReloadModel, http.MethodPost, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var status ModelStatus
		require.NoError(t, json.Unmarshal(env.Data, &status))
		assert.True(t, status.Loaded)
		assert.Equal(t, 7, status.Version)
		assert.True(t, holder.Loaded())
	})

	t.Run("failure keeps current model", func(t *testing.T) {
		holder := anomaly.NewHolder()
		holder.Publish(p, anomaly.ModelInfo{Version: 2})
		h := newTestHandler(t, HandlerOptions{Holder: holder, Loader: fakeLoader{err: errors.New("corrupt artifact")}})

		rec, env := do(t, h.ReloadModel, http.MethodPost, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, true, env.Error.Details["model_loaded"])

		_, info, ok := holder.Current()
		require.True(t, ok)
		assert.Equal(t, 2, info.Version)
	})
}

func TestHealth(t *testing.T) {
	t.Run("live without model", func(t *testing.T) {
		h := newTestHandler(t, HandlerOptions{})
		rec, env := do(t, h.HealthLive, http.MethodGet, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(env.Data, &status))
		assert.Equal(t, "ok", status.Status)
		assert.False(t, status.ModelLoaded)
	})

	t.Run("ready without model", func(t *testing.T) {
		h := newTestHandler(t, HandlerOptions{Database: fakePinger{}})
		rec, env := do(t, h.HealthReady, http.MethodGet, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(env.Data, &status))
		assert.Equal(t, "ok", status.Database)
		assert.False(t, status.ModelLoaded)
	})

	t.Run("ready with database down", func(t *testing.T) {
		h := newTestHandler(t, HandlerOptions{Database: fakePinger{err: errors.New("closed")}})
		rec, env := do(t, h.HealthReady, http.MethodGet, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unreachable", env.Error.Details["database"])
	})
}
