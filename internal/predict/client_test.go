package predict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/deliverylens/internal/delivery"
)

func TestPredictSendsBareArray(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Response{PredictedTravelTimes: []float64{31.5, 88}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/predict", time.Second)
	out, err := c.Predict(context.Background(), []delivery.Feature{
		{ReceiptLng: 35.7, Hour: 9, CityEncoded: 1},
		{ReceiptLng: 32.9, Hour: 10, TypecodeEncoded: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{31.5, 88}, out)
	require.Len(t, got, 2)
	assert.Equal(t, 35.7, got[0]["receipt_lng"])
	assert.Equal(t, float64(2), got[1]["typecode_encoded"])
	assert.Contains(t, got[0], "day_of_week")
}

func TestPredictServiceError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-Request-Id", "pred-1")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"bad features"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Predict(context.Background(), []delivery.Feature{{}})
	var se *ServiceError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, `{"detail":"bad features"}`, se.Body)
	assert.Equal(t, "pred-1", se.RequestID)
	assert.Contains(t, err.Error(), "bad features")
	assert.Equal(t, 1, calls, "prediction calls are not retried")
}

func TestPredictUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Predict(context.Background(), []delivery.Feature{{}})
	var ue *UnreachableError
	assert.True(t, errors.As(err, &ue), "got %v", err)
}

func TestPredictMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[1,2]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Predict(context.Background(), []delivery.Feature{{}})
	assert.ErrorContains(t, err, "predicted_travel_times")
}

func TestPredictValidatesArguments(t *testing.T) {
	_, err := NewClient("", time.Second).Predict(context.Background(), []delivery.Feature{{}})
	assert.ErrorContains(t, err, "prediction_url")

	_, err = NewClient("http://127.0.0.1:1", time.Second).Predict(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
